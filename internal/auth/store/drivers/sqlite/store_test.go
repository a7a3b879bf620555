package sqlite_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/paddockhq/gatehouse/internal/auth/domain"
	"github.com/paddockhq/gatehouse/internal/auth/store"
	"github.com/paddockhq/gatehouse/internal/auth/store/drivers/sqlite"
	"github.com/paddockhq/gatehouse/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db")
	s, err := sqlite.NewStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	return s
}

func seedUser(t *testing.T, s store.Store) domain.User {
	t.Helper()

	u := domain.User{
		ID:           idx.New().String(),
		Email:        idx.New().String() + "@example.com",
		FullName:     "Test User",
		PasswordHash: "$argon2id$fake",
	}
	require.NoError(t, s.Users().CreateUser(context.Background(), u))
	return u
}

func seedDevice(t *testing.T, s store.Store, userID string) domain.Device {
	t.Helper()

	d := domain.Device{
		ID:        idx.New().String(),
		UserID:    userID,
		Type:      domain.DeviceTypeCodeGenerator,
		SecretKey: "sealed-secret",
	}
	require.NoError(t, s.Devices().CreateDevice(context.Background(), d))
	return d
}

func TestUsersRepo(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t.Run("create and fetch", func(t *testing.T) {
		u := seedUser(t, s)

		got, err := s.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, u.Email, got.Email)
		require.False(t, got.TFAEnabled)

		byEmail, err := s.Users().GetUserByEmail(ctx, u.Email)
		require.NoError(t, err)
		require.Equal(t, u.ID, byEmail.ID)
	})

	t.Run("duplicate email rejected", func(t *testing.T) {
		u := seedUser(t, s)

		dup := u
		dup.ID = idx.New().String()
		err := s.Users().CreateUser(ctx, dup)
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("missing user", func(t *testing.T) {
		_, err := s.Users().GetUserByID(ctx, "nope")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("set tfa enabled", func(t *testing.T) {
		u := seedUser(t, s)

		require.NoError(t, s.Users().SetTFAEnabled(ctx, u.ID, true))
		got, err := s.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.True(t, got.TFAEnabled)

		require.ErrorIs(t, s.Users().SetTFAEnabled(ctx, "nope", true), store.ErrNotFound)
	})
}

func TestDevicesRepo(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t.Run("create and fetch by user", func(t *testing.T) {
		u := seedUser(t, s)
		d := seedDevice(t, s, u.ID)

		got, err := s.Devices().GetDeviceByUserID(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, d.ID, got.ID)
		require.Equal(t, domain.DeviceTypeCodeGenerator, got.Type)
		require.Equal(t, "sealed-secret", got.SecretKey)
	})

	t.Run("one device per user", func(t *testing.T) {
		u := seedUser(t, s)
		seedDevice(t, s, u.ID)

		second := domain.Device{
			ID:        idx.New().String(),
			UserID:    u.ID,
			Type:      domain.DeviceTypeEmail,
			SecretKey: "another",
		}
		require.ErrorIs(t, s.Devices().CreateDevice(ctx, second), store.ErrAlreadyExists)
	})

	t.Run("cascade on user delete", func(t *testing.T) {
		u := seedUser(t, s)
		seedDevice(t, s, u.ID)

		require.NoError(t, s.Users().DeleteUser(ctx, u.ID))
		_, err := s.Devices().GetDeviceByUserID(ctx, u.ID)
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestBackupTokensRepo(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedTokens := func(t *testing.T, deviceID string, codes ...string) {
		t.Helper()
		for _, code := range codes {
			require.NoError(t, s.BackupTokens().CreateBackupToken(ctx, domain.BackupToken{
				ID:       idx.New().String(),
				DeviceID: deviceID,
				Code:     code,
			}))
		}
	}

	t.Run("count", func(t *testing.T) {
		u := seedUser(t, s)
		d := seedDevice(t, s, u.ID)
		seedTokens(t, d.ID, "AAAA1111", "BBBB2222", "CCCC3333")

		count, err := s.BackupTokens().CountDeviceBackupTokens(ctx, d.ID)
		require.NoError(t, err)
		require.Equal(t, 3, count)
	})

	t.Run("consume removes exactly once", func(t *testing.T) {
		u := seedUser(t, s)
		d := seedDevice(t, s, u.ID)
		seedTokens(t, d.ID, "AAAA1111", "BBBB2222")

		require.NoError(t, s.BackupTokens().ConsumeBackupToken(ctx, d.ID, "AAAA1111"))

		// second consume of the same code fails
		err := s.BackupTokens().ConsumeBackupToken(ctx, d.ID, "AAAA1111")
		require.ErrorIs(t, err, store.ErrNotFound)

		count, err := s.BackupTokens().CountDeviceBackupTokens(ctx, d.ID)
		require.NoError(t, err)
		require.Equal(t, 1, count)
	})

	t.Run("consume unknown code", func(t *testing.T) {
		u := seedUser(t, s)
		d := seedDevice(t, s, u.ID)
		seedTokens(t, d.ID, "AAAA1111")

		err := s.BackupTokens().ConsumeBackupToken(ctx, d.ID, "ZZZZ9999")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("concurrent consume has one winner", func(t *testing.T) {
		u := seedUser(t, s)
		d := seedDevice(t, s, u.ID)
		seedTokens(t, d.ID, "RACE0001")

		const workers = 8
		var wg sync.WaitGroup
		results := make(chan error, workers)
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results <- s.BackupTokens().ConsumeBackupToken(ctx, d.ID, "RACE0001")
			}()
		}
		wg.Wait()
		close(results)

		var wins int
		for err := range results {
			if err == nil {
				wins++
			} else {
				require.ErrorIs(t, err, store.ErrNotFound)
			}
		}
		require.Equal(t, 1, wins)
	})

	t.Run("depleted devices listed", func(t *testing.T) {
		u1 := seedUser(t, s)
		d1 := seedDevice(t, s, u1.ID) // no tokens
		u2 := seedUser(t, s)
		d2 := seedDevice(t, s, u2.ID)
		seedTokens(t, d2.ID, "AAAA1111")

		ids, err := s.BackupTokens().ListDepletedDeviceIDs(ctx)
		require.NoError(t, err)
		require.Contains(t, ids, d1.ID)
		require.NotContains(t, ids, d2.ID)
	})
}

func TestWithTx(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t.Run("rollback on error", func(t *testing.T) {
		u := seedUser(t, s)

		wantErr := context.Canceled
		err := s.WithTx(ctx, func(tx store.Tx) error {
			if err := tx.Devices().CreateDevice(ctx, domain.Device{
				ID:        idx.New().String(),
				UserID:    u.ID,
				Type:      domain.DeviceTypeEmail,
				SecretKey: "sealed",
			}); err != nil {
				return err
			}
			return wantErr
		})
		require.ErrorIs(t, err, wantErr)

		_, err = s.Devices().GetDeviceByUserID(ctx, u.ID)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("commit on success", func(t *testing.T) {
		u := seedUser(t, s)
		deviceID := idx.New().String()

		err := s.WithTx(ctx, func(tx store.Tx) error {
			if err := tx.Devices().CreateDevice(ctx, domain.Device{
				ID:        deviceID,
				UserID:    u.ID,
				Type:      domain.DeviceTypeCodeGenerator,
				SecretKey: "sealed",
			}); err != nil {
				return err
			}
			return tx.BackupTokens().CreateBackupToken(ctx, domain.BackupToken{
				ID:       idx.New().String(),
				DeviceID: deviceID,
				Code:     "AAAA1111",
			})
		})
		require.NoError(t, err)

		got, err := s.Devices().GetDeviceByUserID(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, deviceID, got.ID)
	})
}

// Losers of a contended consume must observe store.ErrNotFound, never a raw
// SQLITE_BUSY, including on the production-style DSN that already carries
// its own query params.
func TestConcurrentConsumeWithProductionDSN(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", filepath.Join(t.TempDir(), "auth.db"))
	s, err := sqlite.NewStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())

	ctx := context.Background()
	u := seedUser(t, s)
	d := seedDevice(t, s, u.ID)
	require.NoError(t, s.BackupTokens().CreateBackupToken(ctx, domain.BackupToken{
		ID:       idx.New().String(),
		DeviceID: d.ID,
		Code:     "RACE0002",
	}))

	const workers = 16
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- s.BackupTokens().ConsumeBackupToken(ctx, d.ID, "RACE0002")
		}()
	}
	wg.Wait()
	close(results)

	var wins, notFound int
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		require.ErrorIs(t, err, store.ErrNotFound)
		notFound++
	}
	require.Equal(t, 1, wins)
	require.Equal(t, workers-1, notFound)
}
