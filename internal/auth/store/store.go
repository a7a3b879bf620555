package store

import (
	"context"
	"errors"

	"github.com/paddockhq/gatehouse/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite, postgres)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable. We can change having the sub-repos as methods later but we do it
// now so we can have more control and actively stop people from accidently
// doing transactions within transactions.
type Store interface {
	Users() Users
	Devices() Devices
	BackupTokens() BackupTokens

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// Use it for multi-step operations that must be atomic (e.g., device
	// enrollment plus backup token batch). The caller MUST call Commit()
	// or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	// This is the recommended way to handle transactions as it automatically
	// handles commit/rollback logic.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources (optional for sqlite).
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail is used during login.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	CreateUser(ctx context.Context, u domain.User) error

	// SetTFAEnabled flips tfa_enabled and bumps updated_at.
	SetTFAEnabled(ctx context.Context, userID string, enabled bool) error

	// UpdatePasswordHash sets the password_hash (argon2) and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error

	// DeleteUser cascades to devices and backup_tokens (per schema).
	DeleteUser(ctx context.Context, userID string) error
}

type Devices interface {
	// GetDeviceByUserID returns the user's enrolled device. A user has at
	// most one (enforced by a unique index on user_id).
	GetDeviceByUserID(ctx context.Context, userID string) (domain.Device, error)

	// CreateDevice inserts a new device for a user.
	CreateDevice(ctx context.Context, d domain.Device) error

	// DeleteDeviceByUserID removes the user's device, cascading to its
	// backup tokens.
	DeleteDeviceByUserID(ctx context.Context, userID string) error
}

type BackupTokens interface {
	// CreateBackupToken stores one recovery code for a device.
	CreateBackupToken(ctx context.Context, t domain.BackupToken) error

	// CountDeviceBackupTokens returns how many unused codes remain.
	CountDeviceBackupTokens(ctx context.Context, deviceID string) (int, error)

	// ConsumeBackupToken deletes the matching code in a single statement.
	// Returns ErrNotFound when no row matched, which is how concurrent
	// submissions of the same code are serialized: exactly one caller
	// deletes the row, everyone else sees ErrNotFound.
	ConsumeBackupToken(ctx context.Context, deviceID string, code string) error

	// ListDepletedDeviceIDs returns device ids that have zero backup
	// tokens left (housekeeping).
	ListDepletedDeviceIDs(ctx context.Context) ([]string, error)
}
