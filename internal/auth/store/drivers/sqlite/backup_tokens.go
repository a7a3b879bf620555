package sqlite

import (
	"context"

	"github.com/paddockhq/gatehouse/internal/auth/domain"
	"github.com/paddockhq/gatehouse/internal/auth/store"
)

type backupTokensRepo struct {
	db dbtx
}

func (r *backupTokensRepo) CreateBackupToken(ctx context.Context, t domain.BackupToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO backup_tokens (id, device_id, code) VALUES (?, ?, ?)`,
		t.ID, t.DeviceID, t.Code)
	return mapConstraint(err)
}

func (r *backupTokensRepo) CountDeviceBackupTokens(ctx context.Context, deviceID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM backup_tokens WHERE device_id = ?`, deviceID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ConsumeBackupToken deletes the matching code in one statement. Under
// concurrent submissions of the same code only one DELETE affects a row;
// the rest get ErrNotFound.
func (r *backupTokensRepo) ConsumeBackupToken(ctx context.Context, deviceID string, code string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM backup_tokens WHERE device_id = ? AND code = ?`, deviceID, code)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *backupTokensRepo) ListDepletedDeviceIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT d.id FROM devices d
		 LEFT JOIN backup_tokens bt ON bt.device_id = d.id
		 GROUP BY d.id
		 HAVING COUNT(bt.id) = 0`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
