package sqlite

import (
	"context"
	"time"

	"github.com/paddockhq/gatehouse/internal/auth/domain"
)

type devicesRepo struct {
	db dbtx
}

func (r *devicesRepo) GetDeviceByUserID(ctx context.Context, userID string) (domain.Device, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, device_type, secret_key, created_at
		 FROM devices WHERE user_id = ?`, userID)

	var d domain.Device
	if err := row.Scan(&d.ID, &d.UserID, &d.Type, &d.SecretKey, &d.CreatedAt); err != nil {
		return domain.Device{}, mapNotFound(err)
	}
	return d, nil
}

func (r *devicesRepo) CreateDevice(ctx context.Context, d domain.Device) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO devices (id, user_id, device_type, secret_key, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		d.ID, d.UserID, d.Type, d.SecretKey, d.CreatedAt)
	return mapConstraint(err)
}

func (r *devicesRepo) DeleteDeviceByUserID(ctx context.Context, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE user_id = ?`, userID)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}
