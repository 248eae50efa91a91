package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kirimku/smartseller-storefront-sub001/internal/storage"
)

// SaveSession stores session data. The table holds a single row -
// there is at most one customer session per client installation.
func (s *Storage) SaveSession(ctx context.Context, rec *storage.SessionRecord) error {
	query := `
		INSERT INTO session (id, device_id, refresh_token, profile, key_salt, updated_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			device_id = excluded.device_id,
			refresh_token = excluded.refresh_token,
			profile = excluded.profile,
			key_salt = excluded.key_salt,
			updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		rec.DeviceID, rec.RefreshToken, rec.Profile, rec.KeySalt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}

// GetSession retrieves stored session data
func (s *Storage) GetSession(ctx context.Context) (*storage.SessionRecord, error) {
	query := `
		SELECT device_id, refresh_token, profile, key_salt, updated_at
		FROM session WHERE id = 1`

	rec := &storage.SessionRecord{}
	err := s.db.QueryRowContext(ctx, query).Scan(
		&rec.DeviceID, &rec.RefreshToken, &rec.Profile, &rec.KeySalt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return rec, nil
}

// DeleteSession removes stored session data (logout)
func (s *Storage) DeleteSession(ctx context.Context) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM session WHERE id = 1`)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrSessionNotFound
	}

	return nil
}
