package db

import (
	"context"
	"fmt"

	"emergency-dispatch/internal/models"
)

func (d *DB) GetSetting(ctx context.Context, key string) (models.Setting, error) {
	var s models.Setting
	err := d.q.QueryRow(ctx,
		`SELECT key, value, description, updated_at FROM operational_settings WHERE key = $1`, key,
	).Scan(&s.Key, &s.Value, &s.Description, &s.UpdatedAt)
	if err != nil {
		return models.Setting{}, fmt.Errorf("failed to get setting %s: %w", key, translate(err))
	}
	return s, nil
}

func (d *DB) ListSettings(ctx context.Context) ([]models.Setting, error) {
	rows, err := d.q.Query(ctx, `SELECT key, value, description, updated_at FROM operational_settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	defer rows.Close()

	var out []models.Setting
	for rows.Next() {
		var s models.Setting
		if err := rows.Scan(&s.Key, &s.Value, &s.Description, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// EnsureSetting inserts s unless the key already exists.
func (d *DB) EnsureSetting(ctx context.Context, s models.Setting) error {
	_, err := d.q.Exec(ctx, `
        INSERT INTO operational_settings (key, value, description)
        VALUES ($1, $2, $3)
        ON CONFLICT (key) DO NOTHING`, s.Key, s.Value, s.Description)
	if err != nil {
		return fmt.Errorf("failed to seed setting %s: %w", s.Key, err)
	}
	return nil
}

func (d *DB) UpdateSettingValue(ctx context.Context, key, value string) error {
	tag, err := d.q.Exec(ctx,
		`UPDATE operational_settings SET value = $1, updated_at = now() WHERE key = $2`, value, key)
	if err != nil {
		return fmt.Errorf("failed to update setting %s: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to update setting %s: %w", key, ErrNotFound)
	}
	return nil
}
