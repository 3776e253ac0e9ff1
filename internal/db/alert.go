package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"emergency-dispatch/internal/models"
)

const alertColumns = `id, user_id, type, priority, description, status,
        latitude, longitude, accuracy, address, location_captured_at, created_at, updated_at`

func scanAlert(row pgx.Row) (models.Alert, error) {
	var (
		a          models.Alert
		lat, lng   *float64
		accuracy   *float64
		address    string
		capturedAt *time.Time
	)
	err := row.Scan(
		&a.ID, &a.UserID, &a.Type, &a.Priority, &a.Description, &a.Status,
		&lat, &lng, &accuracy, &address, &capturedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return models.Alert{}, err
	}
	if lat != nil && lng != nil {
		a.Location = &models.Location{Latitude: *lat, Longitude: *lng, Accuracy: accuracy, Address: address}
		if capturedAt != nil {
			a.Location.CapturedAt = *capturedAt
		}
	}
	return a, nil
}

// CreateAlert inserts a new alert and fills its generated fields.
func (d *DB) CreateAlert(ctx context.Context, a *models.Alert) error {
	var lat, lng, accuracy *float64
	var address string
	var capturedAt *time.Time
	if a.Location != nil {
		lat, lng, accuracy = &a.Location.Latitude, &a.Location.Longitude, a.Location.Accuracy
		address = a.Location.Address
		now := time.Now()
		if !a.Location.CapturedAt.IsZero() {
			now = a.Location.CapturedAt
		}
		capturedAt = &now
	}

	query := `
        INSERT INTO alerts (
            user_id, type, priority, description, status,
            latitude, longitude, accuracy, address, location_captured_at
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING id, created_at, updated_at`
	err := d.q.QueryRow(ctx, query,
		a.UserID, a.Type, a.Priority, a.Description, a.Status,
		lat, lng, accuracy, address, capturedAt,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", translate(err))
	}
	if a.Location != nil && capturedAt != nil {
		a.Location.CapturedAt = *capturedAt
	}
	return nil
}

func (d *DB) GetAlert(ctx context.Context, id int64) (models.Alert, error) {
	a, err := scanAlert(d.q.QueryRow(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = $1`, id))
	if err != nil {
		return models.Alert{}, fmt.Errorf("failed to get alert %d: %w", id, translate(err))
	}
	return a, nil
}

func alertWhere(f models.AlertFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.UserID != 0 {
		add("user_id = $%d", f.UserID)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.Type != "" {
		add("type = $%d", f.Type)
	}
	if f.Priority != "" {
		add("priority = $%d", f.Priority)
	}
	if !f.CreatedSince.IsZero() {
		add("created_at >= $%d", f.CreatedSince)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListAlerts returns matching alerts, newest first.
func (d *DB) ListAlerts(ctx context.Context, f models.AlertFilter) ([]models.Alert, error) {
	where, args := alertWhere(f)
	rows, err := d.q.Query(ctx, `SELECT `+alertColumns+` FROM alerts`+where+` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func (d *DB) CountAlerts(ctx context.Context, f models.AlertFilter) (int, error) {
	where, args := alertWhere(f)
	var total int
	if err := d.q.QueryRow(ctx, `SELECT COUNT(*) FROM alerts`+where, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count alerts: %w", err)
	}
	return total, nil
}

func (d *DB) UpdateAlertStatus(ctx context.Context, id int64, status models.AlertStatus) error {
	tag, err := d.q.Exec(ctx, `UPDATE alerts SET status = $1, updated_at = now() WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update status for alert %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to update status for alert %d: %w", id, ErrNotFound)
	}
	return nil
}

// UpdateAlertLocation moves the alert position. A nil accuracy keeps the stored one.
func (d *DB) UpdateAlertLocation(ctx context.Context, id int64, lat, lng float64, accuracy *float64) (models.Location, error) {
	query := `
        UPDATE alerts
        SET latitude = $1, longitude = $2, accuracy = COALESCE($3, accuracy),
            location_captured_at = COALESCE(location_captured_at, now()), updated_at = now()
        WHERE id = $4
        RETURNING latitude, longitude, accuracy, address, location_captured_at`
	var loc models.Location
	err := d.q.QueryRow(ctx, query, lat, lng, accuracy, id).Scan(
		&loc.Latitude, &loc.Longitude, &loc.Accuracy, &loc.Address, &loc.CapturedAt,
	)
	if err != nil {
		return models.Location{}, fmt.Errorf("failed to update location for alert %d: %w", id, translate(err))
	}
	return loc, nil
}
