package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"emergency-dispatch/internal/models"
)

func (d *DB) CreateUser(ctx context.Context, u *models.User) error {
	query := `
        INSERT INTO users (full_name, email, phone, push_token)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at`
	err := d.q.QueryRow(ctx, query, u.FullName, u.Email, u.Phone, u.PushToken).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", translate(err))
	}
	return nil
}

func (d *DB) GetUser(ctx context.Context, id int64) (models.User, error) {
	var u models.User
	query := `SELECT id, full_name, email, phone, push_token, created_at FROM users WHERE id = $1`
	err := d.q.QueryRow(ctx, query, id).Scan(&u.ID, &u.FullName, &u.Email, &u.Phone, &u.PushToken, &u.CreatedAt)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to get user %d: %w", id, translate(err))
	}
	return u, nil
}

const agencyColumns = `id, name, type, contact_email, contact_phone, jurisdiction, address,
        latitude, longitude, is_active, push_token, created_at`

func scanAgency(row pgx.Row) (models.Agency, error) {
	var a models.Agency
	err := row.Scan(
		&a.ID, &a.Name, &a.Type, &a.ContactEmail, &a.ContactPhone, &a.Jurisdiction, &a.Address,
		&a.Latitude, &a.Longitude, &a.Active, &a.PushToken, &a.CreatedAt,
	)
	return a, err
}

func (d *DB) CreateAgency(ctx context.Context, a *models.Agency) error {
	query := `
        INSERT INTO agencies (
            name, type, contact_email, contact_phone, jurisdiction, address,
            latitude, longitude, is_active, push_token
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING id, created_at`
	err := d.q.QueryRow(ctx, query,
		a.Name, a.Type, a.ContactEmail, a.ContactPhone, a.Jurisdiction, a.Address,
		a.Latitude, a.Longitude, a.Active, a.PushToken,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create agency: %w", translate(err))
	}
	return nil
}

func (d *DB) GetAgency(ctx context.Context, id int64) (models.Agency, error) {
	a, err := scanAgency(d.q.QueryRow(ctx, `SELECT `+agencyColumns+` FROM agencies WHERE id = $1`, id))
	if err != nil {
		return models.Agency{}, fmt.Errorf("failed to get agency %d: %w", id, translate(err))
	}
	return a, nil
}

func (d *DB) ListAgencies(ctx context.Context) ([]models.Agency, error) {
	return d.queryAgencies(ctx, `SELECT `+agencyColumns+` FROM agencies ORDER BY id`)
}

// ListActiveAgencies returns active agencies whose type is in types, ordered by id.
func (d *DB) ListActiveAgencies(ctx context.Context, types []models.AgencyType) ([]models.Agency, error) {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return d.queryAgencies(ctx,
		`SELECT `+agencyColumns+` FROM agencies WHERE is_active AND type = ANY($1) ORDER BY id`, names)
}

func (d *DB) queryAgencies(ctx context.Context, query string, args ...any) ([]models.Agency, error) {
	rows, err := d.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list agencies: %w", err)
	}
	defer rows.Close()

	var agencies []models.Agency
	for rows.Next() {
		a, err := scanAgency(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan agency: %w", err)
		}
		agencies = append(agencies, a)
	}
	return agencies, rows.Err()
}

func (d *DB) UpdateAgencyPushToken(ctx context.Context, id int64, token string) error {
	tag, err := d.q.Exec(ctx, `UPDATE agencies SET push_token = $1 WHERE id = $2`, token, id)
	if err != nil {
		return fmt.Errorf("failed to update push token for agency %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to update push token for agency %d: %w", id, ErrNotFound)
	}
	return nil
}
