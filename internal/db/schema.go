package db

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id         BIGSERIAL PRIMARY KEY,
		full_name  VARCHAR(200) NOT NULL DEFAULT '',
		email      VARCHAR(254) NOT NULL UNIQUE,
		phone      VARCHAR(20)  NOT NULL DEFAULT '',
		push_token TEXT         NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ  NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS agencies (
		id            BIGSERIAL PRIMARY KEY,
		name          VARCHAR(200) NOT NULL,
		type          VARCHAR(20)  NOT NULL,
		contact_email VARCHAR(254) NOT NULL DEFAULT '',
		contact_phone VARCHAR(20)  NOT NULL DEFAULT '',
		jurisdiction  TEXT         NOT NULL DEFAULT '',
		address       TEXT         NOT NULL DEFAULT '',
		latitude      DOUBLE PRECISION,
		longitude     DOUBLE PRECISION,
		is_active     BOOLEAN      NOT NULL DEFAULT TRUE,
		push_token    TEXT         NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ  NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS agencies_type_active_idx ON agencies (type, is_active)`,
	`CREATE TABLE IF NOT EXISTS alerts (
		id                   BIGSERIAL PRIMARY KEY,
		user_id              BIGINT      NOT NULL REFERENCES users (id),
		type                 VARCHAR(20) NOT NULL,
		priority             VARCHAR(10) NOT NULL DEFAULT 'CRITICAL',
		description          TEXT        NOT NULL DEFAULT '',
		status               VARCHAR(20) NOT NULL DEFAULT 'PENDING',
		latitude             DOUBLE PRECISION,
		longitude            DOUBLE PRECISION,
		accuracy             DOUBLE PRECISION,
		address              TEXT        NOT NULL DEFAULT '',
		location_captured_at TIMESTAMPTZ,
		created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS alerts_user_idx ON alerts (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS alert_assignments (
		id                  BIGSERIAL PRIMARY KEY,
		alert_id            BIGINT      NOT NULL REFERENCES alerts (id) ON DELETE CASCADE,
		agency_id           BIGINT      NOT NULL REFERENCES agencies (id) ON DELETE CASCADE,
		priority            INTEGER     NOT NULL DEFAULT 1,
		notification_status VARCHAR(10) NOT NULL DEFAULT 'PENDING',
		assigned_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
		response_time       TIMESTAMPTZ,
		CONSTRAINT alert_assignments_alert_agency_key UNIQUE (alert_id, agency_id)
	)`,
	`CREATE TABLE IF NOT EXISTS acknowledgments (
		id                BIGSERIAL PRIMARY KEY,
		assignment_id     BIGINT       NOT NULL UNIQUE REFERENCES alert_assignments (id) ON DELETE CASCADE,
		acknowledged_by   VARCHAR(200) NOT NULL DEFAULT '',
		estimated_arrival INTEGER,
		response_message  TEXT         NOT NULL DEFAULT '',
		responder_contact VARCHAR(50)  NOT NULL DEFAULT '',
		acknowledged_at   TIMESTAMPTZ  NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS notification_logs (
		id            BIGSERIAL PRIMARY KEY,
		assignment_id BIGINT       NOT NULL REFERENCES alert_assignments (id) ON DELETE CASCADE,
		channel_type  VARCHAR(10)  NOT NULL,
		recipient     VARCHAR(200) NOT NULL DEFAULT '',
		status        VARCHAR(10)  NOT NULL,
		retry_count   INTEGER      NOT NULL DEFAULT 0,
		error_message TEXT         NOT NULL DEFAULT '',
		sent_at       TIMESTAMPTZ  NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS notification_logs_assignment_idx ON notification_logs (assignment_id, channel_type, retry_count)`,
	`CREATE TABLE IF NOT EXISTS operational_settings (
		key         VARCHAR(100) PRIMARY KEY,
		value       TEXT         NOT NULL,
		description TEXT         NOT NULL DEFAULT '',
		updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
	)`,
}

// Migrate creates every table and index the service needs. It is idempotent.
func (d *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := d.q.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
