package db

import (
	"context"
	"fmt"
	"strings"

	"emergency-dispatch/internal/models"
)

// CreateNotificationLog appends one delivery attempt. Log rows are never updated.
func (d *DB) CreateNotificationLog(ctx context.Context, l *models.NotificationLog) error {
	query := `
        INSERT INTO notification_logs (
            assignment_id, channel_type, recipient, status, retry_count, error_message, sent_at
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id`
	err := d.q.QueryRow(ctx, query,
		l.AssignmentID, l.Channel, l.Recipient, l.Status, l.RetryCount, l.Error, l.SentAt,
	).Scan(&l.ID)
	if err != nil {
		return fmt.Errorf("failed to create notification log: %w", translate(err))
	}
	return nil
}

func logWhere(f models.LogFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.AssignmentID != 0 {
		args = append(args, f.AssignmentID)
		conds = append(conds, fmt.Sprintf("assignment_id = $%d", len(args)))
	}
	if f.Channel != "" {
		args = append(args, f.Channel)
		conds = append(conds, fmt.Sprintf("channel_type = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListNotificationLogs returns matching attempts, newest first.
func (d *DB) ListNotificationLogs(ctx context.Context, f models.LogFilter) ([]models.NotificationLog, error) {
	where, args := logWhere(f)
	query := `
        SELECT id, assignment_id, channel_type, recipient, status, retry_count, error_message, sent_at
        FROM notification_logs` + where + `
        ORDER BY sent_at DESC, id DESC`
	rows, err := d.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notification logs: %w", err)
	}
	defer rows.Close()

	var logs []models.NotificationLog
	for rows.Next() {
		var l models.NotificationLog
		if err := rows.Scan(&l.ID, &l.AssignmentID, &l.Channel, &l.Recipient, &l.Status,
			&l.RetryCount, &l.Error, &l.SentAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (d *DB) DeliveryCounts(ctx context.Context, f models.LogFilter) (models.DeliveryCounts, error) {
	where, args := logWhere(f)
	query := `
        SELECT COUNT(*),
               COUNT(*) FILTER (WHERE status = 'SENT'),
               COUNT(*) FILTER (WHERE status = 'FAILED')
        FROM notification_logs` + where
	var c models.DeliveryCounts
	if err := d.q.QueryRow(ctx, query, args...).Scan(&c.Total, &c.Sent, &c.Failed); err != nil {
		return models.DeliveryCounts{}, fmt.Errorf("failed to count notification logs: %w", err)
	}
	return c, nil
}
