package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"emergency-dispatch/internal/models"
)

const assignmentColumns = `id, alert_id, agency_id, priority, notification_status, assigned_at, response_time`

func scanAssignment(row pgx.Row) (models.Assignment, error) {
	var a models.Assignment
	err := row.Scan(&a.ID, &a.AlertID, &a.AgencyID, &a.Priority, &a.NotificationStatus, &a.AssignedAt, &a.ResponseTime)
	return a, err
}

// CreateAssignment inserts one (alert, agency) pair. A duplicate pair yields ErrConflict.
func (d *DB) CreateAssignment(ctx context.Context, a *models.Assignment) error {
	if a.NotificationStatus == "" {
		a.NotificationStatus = models.NotificationPending
	}
	query := `
        INSERT INTO alert_assignments (alert_id, agency_id, priority, notification_status)
        VALUES ($1, $2, $3, $4)
        RETURNING id, assigned_at`
	err := d.q.QueryRow(ctx, query, a.AlertID, a.AgencyID, a.Priority, a.NotificationStatus).Scan(&a.ID, &a.AssignedAt)
	if err != nil {
		return fmt.Errorf("failed to create assignment for alert %d, agency %d: %w", a.AlertID, a.AgencyID, translate(err))
	}
	return nil
}

func (d *DB) GetAssignment(ctx context.Context, id int64) (models.Assignment, error) {
	a, err := scanAssignment(d.q.QueryRow(ctx, `SELECT `+assignmentColumns+` FROM alert_assignments WHERE id = $1`, id))
	if err != nil {
		return models.Assignment{}, fmt.Errorf("failed to get assignment %d: %w", id, translate(err))
	}
	return a, nil
}

// ListAssignmentsByAlert returns the alert's assignments in priority order.
func (d *DB) ListAssignmentsByAlert(ctx context.Context, alertID int64) ([]models.Assignment, error) {
	return d.queryAssignments(ctx,
		`SELECT `+assignmentColumns+` FROM alert_assignments WHERE alert_id = $1 ORDER BY priority, id`, alertID)
}

// ListAssignmentsByAgency returns the agency's assignments, newest first.
func (d *DB) ListAssignmentsByAgency(ctx context.Context, agencyID int64) ([]models.Assignment, error) {
	return d.queryAssignments(ctx,
		`SELECT `+assignmentColumns+` FROM alert_assignments WHERE agency_id = $1 ORDER BY assigned_at DESC, id DESC`, agencyID)
}

func (d *DB) queryAssignments(ctx context.Context, query string, args ...any) ([]models.Assignment, error) {
	rows, err := d.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var out []models.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (d *DB) UpdateAssignmentStatus(ctx context.Context, id int64, status models.NotificationStatus) error {
	tag, err := d.q.Exec(ctx, `UPDATE alert_assignments SET notification_status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update assignment %d status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to update assignment %d status: %w", id, ErrNotFound)
	}
	return nil
}

// MarkAssignmentResponded records the agency response and flips the
// assignment to DELIVERED.
func (d *DB) MarkAssignmentResponded(ctx context.Context, id int64, at time.Time) error {
	tag, err := d.q.Exec(ctx,
		`UPDATE alert_assignments SET notification_status = $1, response_time = $2 WHERE id = $3`,
		models.NotificationDelivered, at, id)
	if err != nil {
		return fmt.Errorf("failed to mark assignment %d responded: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to mark assignment %d responded: %w", id, ErrNotFound)
	}
	return nil
}

// AverageResponseByAgencyType returns mean seconds from assignment to response.
func (d *DB) AverageResponseByAgencyType(ctx context.Context) (map[models.AgencyType]float64, error) {
	rows, err := d.q.Query(ctx, `
        SELECT ag.type, AVG(EXTRACT(EPOCH FROM (aa.response_time - aa.assigned_at)))
        FROM alert_assignments aa
        JOIN agencies ag ON ag.id = aa.agency_id
        WHERE aa.response_time IS NOT NULL
        GROUP BY ag.type`)
	if err != nil {
		return nil, fmt.Errorf("failed to average response times: %w", err)
	}
	defer rows.Close()

	out := make(map[models.AgencyType]float64)
	for rows.Next() {
		var (
			t   models.AgencyType
			avg float64
		)
		if err := rows.Scan(&t, &avg); err != nil {
			return nil, fmt.Errorf("failed to scan response average: %w", err)
		}
		out[t] = avg
	}
	return out, rows.Err()
}

// CreateAcknowledgment inserts the single acknowledgment for an assignment.
// A second one yields ErrConflict.
func (d *DB) CreateAcknowledgment(ctx context.Context, a *models.Acknowledgment) error {
	query := `
        INSERT INTO acknowledgments (
            assignment_id, acknowledged_by, estimated_arrival, response_message, responder_contact
        )
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, acknowledged_at`
	err := d.q.QueryRow(ctx, query,
		a.AssignmentID, a.AcknowledgedBy, a.EstimatedArrival, a.ResponseMessage, a.ResponderContact,
	).Scan(&a.ID, &a.AcknowledgedAt)
	if err != nil {
		return fmt.Errorf("failed to create acknowledgment for assignment %d: %w", a.AssignmentID, translate(err))
	}
	return nil
}

func (d *DB) GetAcknowledgment(ctx context.Context, assignmentID int64) (models.Acknowledgment, error) {
	var a models.Acknowledgment
	query := `
        SELECT id, assignment_id, acknowledged_by, estimated_arrival, response_message,
               responder_contact, acknowledged_at
        FROM acknowledgments WHERE assignment_id = $1`
	err := d.q.QueryRow(ctx, query, assignmentID).Scan(
		&a.ID, &a.AssignmentID, &a.AcknowledgedBy, &a.EstimatedArrival, &a.ResponseMessage,
		&a.ResponderContact, &a.AcknowledgedAt,
	)
	if err != nil {
		return models.Acknowledgment{}, fmt.Errorf("failed to get acknowledgment for assignment %d: %w", assignmentID, translate(err))
	}
	return a, nil
}
