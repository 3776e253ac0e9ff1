// Package assignment persists alert-to-agency assignments and moves the alert
// out of PENDING once it has somewhere to go.
package assignment

import (
	"context"
	"errors"
	"fmt"

	"emergency-dispatch/internal/apperr"
	"emergency-dispatch/internal/db"
	"emergency-dispatch/internal/logging"
	"emergency-dispatch/internal/models"
	"emergency-dispatch/internal/ranking"
)

type Manager struct {
	store  db.Store
	logger *logging.Logger
}

func New(store db.Store, logger *logging.Logger) *Manager {
	return &Manager{store: store, logger: logger}
}

// WithStore returns a manager bound to s, typically an open transaction.
func (m *Manager) WithStore(s db.Store) *Manager {
	return &Manager{store: s, logger: m.logger}
}

// CreateAssignments stores one assignment per ranked agency, priority being
// the 1-based rank, and flips the alert to DISPATCHED. All or nothing.
func (m *Manager) CreateAssignments(ctx context.Context, alert models.Alert, ranked []ranking.Ranked) ([]models.Assignment, error) {
	var created []models.Assignment
	err := m.store.WithTx(ctx, func(tx db.Store) error {
		created = created[:0]
		for i, r := range ranked {
			a := models.Assignment{
				AlertID:            alert.ID,
				AgencyID:           r.Agency.ID,
				Priority:           i + 1,
				NotificationStatus: models.NotificationPending,
			}
			if err := tx.CreateAssignment(ctx, &a); err != nil {
				if errors.Is(err, db.ErrConflict) {
					return apperr.Wrap(apperr.KindConflict, err, "This agency is already assigned to this alert.")
				}
				return fmt.Errorf("failed to create assignment for agency %d: %w", r.Agency.ID, err)
			}
			created = append(created, a)
		}
		if len(created) == 0 {
			return nil
		}
		return markDispatched(ctx, tx, alert.ID)
	})
	if err != nil {
		return nil, err
	}

	m.logger.Infof("Created %d assignments for alert %d", len(created), alert.ID)
	return created, nil
}

// AssignManual adds one agency to an existing alert at the next free rank.
func (m *Manager) AssignManual(ctx context.Context, alertID, agencyID int64) (models.Assignment, models.Agency, error) {
	var (
		created models.Assignment
		agency  models.Agency
	)
	err := m.store.WithTx(ctx, func(tx db.Store) error {
		if _, err := tx.GetAlert(ctx, alertID); err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return apperr.Wrap(apperr.KindNotFound, err, "Alert not found.")
			}
			return fmt.Errorf("failed to load alert: %w", err)
		}

		var err error
		agency, err = tx.GetAgency(ctx, agencyID)
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("failed to load agency: %w", err)
		}
		if err != nil || !agency.Active {
			return apperr.NotFound("Agency not found or inactive.")
		}

		existing, err := tx.ListAssignmentsByAlert(ctx, alertID)
		if err != nil {
			return fmt.Errorf("failed to list assignments: %w", err)
		}
		next := 1
		for _, a := range existing {
			if a.AgencyID == agencyID {
				return apperr.Conflict("This agency is already assigned to this alert.")
			}
			if a.Priority >= next {
				next = a.Priority + 1
			}
		}

		created = models.Assignment{
			AlertID:            alertID,
			AgencyID:           agencyID,
			Priority:           next,
			NotificationStatus: models.NotificationPending,
		}
		if err := tx.CreateAssignment(ctx, &created); err != nil {
			if errors.Is(err, db.ErrConflict) {
				return apperr.Wrap(apperr.KindConflict, err, "This agency is already assigned to this alert.")
			}
			return fmt.Errorf("failed to create assignment: %w", err)
		}
		return markDispatched(ctx, tx, alertID)
	})
	if err != nil {
		return models.Assignment{}, models.Agency{}, err
	}

	m.logger.Infof("Manually assigned alert %d to agency %d at priority %d", alertID, agencyID, created.Priority)
	return created, agency, nil
}

// markDispatched moves a PENDING alert to DISPATCHED. Other statuses are left alone.
func markDispatched(ctx context.Context, tx db.Store, alertID int64) error {
	alert, err := tx.GetAlert(ctx, alertID)
	if err != nil {
		return fmt.Errorf("failed to reload alert: %w", err)
	}
	if alert.Status != models.StatusPending {
		return nil
	}
	if err := tx.UpdateAlertStatus(ctx, alertID, models.StatusDispatched); err != nil {
		return fmt.Errorf("failed to mark alert dispatched: %w", err)
	}
	return nil
}
