package services

import (
	"context"
	"fmt"
	"strings"

	"emergency-dispatch/internal/apperr"
	"emergency-dispatch/internal/auth"
	"emergency-dispatch/internal/db"
	"emergency-dispatch/internal/models"
	"emergency-dispatch/internal/ranking"
	"emergency-dispatch/internal/realtime"
)

type CreateAlertInput struct {
	Type        models.AlertType `json:"alert_type"`
	Priority    models.Priority  `json:"priority_level"`
	Description string           `json:"description"`
	Latitude    *float64         `json:"latitude"`
	Longitude   *float64         `json:"longitude"`
	Accuracy    *float64         `json:"accuracy"`
	Address     string           `json:"address"`
}

func (in *CreateAlertInput) validate() error {
	if !in.Type.Valid() {
		return apperr.Validation("alert_type must be one of: %s.", joinValues(models.AlertTypes))
	}
	if in.Priority == "" {
		in.Priority = models.PriorityCritical
	}
	if !in.Priority.Valid() {
		return apperr.Validation("priority_level must be one of: %s.", joinValues(models.Priorities))
	}
	if in.Latitude == nil || in.Longitude == nil {
		return apperr.Validation("latitude and longitude are required.")
	}
	if loc := (models.Location{Latitude: *in.Latitude}); !loc.Valid() {
		return apperr.Validation("Latitude must be between -90 and 90.")
	}
	if loc := (models.Location{Longitude: *in.Longitude}); !loc.Valid() {
		return apperr.Validation("Longitude must be between -180 and 180.")
	}
	return nil
}

// CreateAlert stores the alert with its location, assigns every eligible
// active agency in rank order and dispatches the assignments. Delivery
// failures never fail the request.
func (s *Service) CreateAlert(ctx context.Context, id auth.Identity, in CreateAlertInput) (AlertDetail, error) {
	if err := in.validate(); err != nil {
		return AlertDetail{}, err
	}

	alert := models.Alert{
		UserID:      id.UserID,
		Type:        in.Type,
		Priority:    in.Priority,
		Description: strings.TrimSpace(in.Description),
		Status:      models.StatusPending,
		Location: &models.Location{
			Latitude:  *in.Latitude,
			Longitude: *in.Longitude,
			Accuracy:  in.Accuracy,
			Address:   in.Address,
		},
	}

	var created []models.Assignment
	err := s.store.WithTx(ctx, func(tx db.Store) error {
		if err := tx.CreateAlert(ctx, &alert); err != nil {
			return fmt.Errorf("failed to create alert: %w", err)
		}
		agencies, err := tx.ListActiveAgencies(ctx, ranking.EligibleTypes(alert.Type))
		if err != nil {
			return fmt.Errorf("failed to list eligible agencies: %w", err)
		}
		ranked := ranking.Rank(agencies, alert.Type, alert.Location)
		created, err = s.assignments.WithStore(tx).CreateAssignments(ctx, alert, ranked)
		return err
	})
	if err != nil {
		return AlertDetail{}, err
	}
	s.logger.WithField("alert_id", alert.ID).Infof("Alert created: type=%s priority=%s assignments=%d", alert.Type, alert.Priority, len(created))

	for _, a := range created {
		s.publishAssignment(a, alert)
	}
	s.dispatchAlert(ctx, alert.ID, created)

	alert, err = s.loadAlert(ctx, alert.ID)
	if err != nil {
		return AlertDetail{}, err
	}
	return s.alertDetail(ctx, alert)
}

// dispatchAlert hands the alert to the queue when one is configured and falls
// back to inline dispatch when it is not or when enqueueing fails.
func (s *Service) dispatchAlert(ctx context.Context, alertID int64, asgs []models.Assignment) {
	if len(asgs) == 0 {
		s.logger.Warnf("Alert %d has no eligible agencies, nothing to dispatch", alertID)
		return
	}
	if s.enqueuer != nil {
		err := s.enqueuer.Enqueue(ctx, alertID)
		if err == nil {
			return
		}
		s.logger.Errorf("Enqueue dispatch for alert %d failed, dispatching inline: %v", alertID, err)
	}
	for _, a := range asgs {
		s.dispatcher.Dispatch(ctx, a)
	}
}

// GetAlert is open to the alert owner, agency staff and admins.
func (s *Service) GetAlert(ctx context.Context, id auth.Identity, alertID int64) (AlertDetail, error) {
	alert, err := s.loadAlert(ctx, alertID)
	if err != nil {
		return AlertDetail{}, err
	}
	if alert.UserID != id.UserID && !id.IsAgency() && !id.IsAdmin() {
		return AlertDetail{}, apperr.Forbidden("Permission denied.")
	}
	return s.alertDetail(ctx, alert)
}

// AlertHistory lists the caller's alerts, newest first.
func (s *Service) AlertHistory(ctx context.Context, id auth.Identity) ([]models.Alert, error) {
	alerts, err := s.store.ListAlerts(ctx, models.AlertFilter{UserID: id.UserID})
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts for user %d: %w", id.UserID, err)
	}
	return alerts, nil
}

type LocationInput struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Accuracy  *float64 `json:"accuracy"`
}

type LocationUpdate struct {
	Latitude  string   `json:"latitude"`
	Longitude string   `json:"longitude"`
	Accuracy  *float64 `json:"accuracy"`
	MapsURL   string   `json:"maps_url"`
}

// ownAlert loads an alert the caller owns. Other people's alerts are reported
// as missing.
func (s *Service) ownAlert(ctx context.Context, id auth.Identity, alertID int64) (models.Alert, error) {
	alert, err := s.loadAlert(ctx, alertID)
	if err != nil {
		return models.Alert{}, err
	}
	if alert.UserID != id.UserID {
		return models.Alert{}, apperr.NotFound("Alert not found.")
	}
	return alert, nil
}

// UpdateLocation records a new reporter position and streams it to the
// assigned agencies.
func (s *Service) UpdateLocation(ctx context.Context, id auth.Identity, alertID int64, in LocationInput) (LocationUpdate, error) {
	alert, err := s.ownAlert(ctx, id, alertID)
	if err != nil {
		return LocationUpdate{}, err
	}
	if alert.Status.Terminal() {
		return LocationUpdate{}, apperr.Validation("Location cannot be updated for a resolved or cancelled alert.")
	}
	if in.Latitude == nil || in.Longitude == nil {
		return LocationUpdate{}, apperr.Validation("latitude and longitude are required.")
	}
	if loc := (models.Location{Latitude: *in.Latitude, Longitude: *in.Longitude}); !loc.Valid() {
		return LocationUpdate{}, apperr.Validation("Invalid coordinates.")
	}

	loc, err := s.store.UpdateAlertLocation(ctx, alert.ID, *in.Latitude, *in.Longitude, in.Accuracy)
	if err != nil {
		return LocationUpdate{}, fmt.Errorf("failed to update location of alert %d: %w", alert.ID, err)
	}

	out := LocationUpdate{
		Latitude:  models.FormatCoord(loc.Latitude),
		Longitude: models.FormatCoord(loc.Longitude),
		Accuracy:  loc.Accuracy,
		MapsURL:   loc.MapsURL(),
	}
	s.publishToAssigned(ctx, alert.ID, realtime.Event{
		Type:    realtime.EventAlertLocation,
		AlertID: alert.ID,
		Data:    out,
	})
	return out, nil
}

// CancelAlert withdraws an alert that no agency has acknowledged yet.
func (s *Service) CancelAlert(ctx context.Context, id auth.Identity, alertID int64) error {
	alert, err := s.ownAlert(ctx, id, alertID)
	if err != nil {
		return err
	}
	if alert.Status != models.StatusPending && alert.Status != models.StatusDispatched {
		return apperr.Validation("Cannot cancel an alert with status '%s'.", alert.Status)
	}
	if err := s.store.UpdateAlertStatus(ctx, alert.ID, models.StatusCancelled); err != nil {
		return fmt.Errorf("failed to cancel alert %d: %w", alert.ID, err)
	}
	s.logger.WithField("alert_id", alert.ID).Info("Alert cancelled by reporter")

	s.publishToAssigned(ctx, alert.ID, realtime.Event{
		Type:    realtime.EventAlertCancelled,
		AlertID: alert.ID,
	})
	return nil
}

func joinValues[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}
