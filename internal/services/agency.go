package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"emergency-dispatch/internal/apperr"
	"emergency-dispatch/internal/auth"
	"emergency-dispatch/internal/db"
	"emergency-dispatch/internal/dispatch"
	"emergency-dispatch/internal/models"
)

// AgencyAssignments lists the caller agency's assignments, newest first, each
// with its alert.
func (s *Service) AgencyAssignments(ctx context.Context, id auth.Identity) ([]AssignmentDetail, error) {
	asgs, err := s.store.ListAssignmentsByAgency(ctx, id.AgencyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments for agency %d: %w", id.AgencyID, err)
	}
	out := make([]AssignmentDetail, 0, len(asgs))
	for _, a := range asgs {
		d, err := s.assignmentDetail(ctx, a)
		if err != nil {
			return nil, err
		}
		alert, err := s.store.GetAlert(ctx, a.AlertID)
		if err != nil {
			return nil, fmt.Errorf("failed to load alert %d: %w", a.AlertID, err)
		}
		d.Alert = &alert
		out = append(out, d)
	}
	return out, nil
}

// agencyAssignment loads an assignment that belongs to the caller's agency.
func (s *Service) agencyAssignment(ctx context.Context, id auth.Identity, assignmentID int64) (models.Assignment, error) {
	a, err := s.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return models.Assignment{}, apperr.Wrap(apperr.KindNotFound, err, "Assignment not found.")
		}
		return models.Assignment{}, fmt.Errorf("failed to load assignment %d: %w", assignmentID, err)
	}
	if a.AgencyID != id.AgencyID {
		return models.Assignment{}, apperr.NotFound("Assignment not found.")
	}
	return a, nil
}

type AckInput struct {
	AcknowledgedBy   string `json:"acknowledged_by"`
	EstimatedArrival *int   `json:"estimated_arrival"`
	ResponseMessage  string `json:"response_message"`
	ResponderContact string `json:"responder_contact"`
}

func (in AckInput) validate() error {
	if strings.TrimSpace(in.AcknowledgedBy) == "" {
		return apperr.Validation("acknowledged_by is required.")
	}
	if in.EstimatedArrival != nil && *in.EstimatedArrival < 0 {
		return apperr.Validation("estimated_arrival cannot be negative.")
	}
	return nil
}

// Acknowledge records the agency's acknowledgment, marks the assignment
// DELIVERED and the alert ACKNOWLEDGED, then tells the reporter.
func (s *Service) Acknowledge(ctx context.Context, id auth.Identity, assignmentID int64, in AckInput) (models.Acknowledgment, error) {
	asg, err := s.agencyAssignment(ctx, id, assignmentID)
	if err != nil {
		return models.Acknowledgment{}, err
	}
	_, err = s.store.GetAcknowledgment(ctx, asg.ID)
	if err == nil {
		return models.Acknowledgment{}, apperr.Conflict("This assignment has already been acknowledged.")
	}
	if !errors.Is(err, db.ErrNotFound) {
		return models.Acknowledgment{}, fmt.Errorf("failed to check acknowledgment: %w", err)
	}
	if err := in.validate(); err != nil {
		return models.Acknowledgment{}, err
	}

	ack := models.Acknowledgment{
		AssignmentID:     asg.ID,
		AcknowledgedBy:   strings.TrimSpace(in.AcknowledgedBy),
		EstimatedArrival: in.EstimatedArrival,
		ResponseMessage:  in.ResponseMessage,
		ResponderContact: in.ResponderContact,
	}
	respondedAt := s.now()
	err = s.store.WithTx(ctx, func(tx db.Store) error {
		if err := tx.CreateAcknowledgment(ctx, &ack); err != nil {
			if errors.Is(err, db.ErrConflict) {
				return apperr.Wrap(apperr.KindConflict, err, "This assignment has already been acknowledged.")
			}
			return fmt.Errorf("failed to create acknowledgment: %w", err)
		}
		if err := tx.MarkAssignmentResponded(ctx, asg.ID, respondedAt); err != nil {
			return fmt.Errorf("failed to mark assignment responded: %w", err)
		}
		if err := tx.UpdateAlertStatus(ctx, asg.AlertID, models.StatusAcknowledged); err != nil {
			return fmt.Errorf("failed to mark alert acknowledged: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Acknowledgment{}, err
	}
	asg.NotificationStatus = models.NotificationDelivered
	asg.ResponseTime = &respondedAt
	s.logger.WithField("assignment_id", asg.ID).Infof("Assignment acknowledged by agency %d", id.AgencyID)

	s.notifyAcknowledged(ctx, asg, ack)
	return ack, nil
}

func (s *Service) notifyAcknowledged(ctx context.Context, asg models.Assignment, ack models.Acknowledgment) {
	alert, err := s.store.GetAlert(ctx, asg.AlertID)
	if err != nil {
		s.logger.Errorf("Skipping acknowledgment notice for alert %d: %v", asg.AlertID, err)
		return
	}
	reporter, err := s.store.GetUser(ctx, alert.UserID)
	if err != nil {
		s.logger.Errorf("Skipping acknowledgment notice, reporter %d: %v", alert.UserID, err)
		return
	}
	agency, err := s.store.GetAgency(ctx, asg.AgencyID)
	if err != nil {
		s.logger.Errorf("Skipping acknowledgment notice, agency %d: %v", asg.AgencyID, err)
		return
	}
	s.dispatcher.SendUserAcknowledgment(ctx, reporter, dispatch.AckNotice{
		AlertID:          alert.ID,
		AgencyName:       agency.Name,
		EstimatedArrival: ack.EstimatedArrival,
	}, asg)
}

// UpdateStatus moves the assigned alert to RESPONDING or RESOLVED and tells
// the reporter.
func (s *Service) UpdateStatus(ctx context.Context, id auth.Identity, assignmentID int64, status models.AlertStatus) (models.Alert, error) {
	if status != models.StatusResponding && status != models.StatusResolved {
		return models.Alert{}, apperr.Validation("Status must be one of: %s, %s.", models.StatusResponding, models.StatusResolved)
	}
	asg, err := s.agencyAssignment(ctx, id, assignmentID)
	if err != nil {
		return models.Alert{}, err
	}
	if err := s.store.UpdateAlertStatus(ctx, asg.AlertID, status); err != nil {
		return models.Alert{}, fmt.Errorf("failed to update alert %d status: %w", asg.AlertID, err)
	}
	s.logger.WithField("alert_id", asg.AlertID).Infof("Alert status updated to %s by agency %d", status, id.AgencyID)

	s.dispatcher.SendStatusUpdate(ctx, asg, status)
	return s.loadAlert(ctx, asg.AlertID)
}

type LocationView struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Accuracy   *float64  `json:"accuracy"`
	Address    string    `json:"address"`
	CapturedAt time.Time `json:"captured_at"`
	MapsURL    string    `json:"maps_url"`
}

// AssignmentLocation returns the reporter's last known position for an
// assignment of the caller's agency.
func (s *Service) AssignmentLocation(ctx context.Context, id auth.Identity, assignmentID int64) (LocationView, error) {
	asg, err := s.agencyAssignment(ctx, id, assignmentID)
	if err != nil {
		return LocationView{}, err
	}
	alert, err := s.loadAlert(ctx, asg.AlertID)
	if err != nil {
		return LocationView{}, err
	}
	if alert.Location == nil {
		return LocationView{}, apperr.NotFound("No location data for this alert.")
	}
	loc := alert.Location
	return LocationView{
		Latitude:   loc.Latitude,
		Longitude:  loc.Longitude,
		Accuracy:   loc.Accuracy,
		Address:    loc.Address,
		CapturedAt: loc.CapturedAt,
		MapsURL:    loc.MapsURL(),
	}, nil
}

// RegisterDevice stores the push token alerts for the caller's agency go to.
func (s *Service) RegisterDevice(ctx context.Context, id auth.Identity, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return apperr.Validation("push_token is required.")
	}
	if err := s.store.UpdateAgencyPushToken(ctx, id.AgencyID, token); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return apperr.Wrap(apperr.KindNotFound, err, "Agency not found.")
		}
		return fmt.Errorf("failed to register device for agency %d: %w", id.AgencyID, err)
	}
	s.logger.Infof("Registered push device for agency %d", id.AgencyID)
	return nil
}
