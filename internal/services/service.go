package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"emergency-dispatch/internal/apperr"
	"emergency-dispatch/internal/assignment"
	"emergency-dispatch/internal/audit"
	"emergency-dispatch/internal/db"
	"emergency-dispatch/internal/dispatch"
	"emergency-dispatch/internal/logging"
	"emergency-dispatch/internal/models"
	"emergency-dispatch/internal/queue"
	"emergency-dispatch/internal/realtime"
)

// Dispatcher is the delivery side the services hand assignments to.
// *dispatch.Dispatcher implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, asg models.Assignment)
	SendUserAcknowledgment(ctx context.Context, reporter models.User, notice dispatch.AckNotice, asg models.Assignment)
	SendStatusUpdate(ctx context.Context, asg models.Assignment, status models.AlertStatus)
}

// Publisher fans realtime events out to agency dashboards.
type Publisher interface {
	Publish(agencyID int64, ev realtime.Event)
}

type Options struct {
	// Enqueuer receives new alerts when dispatch is asynchronous. Nil means
	// alerts are dispatched inside the creating request.
	Enqueuer  queue.Enqueuer
	Publisher Publisher
}

// Service implements the alert, agency and admin operations behind the API.
type Service struct {
	store       db.Store
	assignments *assignment.Manager
	dispatcher  Dispatcher
	audit       *audit.Log
	enqueuer    queue.Enqueuer
	publisher   Publisher
	logger      *logging.Logger
	now         func() time.Time
}

func New(store db.Store, dispatcher Dispatcher, logger *logging.Logger, opts Options) *Service {
	return &Service{
		store:       store,
		assignments: assignment.New(store, logger),
		dispatcher:  dispatcher,
		audit:       audit.New(store),
		enqueuer:    opts.Enqueuer,
		publisher:   opts.Publisher,
		logger:      logger,
		now:         time.Now,
	}
}

// AgencySummary is the agency as shown inside an assignment.
type AgencySummary struct {
	ID   int64             `json:"agency_id"`
	Name string            `json:"agency_name"`
	Type models.AgencyType `json:"agency_type"`
}

// AssignmentDetail is an assignment with its agency and acknowledgment, if any.
type AssignmentDetail struct {
	models.Assignment
	Agency         AgencySummary          `json:"agency"`
	Acknowledgment *models.Acknowledgment `json:"acknowledgment"`
	Alert          *models.Alert          `json:"alert,omitempty"`
}

type AlertDetail struct {
	models.Alert
	Assignments []AssignmentDetail `json:"assignments"`
}

func (s *Service) alertDetail(ctx context.Context, alert models.Alert) (AlertDetail, error) {
	asgs, err := s.store.ListAssignmentsByAlert(ctx, alert.ID)
	if err != nil {
		return AlertDetail{}, fmt.Errorf("failed to list assignments for alert %d: %w", alert.ID, err)
	}
	detail := AlertDetail{Alert: alert, Assignments: make([]AssignmentDetail, 0, len(asgs))}
	for _, a := range asgs {
		d, err := s.assignmentDetail(ctx, a)
		if err != nil {
			return AlertDetail{}, err
		}
		detail.Assignments = append(detail.Assignments, d)
	}
	return detail, nil
}

func (s *Service) assignmentDetail(ctx context.Context, a models.Assignment) (AssignmentDetail, error) {
	agency, err := s.store.GetAgency(ctx, a.AgencyID)
	if err != nil {
		return AssignmentDetail{}, fmt.Errorf("failed to load agency %d: %w", a.AgencyID, err)
	}
	d := AssignmentDetail{
		Assignment: a,
		Agency:     AgencySummary{ID: agency.ID, Name: agency.Name, Type: agency.Type},
	}
	ack, err := s.store.GetAcknowledgment(ctx, a.ID)
	switch {
	case err == nil:
		d.Acknowledgment = &ack
	case !errors.Is(err, db.ErrNotFound):
		return AssignmentDetail{}, fmt.Errorf("failed to load acknowledgment for assignment %d: %w", a.ID, err)
	}
	return d, nil
}

// publishToAssigned sends ev to every agency assigned to alertID.
func (s *Service) publishToAssigned(ctx context.Context, alertID int64, ev realtime.Event) {
	if s.publisher == nil {
		return
	}
	asgs, err := s.store.ListAssignmentsByAlert(ctx, alertID)
	if err != nil {
		s.logger.Errorf("Failed to list assignments for %s event on alert %d: %v", ev.Type, alertID, err)
		return
	}
	for _, a := range asgs {
		ev.AssignmentID = a.ID
		s.publisher.Publish(a.AgencyID, ev)
	}
}

func (s *Service) publishAssignment(a models.Assignment, data any) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(a.AgencyID, realtime.Event{
		Type:         realtime.EventAssignmentCreated,
		AlertID:      a.AlertID,
		AssignmentID: a.ID,
		Data:         data,
	})
}

// loadAlert maps a missing alert onto the client-facing not-found error.
func (s *Service) loadAlert(ctx context.Context, alertID int64) (models.Alert, error) {
	alert, err := s.store.GetAlert(ctx, alertID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return models.Alert{}, apperr.Wrap(apperr.KindNotFound, err, "Alert not found.")
		}
		return models.Alert{}, fmt.Errorf("failed to load alert %d: %w", alertID, err)
	}
	return alert, nil
}
