package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"emergency-dispatch/internal/apperr"
	"emergency-dispatch/internal/audit"
	"emergency-dispatch/internal/db"
	"emergency-dispatch/internal/models"
	"emergency-dispatch/internal/settings"
)

// AssignAlert adds one agency to an alert and dispatches it straight away.
func (s *Service) AssignAlert(ctx context.Context, alertID, agencyID int64) (string, models.Assignment, error) {
	if agencyID == 0 {
		return "", models.Assignment{}, apperr.Validation("agency_id is required.")
	}
	asg, agency, err := s.assignments.AssignManual(ctx, alertID, agencyID)
	if err != nil {
		return "", models.Assignment{}, err
	}

	s.publishAssignment(asg, nil)
	s.dispatcher.Dispatch(ctx, asg)

	if refreshed, err := s.store.GetAssignment(ctx, asg.ID); err == nil {
		asg = refreshed
	}
	return fmt.Sprintf("Alert #%d assigned to %s and dispatched.", alertID, agency.Name), asg, nil
}

func (s *Service) ListAlerts(ctx context.Context, f models.AlertFilter) ([]models.Alert, error) {
	switch {
	case f.Status != "" && !f.Status.Valid():
		return nil, apperr.Validation("Unknown status '%s'.", f.Status)
	case f.Type != "" && !f.Type.Valid():
		return nil, apperr.Validation("Unknown alert type '%s'.", f.Type)
	case f.Priority != "" && !f.Priority.Valid():
		return nil, apperr.Validation("Unknown priority '%s'.", f.Priority)
	}
	alerts, err := s.store.ListAlerts(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, nil
}

func (s *Service) ListAgencies(ctx context.Context) ([]models.Agency, error) {
	agencies, err := s.store.ListAgencies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list agencies: %w", err)
	}
	return agencies, nil
}

type AgencyInput struct {
	Name         string            `json:"agency_name"`
	Type         models.AgencyType `json:"agency_type"`
	ContactEmail string            `json:"contact_email"`
	ContactPhone string            `json:"contact_phone"`
	Jurisdiction string            `json:"jurisdiction"`
	Address      string            `json:"address"`
	Latitude     *float64          `json:"latitude"`
	Longitude    *float64          `json:"longitude"`
	Active       *bool             `json:"is_active"`
}

func (in AgencyInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return apperr.Validation("agency_name is required.")
	}
	if !in.Type.Valid() {
		return apperr.Validation("agency_type must be one of: %s.", joinValues(models.AgencyTypes))
	}
	if (in.Latitude == nil) != (in.Longitude == nil) {
		return apperr.Validation("latitude and longitude must be set together.")
	}
	if in.Latitude != nil {
		if loc := (models.Location{Latitude: *in.Latitude, Longitude: *in.Longitude}); !loc.Valid() {
			return apperr.Validation("Invalid coordinates.")
		}
	}
	return nil
}

func (s *Service) CreateAgency(ctx context.Context, in AgencyInput) (models.Agency, error) {
	if err := in.validate(); err != nil {
		return models.Agency{}, err
	}
	agency := models.Agency{
		Name:         strings.TrimSpace(in.Name),
		Type:         in.Type,
		ContactEmail: strings.TrimSpace(in.ContactEmail),
		ContactPhone: strings.TrimSpace(in.ContactPhone),
		Jurisdiction: in.Jurisdiction,
		Address:      in.Address,
		Latitude:     in.Latitude,
		Longitude:    in.Longitude,
		Active:       in.Active == nil || *in.Active,
	}
	if err := s.store.CreateAgency(ctx, &agency); err != nil {
		return models.Agency{}, fmt.Errorf("failed to create agency: %w", err)
	}
	s.logger.Infof("Created agency %d (%s, %s)", agency.ID, agency.Name, agency.Type)
	return agency, nil
}

func (s *Service) ListNotificationLogs(ctx context.Context, f models.LogFilter) ([]models.NotificationLog, error) {
	if f.Channel != "" && !f.Channel.Valid() {
		return nil, apperr.Validation("Unknown channel '%s'.", f.Channel)
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.Validation("Unknown delivery status '%s'.", f.Status)
	}
	return s.audit.List(ctx, f)
}

type AlertVolume struct {
	Last24h int `json:"last_24h"`
	Last7d  int `json:"last_7d"`
	Last30d int `json:"last_30d"`
	AllTime int `json:"all_time"`
}

type Report struct {
	AlertVolume                    AlertVolume                           `json:"alert_volume"`
	AlertTypes                     map[models.AlertType]int              `json:"alert_types"`
	AlertStatuses                  map[models.AlertStatus]int            `json:"alert_statuses"`
	NotificationDelivery           map[models.Channel]audit.ChannelStats `json:"notification_delivery"`
	AvgResponseSecondsByAgencyType map[models.AgencyType]int64           `json:"avg_response_seconds_by_agency_type"`
	GeneratedAt                    time.Time                             `json:"generated_at"`
}

// Reports aggregates alert volume, delivery success and response times.
func (s *Service) Reports(ctx context.Context) (Report, error) {
	now := s.now().UTC()
	r := Report{
		AlertTypes:                     make(map[models.AlertType]int, len(models.AlertTypes)),
		AlertStatuses:                  make(map[models.AlertStatus]int, len(models.AlertStatuses)),
		NotificationDelivery:           make(map[models.Channel]audit.ChannelStats, len(models.Channels)),
		AvgResponseSecondsByAgencyType: map[models.AgencyType]int64{},
		GeneratedAt:                    now,
	}

	counts := []struct {
		dst   *int
		since time.Duration
	}{
		{&r.AlertVolume.Last24h, 24 * time.Hour},
		{&r.AlertVolume.Last7d, 7 * 24 * time.Hour},
		{&r.AlertVolume.Last30d, 30 * 24 * time.Hour},
		{&r.AlertVolume.AllTime, 0},
	}
	for _, c := range counts {
		f := models.AlertFilter{}
		if c.since > 0 {
			f.CreatedSince = now.Add(-c.since)
		}
		n, err := s.store.CountAlerts(ctx, f)
		if err != nil {
			return Report{}, fmt.Errorf("failed to count alerts: %w", err)
		}
		*c.dst = n
	}

	for _, t := range models.AlertTypes {
		n, err := s.store.CountAlerts(ctx, models.AlertFilter{Type: t})
		if err != nil {
			return Report{}, fmt.Errorf("failed to count %s alerts: %w", t, err)
		}
		r.AlertTypes[t] = n
	}
	for _, st := range models.AlertStatuses {
		n, err := s.store.CountAlerts(ctx, models.AlertFilter{Status: st})
		if err != nil {
			return Report{}, fmt.Errorf("failed to count %s alerts: %w", st, err)
		}
		r.AlertStatuses[st] = n
	}
	for _, ch := range models.Channels {
		stats, err := s.audit.ChannelStats(ctx, ch)
		if err != nil {
			return Report{}, err
		}
		r.NotificationDelivery[ch] = stats
	}

	avg, err := s.store.AverageResponseByAgencyType(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("failed to average response times: %w", err)
	}
	for t, secs := range avg {
		r.AvgResponseSecondsByAgencyType[t] = int64(math.Round(secs))
	}
	return r, nil
}

// ListSettings seeds missing defaults and returns every setting by key.
func (s *Service) ListSettings(ctx context.Context) ([]models.Setting, error) {
	if err := settings.Seed(ctx, s.store); err != nil {
		return nil, fmt.Errorf("failed to seed settings: %w", err)
	}
	list, err := s.store.ListSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Key < list[j].Key })
	return list, nil
}

type SettingsUpdate struct {
	Updated []string          `json:"updated"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// UpdateSettings writes each known key. Unknown keys are reported per key;
// the call fails only when nothing was updated.
func (s *Service) UpdateSettings(ctx context.Context, values map[string]string) (SettingsUpdate, error) {
	if err := settings.Seed(ctx, s.store); err != nil {
		return SettingsUpdate{}, fmt.Errorf("failed to seed settings: %w", err)
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	res := SettingsUpdate{Updated: []string{}}
	for _, key := range keys {
		err := s.store.UpdateSettingValue(ctx, key, values[key])
		switch {
		case err == nil:
			res.Updated = append(res.Updated, key)
		case errors.Is(err, db.ErrNotFound):
			if res.Errors == nil {
				res.Errors = map[string]string{}
			}
			res.Errors[key] = "Unknown setting key."
		default:
			return SettingsUpdate{}, fmt.Errorf("failed to update setting %s: %w", key, err)
		}
	}
	if len(res.Updated) > 0 {
		s.logger.Infof("Updated settings: %s", strings.Join(res.Updated, ", "))
		return res, nil
	}
	return res, apperr.Validation("No settings were updated.")
}
