// Package dbtest provides an in-memory db.Store for unit tests. It keeps the
// uniqueness and not-found semantics of the Postgres store, and rolls back
// state when a WithTx callback fails.
package dbtest

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"golang.org/x/exp/maps"

	"emergency-dispatch/internal/db"
	"emergency-dispatch/internal/models"
)

type state struct {
	users       map[int64]models.User
	agencies    map[int64]models.Agency
	alerts      map[int64]models.Alert
	assignments map[int64]models.Assignment
	acks        map[int64]models.Acknowledgment
	logs        []models.NotificationLog
	settings    map[string]models.Setting
	seq         int64
}

func (s *state) clone() *state {
	return &state{
		users:       maps.Clone(s.users),
		agencies:    maps.Clone(s.agencies),
		alerts:      maps.Clone(s.alerts),
		assignments: maps.Clone(s.assignments),
		acks:        maps.Clone(s.acks),
		logs:        slices.Clone(s.logs),
		settings:    maps.Clone(s.settings),
		seq:         s.seq,
	}
}

// Memory is a concurrency-safe in-memory store.
type Memory struct {
	mu    sync.Mutex
	txMu  sync.Mutex
	st    *state
	fails map[string]error

	// Now stamps generated timestamps.
	Now func() time.Time
}

func New() *Memory {
	return &Memory{
		st: &state{
			users:       map[int64]models.User{},
			agencies:    map[int64]models.Agency{},
			alerts:      map[int64]models.Alert{},
			assignments: map[int64]models.Assignment{},
			acks:        map[int64]models.Acknowledgment{},
			settings:    map[string]models.Setting{},
		},
		fails: map[string]error{},
		Now:   time.Now,
	}
}

var _ db.Store = (*Memory)(nil)

// Fail makes every later call of the named Store method return err.
// A nil err clears the failure.
func (m *Memory) Fail(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.fails, method)
		return
	}
	m.fails[method] = err
}

// lock acquires the state lock and reports any injected failure for method.
func (m *Memory) lock(method string) error {
	m.mu.Lock()
	if err, ok := m.fails[method]; ok {
		m.mu.Unlock()
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}

func (m *Memory) nextID() int64 {
	m.st.seq++
	return m.st.seq
}

func notFound(what string, id any) error {
	return fmt.Errorf("%s %v: %w", what, id, db.ErrNotFound)
}

// WithTx runs fn against a transaction-bound view. A failing fn rolls back
// every change made through it.
func (m *Memory) WithTx(ctx context.Context, fn func(db.Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snapshot := m.st.clone()
	m.mu.Unlock()

	if err := fn(&memTx{m}); err != nil {
		m.mu.Lock()
		m.st = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

type memTx struct {
	*Memory
}

func (t *memTx) WithTx(ctx context.Context, fn func(db.Store) error) error {
	return fn(t)
}

func (m *Memory) CreateUser(ctx context.Context, u *models.User) error {
	if err := m.lock("CreateUser"); err != nil {
		return err
	}
	defer m.mu.Unlock()
	for _, existing := range m.st.users {
		if existing.Email == u.Email {
			return fmt.Errorf("user %s: %w", u.Email, db.ErrConflict)
		}
	}
	u.ID = m.nextID()
	u.CreatedAt = m.Now()
	m.st.users[u.ID] = *u
	return nil
}

func (m *Memory) GetUser(ctx context.Context, id int64) (models.User, error) {
	if err := m.lock("GetUser"); err != nil {
		return models.User{}, err
	}
	defer m.mu.Unlock()
	u, ok := m.st.users[id]
	if !ok {
		return models.User{}, notFound("user", id)
	}
	return u, nil
}

func (m *Memory) CreateAgency(ctx context.Context, a *models.Agency) error {
	if err := m.lock("CreateAgency"); err != nil {
		return err
	}
	defer m.mu.Unlock()
	a.ID = m.nextID()
	a.CreatedAt = m.Now()
	m.st.agencies[a.ID] = *a
	return nil
}

func (m *Memory) GetAgency(ctx context.Context, id int64) (models.Agency, error) {
	if err := m.lock("GetAgency"); err != nil {
		return models.Agency{}, err
	}
	defer m.mu.Unlock()
	a, ok := m.st.agencies[id]
	if !ok {
		return models.Agency{}, notFound("agency", id)
	}
	return a, nil
}

func (m *Memory) ListAgencies(ctx context.Context) ([]models.Agency, error) {
	if err := m.lock("ListAgencies"); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()
	out := maps.Values(m.st.agencies)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListActiveAgencies(ctx context.Context, types []models.AgencyType) ([]models.Agency, error) {
	if err := m.lock("ListActiveAgencies"); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()
	var out []models.Agency
	for _, a := range m.st.agencies {
		if a.Active && slices.Contains(types, a.Type) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) UpdateAgencyPushToken(ctx context.Context, id int64, token string) error {
	if err := m.lock("UpdateAgencyPushToken"); err != nil {
		return err
	}
	defer m.mu.Unlock()
	a, ok := m.st.agencies[id]
	if !ok {
		return notFound("agency", id)
	}
	a.PushToken = token
	m.st.agencies[id] = a
	return nil
}

func (m *Memory) CreateAlert(ctx context.Context, a *models.Alert) error {
	if err := m.lock("CreateAlert"); err != nil {
		return err
	}
	defer m.mu.Unlock()
	if _, ok := m.st.users[a.UserID]; !ok {
		return fmt.Errorf("alert owner %d: %w", a.UserID, db.ErrNotFound)
	}
	now := m.Now()
	a.ID = m.nextID()
	a.CreatedAt, a.UpdatedAt = now, now
	if a.Location != nil {
		loc := *a.Location
		if loc.CapturedAt.IsZero() {
			loc.CapturedAt = now
		}
		a.Location = &loc
	}
	m.st.alerts[a.ID] = *a
	return nil
}

func (m *Memory) GetAlert(ctx context.Context, id int64) (models.Alert, error) {
	if err := m.lock("GetAlert"); err != nil {
		return models.Alert{}, err
	}
	defer m.mu.Unlock()
	a, ok := m.st.alerts[id]
	if !ok {
		return models.Alert{}, notFound("alert", id)
	}
	return a, nil
}

func matchAlert(a models.Alert, f models.AlertFilter) bool {
	switch {
	case f.UserID != 0 && a.UserID != f.UserID:
		return false
	case f.Status != "" && a.Status != f.Status:
		return false
	case f.Type != "" && a.Type != f.Type:
		return false
	case f.Priority != "" && a.Priority != f.Priority:
		return false
	case !f.CreatedSince.IsZero() && a.CreatedAt.Before(f.CreatedSince):
		return false
	}
	return true
}

func (m *Memory) ListAlerts(ctx context.Context, f models.AlertFilter) ([]models.Alert, error) {
	if err := m.lock("ListAlerts"); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()
	var out []models.Alert
	for _, a := range m.st.alerts {
		if matchAlert(a, f) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *Memory) CountAlerts(ctx context.Context, f models.AlertFilter) (int, error) {
	if err := m.lock("CountAlerts"); err != nil {
		return 0, err
	}
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.st.alerts {
		if matchAlert(a, f) {
			n++
		}
	}
	return n, nil
}

func (m *Memory) UpdateAlertStatus(ctx context.Context, id int64, status models.AlertStatus) error {
	if err := m.lock("UpdateAlertStatus"); err != nil {
		return err
	}
	defer m.mu.Unlock()
	a, ok := m.st.alerts[id]
	if !ok {
		return notFound("alert", id)
	}
	a.Status = status
	a.UpdatedAt = m.Now()
	m.st.alerts[id] = a
	return nil
}

func (m *Memory) UpdateAlertLocation(ctx context.Context, id int64, lat, lng float64, accuracy *float64) (models.Location, error) {
	if err := m.lock("UpdateAlertLocation"); err != nil {
		return models.Location{}, err
	}
	defer m.mu.Unlock()
	a, ok := m.st.alerts[id]
	if !ok {
		return models.Location{}, notFound("alert", id)
	}
	loc := models.Location{CapturedAt: m.Now()}
	if a.Location != nil {
		loc = *a.Location
	}
	loc.Latitude, loc.Longitude = lat, lng
	if accuracy != nil {
		v := *accuracy
		loc.Accuracy = &v
	}
	a.Location = &loc
	a.UpdatedAt = m.Now()
	m.st.alerts[id] = a
	return loc, nil
}

func (m *Memory) CreateAssignment(ctx context.Context, a *models.Assignment) error {
	if err := m.lock("CreateAssignment"); err != nil {
		return err
	}
	defer m.mu.Unlock()
	if _, ok := m.st.alerts[a.AlertID]; !ok {
		return notFound("alert", a.AlertID)
	}
	if _, ok := m.st.agencies[a.AgencyID]; !ok {
		return notFound("agency", a.AgencyID)
	}
	for _, existing := range m.st.assignments {
		if existing.AlertID == a.AlertID && existing.AgencyID == a.AgencyID {
			return fmt.Errorf("assignment alert %d agency %d: %w", a.AlertID, a.AgencyID, db.ErrConflict)
		}
	}
	if a.NotificationStatus == "" {
		a.NotificationStatus = models.NotificationPending
	}
	a.ID = m.nextID()
	a.AssignedAt = m.Now()
	m.st.assignments[a.ID] = *a
	return nil
}

func (m *Memory) GetAssignment(ctx context.Context, id int64) (models.Assignment, error) {
	if err := m.lock("GetAssignment"); err != nil {
		return models.Assignment{}, err
	}
	defer m.mu.Unlock()
	a, ok := m.st.assignments[id]
	if !ok {
		return models.Assignment{}, notFound("assignment", id)
	}
	return a, nil
}

func (m *Memory) ListAssignmentsByAlert(ctx context.Context, alertID int64) ([]models.Assignment, error) {
	if err := m.lock("ListAssignmentsByAlert"); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()
	var out []models.Assignment
	for _, a := range m.st.assignments {
		if a.AlertID == alertID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) ListAssignmentsByAgency(ctx context.Context, agencyID int64) ([]models.Assignment, error) {
	if err := m.lock("ListAssignmentsByAgency"); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()
	var out []models.Assignment
	for _, a := range m.st.assignments {
		if a.AgencyID == agencyID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AssignedAt.Equal(out[j].AssignedAt) {
			return out[i].AssignedAt.After(out[j].AssignedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *Memory) UpdateAssignmentStatus(ctx context.Context, id int64, status models.NotificationStatus) error {
	if err := m.lock("UpdateAssignmentStatus"); err != nil {
		return err
	}
	defer m.mu.Unlock()
	a, ok := m.st.assignments[id]
	if !ok {
		return notFound("assignment", id)
	}
	a.NotificationStatus = status
	m.st.assignments[id] = a
	return nil
}

func (m *Memory) MarkAssignmentResponded(ctx context.Context, id int64, at time.Time) error {
	if err := m.lock("MarkAssignmentResponded"); err != nil {
		return err
	}
	defer m.mu.Unlock()
	a, ok := m.st.assignments[id]
	if !ok {
		return notFound("assignment", id)
	}
	a.NotificationStatus = models.NotificationDelivered
	a.ResponseTime = &at
	m.st.assignments[id] = a
	return nil
}

func (m *Memory) AverageResponseByAgencyType(ctx context.Context) (map[models.AgencyType]float64, error) {
	if err := m.lock("AverageResponseByAgencyType"); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()
	sums := map[models.AgencyType]float64{}
	counts := map[models.AgencyType]int{}
	for _, a := range m.st.assignments {
		if a.ResponseTime == nil {
			continue
		}
		t := m.st.agencies[a.AgencyID].Type
		sums[t] += a.ResponseTime.Sub(a.AssignedAt).Seconds()
		counts[t]++
	}
	out := make(map[models.AgencyType]float64, len(sums))
	for t, sum := range sums {
		out[t] = sum / float64(counts[t])
	}
	return out, nil
}

func (m *Memory) CreateAcknowledgment(ctx context.Context, a *models.Acknowledgment) error {
	if err := m.lock("CreateAcknowledgment"); err != nil {
		return err
	}
	defer m.mu.Unlock()
	if _, ok := m.st.assignments[a.AssignmentID]; !ok {
		return notFound("assignment", a.AssignmentID)
	}
	if _, ok := m.st.acks[a.AssignmentID]; ok {
		return fmt.Errorf("acknowledgment for assignment %d: %w", a.AssignmentID, db.ErrConflict)
	}
	a.ID = m.nextID()
	a.AcknowledgedAt = m.Now()
	m.st.acks[a.AssignmentID] = *a
	return nil
}

func (m *Memory) GetAcknowledgment(ctx context.Context, assignmentID int64) (models.Acknowledgment, error) {
	if err := m.lock("GetAcknowledgment"); err != nil {
		return models.Acknowledgment{}, err
	}
	defer m.mu.Unlock()
	a, ok := m.st.acks[assignmentID]
	if !ok {
		return models.Acknowledgment{}, notFound("acknowledgment for assignment", assignmentID)
	}
	return a, nil
}

func (m *Memory) CreateNotificationLog(ctx context.Context, l *models.NotificationLog) error {
	if err := m.lock("CreateNotificationLog"); err != nil {
		return err
	}
	defer m.mu.Unlock()
	if _, ok := m.st.assignments[l.AssignmentID]; !ok {
		return notFound("assignment", l.AssignmentID)
	}
	l.ID = m.nextID()
	if l.SentAt.IsZero() {
		l.SentAt = m.Now()
	}
	m.st.logs = append(m.st.logs, *l)
	return nil
}

func matchLog(l models.NotificationLog, f models.LogFilter) bool {
	switch {
	case f.AssignmentID != 0 && l.AssignmentID != f.AssignmentID:
		return false
	case f.Channel != "" && l.Channel != f.Channel:
		return false
	case f.Status != "" && l.Status != f.Status:
		return false
	}
	return true
}

func (m *Memory) ListNotificationLogs(ctx context.Context, f models.LogFilter) ([]models.NotificationLog, error) {
	if err := m.lock("ListNotificationLogs"); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()
	var out []models.NotificationLog
	for i := len(m.st.logs) - 1; i >= 0; i-- {
		if matchLog(m.st.logs[i], f) {
			out = append(out, m.st.logs[i])
		}
	}
	return out, nil
}

func (m *Memory) DeliveryCounts(ctx context.Context, f models.LogFilter) (models.DeliveryCounts, error) {
	if err := m.lock("DeliveryCounts"); err != nil {
		return models.DeliveryCounts{}, err
	}
	defer m.mu.Unlock()
	var c models.DeliveryCounts
	for _, l := range m.st.logs {
		if !matchLog(l, f) {
			continue
		}
		c.Total++
		switch l.Status {
		case models.NotificationSent:
			c.Sent++
		case models.NotificationFailed:
			c.Failed++
		}
	}
	return c, nil
}

func (m *Memory) GetSetting(ctx context.Context, key string) (models.Setting, error) {
	if err := m.lock("GetSetting"); err != nil {
		return models.Setting{}, err
	}
	defer m.mu.Unlock()
	s, ok := m.st.settings[key]
	if !ok {
		return models.Setting{}, notFound("setting", key)
	}
	return s, nil
}

func (m *Memory) ListSettings(ctx context.Context) ([]models.Setting, error) {
	if err := m.lock("ListSettings"); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()
	out := maps.Values(m.st.settings)
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *Memory) EnsureSetting(ctx context.Context, s models.Setting) error {
	if err := m.lock("EnsureSetting"); err != nil {
		return err
	}
	defer m.mu.Unlock()
	if _, ok := m.st.settings[s.Key]; ok {
		return nil
	}
	s.UpdatedAt = m.Now()
	m.st.settings[s.Key] = s
	return nil
}

func (m *Memory) UpdateSettingValue(ctx context.Context, key, value string) error {
	if err := m.lock("UpdateSettingValue"); err != nil {
		return err
	}
	defer m.mu.Unlock()
	s, ok := m.st.settings[key]
	if !ok {
		return notFound("setting", key)
	}
	s.Value = value
	s.UpdatedAt = m.Now()
	m.st.settings[key] = s
	return nil
}

// PutSetting stores a raw value, bypassing seeding rules.
func (m *Memory) PutSetting(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.settings[key] = models.Setting{Key: key, Value: value, UpdatedAt: m.Now()}
}

// Logs returns every notification log in insertion order.
func (m *Memory) Logs() []models.NotificationLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.st.logs)
}
