package db

import (
	"context"
	"time"

	"emergency-dispatch/internal/models"
)

// Store is the persistence contract used by every service. *DB implements it
// on Postgres and dbtest.Memory implements it in memory.
type Store interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id int64) (models.User, error)

	CreateAgency(ctx context.Context, a *models.Agency) error
	GetAgency(ctx context.Context, id int64) (models.Agency, error)
	ListAgencies(ctx context.Context) ([]models.Agency, error)
	ListActiveAgencies(ctx context.Context, types []models.AgencyType) ([]models.Agency, error)
	UpdateAgencyPushToken(ctx context.Context, id int64, token string) error

	CreateAlert(ctx context.Context, a *models.Alert) error
	GetAlert(ctx context.Context, id int64) (models.Alert, error)
	ListAlerts(ctx context.Context, f models.AlertFilter) ([]models.Alert, error)
	CountAlerts(ctx context.Context, f models.AlertFilter) (int, error)
	UpdateAlertStatus(ctx context.Context, id int64, status models.AlertStatus) error
	UpdateAlertLocation(ctx context.Context, id int64, lat, lng float64, accuracy *float64) (models.Location, error)

	CreateAssignment(ctx context.Context, a *models.Assignment) error
	GetAssignment(ctx context.Context, id int64) (models.Assignment, error)
	ListAssignmentsByAlert(ctx context.Context, alertID int64) ([]models.Assignment, error)
	ListAssignmentsByAgency(ctx context.Context, agencyID int64) ([]models.Assignment, error)
	UpdateAssignmentStatus(ctx context.Context, id int64, status models.NotificationStatus) error
	MarkAssignmentResponded(ctx context.Context, id int64, at time.Time) error
	AverageResponseByAgencyType(ctx context.Context) (map[models.AgencyType]float64, error)

	CreateAcknowledgment(ctx context.Context, a *models.Acknowledgment) error
	GetAcknowledgment(ctx context.Context, assignmentID int64) (models.Acknowledgment, error)

	CreateNotificationLog(ctx context.Context, l *models.NotificationLog) error
	ListNotificationLogs(ctx context.Context, f models.LogFilter) ([]models.NotificationLog, error)
	DeliveryCounts(ctx context.Context, f models.LogFilter) (models.DeliveryCounts, error)

	GetSetting(ctx context.Context, key string) (models.Setting, error)
	ListSettings(ctx context.Context) ([]models.Setting, error)
	EnsureSetting(ctx context.Context, s models.Setting) error
	UpdateSettingValue(ctx context.Context, key, value string) error

	WithTx(ctx context.Context, fn func(Store) error) error
}

var _ Store = (*DB)(nil)
