// Package audit is the append-only delivery ledger: one row per attempt.
package audit

import (
	"context"
	"fmt"
	"math"
	"time"

	"emergency-dispatch/internal/models"
)

// MaxRecipientLen is how much of a recipient identifier is kept.
const MaxRecipientLen = 50

type Store interface {
	CreateNotificationLog(ctx context.Context, l *models.NotificationLog) error
	ListNotificationLogs(ctx context.Context, f models.LogFilter) ([]models.NotificationLog, error)
	DeliveryCounts(ctx context.Context, f models.LogFilter) (models.DeliveryCounts, error)
}

type Log struct {
	store Store
	now   func() time.Time
}

func New(store Store) *Log {
	return &Log{store: store, now: time.Now}
}

// Entry is one attempt to be recorded.
type Entry struct {
	AssignmentID int64
	Channel      models.Channel
	Recipient    string
	Status       models.NotificationStatus
	RetryCount   int
	Error        string
}

// Record appends a row for e and returns it as stored.
func (l *Log) Record(ctx context.Context, e Entry) (models.NotificationLog, error) {
	row := models.NotificationLog{
		AssignmentID: e.AssignmentID,
		Channel:      e.Channel,
		Recipient:    Truncate(e.Recipient, MaxRecipientLen),
		Status:       e.Status,
		RetryCount:   e.RetryCount,
		Error:        e.Error,
		SentAt:       l.now(),
	}
	if err := l.store.CreateNotificationLog(ctx, &row); err != nil {
		return models.NotificationLog{}, fmt.Errorf("failed to record %s attempt %d for assignment %d: %w",
			e.Channel, e.RetryCount, e.AssignmentID, err)
	}
	return row, nil
}

// List returns matching rows, newest first.
func (l *Log) List(ctx context.Context, f models.LogFilter) ([]models.NotificationLog, error) {
	rows, err := l.store.ListNotificationLogs(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list notification logs: %w", err)
	}
	return rows, nil
}

// ChannelStats summarises delivery for one channel. SuccessRate is a
// percentage rounded to one decimal, nil when nothing was attempted.
type ChannelStats struct {
	Total       int      `json:"total"`
	Sent        int      `json:"sent"`
	Failed      int      `json:"failed"`
	SuccessRate *float64 `json:"success_rate"`
}

func (l *Log) ChannelStats(ctx context.Context, ch models.Channel) (ChannelStats, error) {
	total, err := l.store.DeliveryCounts(ctx, models.LogFilter{Channel: ch})
	if err != nil {
		return ChannelStats{}, fmt.Errorf("failed to count %s deliveries: %w", ch, err)
	}
	stats := ChannelStats{
		Total:  total.Total,
		Sent:   total.Sent,
		Failed: total.Total - total.Sent,
	}
	if total.Total > 0 {
		rate := math.Round(float64(total.Sent)/float64(total.Total)*1000) / 10
		stats.SuccessRate = &rate
	}
	return stats, nil
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
