package audit

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emergency-dispatch/internal/db/dbtest"
	"emergency-dispatch/internal/models"
)

func seedAssignment(t *testing.T, store *dbtest.Memory) models.Assignment {
	t.Helper()
	ctx := context.Background()
	user := models.User{FullName: "Reporter", Email: "r@example.com"}
	require.NoError(t, store.CreateUser(ctx, &user))
	alert := models.Alert{UserID: user.ID, Type: models.AlertFireIncidence, Priority: models.PriorityHigh, Status: models.StatusPending}
	require.NoError(t, store.CreateAlert(ctx, &alert))
	agency := models.Agency{Name: "Fire Station 3", Type: models.AgencyFire, Active: true}
	require.NoError(t, store.CreateAgency(ctx, &agency))
	a := models.Assignment{AlertID: alert.ID, AgencyID: agency.ID, Priority: 1}
	require.NoError(t, store.CreateAssignment(ctx, &a))
	return a
}

func TestRecord_TruncatesRecipient(t *testing.T) {
	store := dbtest.New()
	asg := seedAssignment(t, store)
	log := New(store)
	fixed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	log.now = func() time.Time { return fixed }

	token := "ExponentPushToken[" + strings.Repeat("x", 80) + "]"
	row, err := log.Record(context.Background(), Entry{
		AssignmentID: asg.ID,
		Channel:      models.ChannelPush,
		Recipient:    token,
		Status:       models.NotificationFailed,
		RetryCount:   2,
		Error:        "DeviceNotRegistered",
	})
	require.NoError(t, err)

	assert.Len(t, row.Recipient, MaxRecipientLen)
	assert.Equal(t, token[:MaxRecipientLen], row.Recipient)
	assert.Equal(t, fixed, row.SentAt)
	assert.NotZero(t, row.ID)
	assert.Len(t, store.Logs(), 1)
}

func TestRecord_UnknownAssignment(t *testing.T) {
	log := New(dbtest.New())
	_, err := log.Record(context.Background(), Entry{AssignmentID: 42, Channel: models.ChannelSMS})
	assert.Error(t, err)
}

func TestListAndChannelStats(t *testing.T) {
	store := dbtest.New()
	asg := seedAssignment(t, store)
	log := New(store)
	ctx := context.Background()

	record := func(ch models.Channel, st models.NotificationStatus, retry int) {
		_, err := log.Record(ctx, Entry{AssignmentID: asg.ID, Channel: ch, Recipient: "r", Status: st, RetryCount: retry})
		require.NoError(t, err)
	}
	record(models.ChannelSMS, models.NotificationFailed, 0)
	record(models.ChannelSMS, models.NotificationFailed, 1)
	record(models.ChannelSMS, models.NotificationSent, 2)
	record(models.ChannelEmail, models.NotificationSent, 0)

	sms, err := log.List(ctx, models.LogFilter{Channel: models.ChannelSMS})
	require.NoError(t, err)
	require.Len(t, sms, 3)
	assert.Equal(t, 2, sms[0].RetryCount)

	failed, err := log.List(ctx, models.LogFilter{Status: models.NotificationFailed})
	require.NoError(t, err)
	assert.Len(t, failed, 2)

	stats, err := log.ChannelStats(ctx, models.ChannelSMS)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Sent)
	assert.Equal(t, 2, stats.Failed)
	require.NotNil(t, stats.SuccessRate)
	assert.InDelta(t, 33.3, *stats.SuccessRate, 1e-9)

	push, err := log.ChannelStats(ctx, models.ChannelPush)
	require.NoError(t, err)
	assert.Zero(t, push.Total)
	assert.Nil(t, push.SuccessRate)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "éé", Truncate("ééé", 2))
}
