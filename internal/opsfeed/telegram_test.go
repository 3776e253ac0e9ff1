package opsfeed

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emergency-dispatch/internal/dispatch"
	"emergency-dispatch/internal/logging"
	"emergency-dispatch/internal/models"
)

type fakeSender struct {
	failures int
	sent     []*bot.SendMessageParams
}

func (f *fakeSender) SendMessage(_ context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error) {
	f.sent = append(f.sent, params)
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("bad gateway")
	}
	return &tgmodels.Message{ID: len(f.sent)}, nil
}

func testFeed(sender messageSender) *Feed {
	f := newFeed(sender, -100123, 50, logging.NewWithWriter(io.Discard, "error"))
	f.delay = time.Millisecond
	return f
}

var report = dispatch.FailureReport{
	AssignmentID: 7,
	AlertID:      3,
	AlertType:    models.AlertFireIncidence,
	Priority:     models.PriorityCritical,
	AgencyName:   "Central_Fire",
	Channels:     []models.Channel{models.ChannelPush, models.ChannelSMS},
}

func TestFeed_AssignmentFailed(t *testing.T) {
	sender := &fakeSender{}
	feed := testFeed(sender)

	require.NoError(t, feed.AssignmentFailed(context.Background(), report))

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, int64(-100123), msg.ChatID)
	assert.EqualValues(t, "Markdown", msg.ParseMode)
	assert.Equal(t,
		"*Dispatch failed*\n"+
			"*Assignment:* #7\n"+
			"*Alert:* #3 (FIRE\\_INCIDENCE, CRITICAL)\n"+
			"*Agency:* Central\\_Fire\n"+
			"*Failed channels:* PUSH, SMS",
		msg.Text)
}

func TestFeed_RetriesTransientErrors(t *testing.T) {
	sender := &fakeSender{failures: 2}
	feed := testFeed(sender)

	require.NoError(t, feed.AssignmentFailed(context.Background(), report))
	assert.Len(t, sender.sent, 3)
}

func TestFeed_GivesUp(t *testing.T) {
	sender := &fakeSender{failures: 10}
	feed := testFeed(sender)

	err := feed.AssignmentFailed(context.Background(), report)
	assert.ErrorContains(t, err, "failed after 3 attempts")
}

func TestNew_RequiresTokenAndChat(t *testing.T) {
	logger := logging.NewWithWriter(io.Discard, "error")
	_, err := New("", 1, 1, logger)
	assert.Error(t, err)
	_, err = New("token", 0, 1, logger)
	assert.Error(t, err)
}
