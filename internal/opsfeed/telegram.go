// Package opsfeed posts dispatch failures to an operations Telegram chat.
package opsfeed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"golang.org/x/time/rate"

	"emergency-dispatch/internal/dispatch"
	"emergency-dispatch/internal/logging"
	"emergency-dispatch/internal/utils"
)

type messageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error)
}

var _ dispatch.Escalator = (*Feed)(nil)

// Feed sends one Markdown message per failed assignment.
type Feed struct {
	sender  messageSender
	chatID  int64
	limiter *rate.Limiter
	logger  *logging.Logger

	attempts int
	delay    time.Duration
}

func New(token string, chatID int64, perSecond int, logger *logging.Logger) (*Feed, error) {
	if token == "" {
		return nil, fmt.Errorf("missing telegram bot token")
	}
	if chatID == 0 {
		return nil, fmt.Errorf("missing telegram chat id")
	}
	b, err := bot.New(token)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}
	return newFeed(b, chatID, perSecond, logger), nil
}

func newFeed(sender messageSender, chatID int64, perSecond int, logger *logging.Logger) *Feed {
	if perSecond < 1 {
		perSecond = 1
	}
	return &Feed{
		sender:   sender,
		chatID:   chatID,
		limiter:  rate.NewLimiter(rate.Limit(float64(perSecond)), perSecond),
		logger:   logger,
		attempts: 3,
		delay:    time.Second,
	}
}

func (f *Feed) AssignmentFailed(ctx context.Context, r dispatch.FailureReport) error {
	if err := f.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram rate limit exceeded: %w", err)
	}

	params := &bot.SendMessageParams{
		ChatID:    f.chatID,
		Text:      formatReport(r),
		ParseMode: "Markdown",
	}
	err := utils.Retry(ctx, f.logger, f.attempts, f.delay, func() error {
		if _, err := f.sender.SendMessage(ctx, params); err != nil {
			return fmt.Errorf("failed to send Telegram message to chat_id %d: %w", f.chatID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	f.logger.WithField("assignment_id", r.AssignmentID).Info("Posted dispatch failure to ops feed")
	return nil
}

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

func formatReport(r dispatch.FailureReport) string {
	channels := make([]string, 0, len(r.Channels))
	for _, ch := range r.Channels {
		channels = append(channels, string(ch))
	}
	failed := "none recorded"
	if len(channels) > 0 {
		failed = strings.Join(channels, ", ")
	}
	return fmt.Sprintf(
		"*Dispatch failed*\n"+
			"*Assignment:* #%d\n"+
			"*Alert:* #%d (%s, %s)\n"+
			"*Agency:* %s\n"+
			"*Failed channels:* %s",
		r.AssignmentID,
		r.AlertID,
		markdownEscaper.Replace(string(r.AlertType)),
		markdownEscaper.Replace(string(r.Priority)),
		markdownEscaper.Replace(r.AgencyName),
		failed,
	)
}
