// Package providers holds the channel senders used by the dispatcher. A send
// succeeds when it returns nil; any error is a failed attempt.
package providers

import (
	"context"
	"fmt"

	"emergency-dispatch/internal/config"
	"emergency-dispatch/internal/logging"
	"emergency-dispatch/internal/models"
)

// PushMessage is a single push notification to one device token.
type PushMessage struct {
	Token string
	Title string
	Body  string
	Data  map[string]string
}

type PushSender interface {
	SendPush(ctx context.Context, msg PushMessage) error
}

type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// Senders is the set of channel backends handed to the dispatcher.
type Senders struct {
	Push  PushSender
	SMS   SMSSender
	Email EmailSender
}

// Unconfigured fails every send, so a channel without a backend still shows
// up in the audit log as failed attempts.
type Unconfigured struct {
	Channel models.Channel
}

func (u Unconfigured) err() error {
	return fmt.Errorf("%s channel is not configured", u.Channel)
}

func (u Unconfigured) SendPush(context.Context, PushMessage) error {
	return u.err()
}

func (u Unconfigured) SendSMS(context.Context, string, string) error {
	return u.err()
}

func (u Unconfigured) SendEmail(context.Context, string, string, string) error {
	return u.err()
}

const (
	SMSBackendTwilio = "twilio"
	SMSBackendSNS    = "sns"
	EmailBackendSMTP = "smtp"
	EmailBackendSES  = "ses"
)

// FromConfig builds the configured senders. A channel whose credentials are
// missing falls back to Unconfigured with a warning.
func FromConfig(ctx context.Context, cfg config.Config, logger *logging.Logger) (Senders, error) {
	s := Senders{
		Push:  Unconfigured{Channel: models.ChannelPush},
		SMS:   Unconfigured{Channel: models.ChannelSMS},
		Email: Unconfigured{Channel: models.ChannelEmail},
	}

	var native PushSender = Unconfigured{Channel: models.ChannelPush}
	if cfg.Push.FCMProjectID != "" {
		fcm, err := NewFCMPush(ctx, cfg.Push.FCMProjectID, cfg.Push.FCMCredentialsFile)
		if err != nil {
			return Senders{}, err
		}
		native = fcm
	} else {
		logger.Warn("FCM_PROJECT_ID not set, native push tokens will fail")
	}
	s.Push = NewPushRouter(NewExpoPush(cfg.Push.ExpoURL, cfg.Notification.ChannelTimeout), native)

	switch cfg.SMS.Backend {
	case SMSBackendSNS:
		sns, err := NewSNSSMS(ctx, cfg.AWS.Region)
		if err != nil {
			return Senders{}, err
		}
		s.SMS = sns
	default:
		if cfg.SMS.AccountSID == "" || cfg.SMS.AuthToken == "" || cfg.SMS.FromNumber == "" {
			logger.Warn("Twilio credentials not set, SMS channel disabled")
			break
		}
		s.SMS = NewTwilioSMS(cfg.SMS.AccountSID, cfg.SMS.AuthToken, cfg.SMS.FromNumber)
	}

	switch cfg.Email.Backend {
	case EmailBackendSES:
		ses, err := NewSESEmail(ctx, cfg.AWS.Region, cfg.Email.From)
		if err != nil {
			return Senders{}, err
		}
		s.Email = ses
	default:
		if cfg.Email.SMTPServer == "" || cfg.Email.SMTPPort == 0 {
			logger.Warn("SMTP server not set, email channel disabled")
			break
		}
		s.Email = NewSMTPEmail(cfg.Email.SMTPServer, cfg.Email.SMTPPort, cfg.Email.Username, cfg.Email.Password, cfg.Email.From)
	}

	return s, nil
}
