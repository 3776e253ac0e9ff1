package providers

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPEmail sends plain-text mail through an SMTP relay with PLAIN auth.
type SMTPEmail struct {
	server   string
	port     int
	username string
	password string
	from     string
	sendMail sendMailFunc
}

func NewSMTPEmail(server string, port int, username, password, from string) *SMTPEmail {
	if from == "" {
		from = username
	}
	return &SMTPEmail{
		server:   server,
		port:     port,
		username: username,
		password: password,
		from:     from,
		sendMail: smtp.SendMail,
	}
}

func (e *SMTPEmail) SendEmail(ctx context.Context, to, subject, body string) error {
	if !strings.Contains(to, "@") {
		return fmt.Errorf("invalid email address: %s", to)
	}

	var auth smtp.Auth
	if e.username != "" {
		auth = smtp.PlainAuth("", e.username, e.password, e.server)
	}
	addr := fmt.Sprintf("%s:%d", e.server, e.port)

	// smtp.SendMail has no context, so the deadline is honoured by abandoning the wait.
	done := make(chan error, 1)
	go func() {
		done <- e.sendMail(addr, auth, e.from, []string{to}, buildMessage(e.from, to, subject, body))
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send email to %s: %w", to, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to send email to %s: %w", to, ctx.Err())
	}
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}

type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESEmail sends plain-text mail through Amazon SES.
type SESEmail struct {
	client sesAPI
	from   string
}

func NewSESEmail(ctx context.Context, region, from string) (*SESEmail, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &SESEmail{client: ses.NewFromConfig(cfg), from: from}, nil
}

func (e *SESEmail) SendEmail(ctx context.Context, to, subject, body string) error {
	input := &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(e.from),
	}
	if _, err := e.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("failed to send email to %s via SES: %w", to, err)
	}
	return nil
}
