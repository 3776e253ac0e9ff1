package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type twilioAPI interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioSMS sends SMS through the Twilio messages API.
type TwilioSMS struct {
	api        twilioAPI
	fromNumber string
}

func NewTwilioSMS(accountSID, authToken, fromNumber string) *TwilioSMS {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioSMS{api: client.Api, fromNumber: fromNumber}
}

func (t *TwilioSMS) SendSMS(ctx context.Context, to, body string) error {
	if !strings.HasPrefix(to, "+") {
		return fmt.Errorf("invalid phone number: %s", to)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(t.fromNumber)
	params.SetBody(body)

	if _, err := t.api.CreateMessage(params); err != nil {
		return fmt.Errorf("failed to send SMS to %s: %w", to, err)
	}
	return nil
}

type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSSMS sends SMS by publishing directly to a phone number through AWS SNS.
type SNSSMS struct {
	client snsAPI
}

func NewSNSSMS(ctx context.Context, region string) (*SNSSMS, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &SNSSMS{client: sns.NewFromConfig(cfg)}, nil
}

func (s *SNSSMS) SendSMS(ctx context.Context, to, body string) error {
	if !strings.HasPrefix(to, "+") {
		return fmt.Errorf("invalid phone number: %s", to)
	}
	_, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(body),
	})
	if err != nil {
		return fmt.Errorf("failed to publish SMS to %s: %w", to, err)
	}
	return nil
}
