package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	fcm "google.golang.org/api/fcm/v1"
	"google.golang.org/api/option"
)

const (
	DefaultExpoURL  = "https://exp.host/--/api/v2/push/send"
	ExpoTokenPrefix = "ExponentPushToken"
)

// ExpoPush delivers to Expo push tokens through the Expo HTTP API.
type ExpoPush struct {
	url    string
	client *http.Client
}

func NewExpoPush(url string, timeout time.Duration) *ExpoPush {
	if url == "" {
		url = DefaultExpoURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ExpoPush{url: url, client: &http.Client{Timeout: timeout}}
}

type expoMessage struct {
	To       string            `json:"to"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Data     map[string]string `json:"data"`
	Sound    string            `json:"sound"`
	Priority string            `json:"priority"`
}

type expoResponse struct {
	Data struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"data"`
}

func (e *ExpoPush) SendPush(ctx context.Context, msg PushMessage) error {
	payload, err := json.Marshal(expoMessage{
		To:       msg.Token,
		Title:    msg.Title,
		Body:     msg.Body,
		Data:     msg.Data,
		Sound:    "default",
		Priority: "high",
	})
	if err != nil {
		return fmt.Errorf("failed to encode expo message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create expo request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send expo push: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read expo response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("expo API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var ticket expoResponse
	if err := json.Unmarshal(body, &ticket); err != nil {
		return fmt.Errorf("failed to decode expo response: %w", err)
	}
	if ticket.Data.Status == "error" {
		return fmt.Errorf("expo push error: %s", ticket.Data.Message)
	}
	return nil
}

// FCMPush delivers to native device tokens through FCM HTTP v1.
type FCMPush struct {
	svc     *fcm.Service
	project string
}

func NewFCMPush(ctx context.Context, projectID, credentialsFile string) (*FCMPush, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	svc, err := fcm.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create FCM client: %w", err)
	}
	return &FCMPush{svc: svc, project: "projects/" + projectID}, nil
}

func (f *FCMPush) SendPush(ctx context.Context, msg PushMessage) error {
	req := &fcm.SendMessageRequest{
		Message: &fcm.Message{
			Token: msg.Token,
			Notification: &fcm.Notification{
				Title: msg.Title,
				Body:  msg.Body,
			},
			Data:    msg.Data,
			Android: &fcm.AndroidConfig{Priority: "HIGH"},
		},
	}
	if _, err := f.svc.Projects.Messages.Send(f.project, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to send FCM message: %w", err)
	}
	return nil
}

// PushRouter picks the gateway by token shape: Expo tokens go to Expo,
// everything else to the native sender.
type PushRouter struct {
	expo   PushSender
	native PushSender
}

func NewPushRouter(expo, native PushSender) *PushRouter {
	return &PushRouter{expo: expo, native: native}
}

func (r *PushRouter) SendPush(ctx context.Context, msg PushMessage) error {
	if strings.HasPrefix(msg.Token, ExpoTokenPrefix) {
		return r.expo.SendPush(ctx, msg)
	}
	return r.native.SendPush(ctx, msg)
}
