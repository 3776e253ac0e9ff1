package models

import "time"

// NotificationLog is one delivery attempt on one channel.
type NotificationLog struct {
	ID           int64              `json:"log_id"`
	AssignmentID int64              `json:"assignment_id"`
	Channel      Channel            `json:"channel_type"`
	Recipient    string             `json:"recipient"`
	Status       NotificationStatus `json:"delivery_status"`
	RetryCount   int                `json:"retry_count"`
	Error        string             `json:"error_message,omitempty"`
	SentAt       time.Time          `json:"sent_at"`
}

// LogFilter narrows notification log reads. Zero values match everything.
type LogFilter struct {
	AssignmentID int64
	Channel      Channel
	Status       NotificationStatus
}

// DeliveryCounts aggregates attempt outcomes.
type DeliveryCounts struct {
	Total  int
	Sent   int
	Failed int
}

// Setting is one runtime-tunable operational parameter.
type Setting struct {
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Description string    `json:"description"`
	UpdatedAt   time.Time `json:"updated_at"`
}
