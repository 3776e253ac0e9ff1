package models

import "time"

// DispatchTask asks the async dispatch path to deliver every assignment of one alert.
type DispatchTask struct {
	RequestID  string    `json:"request_id"`
	AlertID    int64     `json:"alert_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}
