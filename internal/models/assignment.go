package models

import "time"

// Assignment links one alert to one agency tasked with responding.
type Assignment struct {
	ID                 int64              `json:"assignment_id"`
	AlertID            int64              `json:"alert_id"`
	AgencyID           int64              `json:"agency_id"`
	Priority           int                `json:"assignment_priority"`
	NotificationStatus NotificationStatus `json:"notification_status"`
	AssignedAt         time.Time          `json:"assigned_at"`
	ResponseTime       *time.Time         `json:"response_time"`
}

type Acknowledgment struct {
	ID               int64     `json:"ack_id"`
	AssignmentID     int64     `json:"assignment_id"`
	AcknowledgedBy   string    `json:"acknowledged_by"`
	EstimatedArrival *int      `json:"estimated_arrival"`
	ResponseMessage  string    `json:"response_message"`
	ResponderContact string    `json:"responder_contact"`
	AcknowledgedAt   time.Time `json:"ack_timestamp"`
}
