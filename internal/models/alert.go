package models

import (
	"fmt"
	"math"
	"time"
)

// Location is the reporter's position attached to an alert.
type Location struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Accuracy   *float64  `json:"accuracy"`
	Address    string    `json:"address"`
	CapturedAt time.Time `json:"captured_at"`
}

// Valid reports whether the coordinates are finite and inside the WGS84 range.
func (l Location) Valid() bool {
	if math.IsNaN(l.Latitude) || math.IsNaN(l.Longitude) ||
		math.IsInf(l.Latitude, 0) || math.IsInf(l.Longitude, 0) {
		return false
	}
	return l.Latitude >= -90 && l.Latitude <= 90 && l.Longitude >= -180 && l.Longitude <= 180
}

// MapsURL returns a Google Maps link for the position.
func (l Location) MapsURL() string {
	return MapsURL(l.Latitude, l.Longitude)
}

func MapsURL(lat, lng float64) string {
	return fmt.Sprintf("https://maps.google.com/?q=%s,%s", FormatCoord(lat), FormatCoord(lng))
}

// FormatCoord renders a coordinate with the 7 decimal places the store keeps.
func FormatCoord(v float64) string {
	return fmt.Sprintf("%.7f", v)
}

type Alert struct {
	ID          int64       `json:"alert_id"`
	UserID      int64       `json:"user_id"`
	Type        AlertType   `json:"alert_type"`
	Priority    Priority    `json:"priority_level"`
	Description string      `json:"description"`
	Status      AlertStatus `json:"status"`
	Location    *Location   `json:"location"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// AlertFilter narrows alert listings and counts. Zero values match everything.
type AlertFilter struct {
	UserID       int64
	Status       AlertStatus
	Type         AlertType
	Priority     Priority
	CreatedSince time.Time
}
