package dispatch

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"emergency-dispatch/internal/models"
)

const (
	noDescription    = "No description provided"
	noAddress        = "Address unavailable"
	unknownPosition  = "unknown"
	mapsUnavailable  = "unavailable"
	emailRule        = "=================================================="
	emailAckReminder = "Please acknowledge this alert through the system."
)

// Payload is the channel-agnostic view of an alert, built once per dispatch.
type Payload struct {
	AlertID     int64
	AlertType   models.AlertType
	Priority    models.Priority
	Description string
	Latitude    string
	Longitude   string
	Address     string
	MapsURL     string
	UserName    string
	UserPhone   string
	Timestamp   string
}

// BuildPayload renders alert and reporter into a Payload. An alert without a
// position gets placeholder coordinates instead of failing the dispatch.
func BuildPayload(alert models.Alert, reporter models.User) Payload {
	p := Payload{
		AlertID:     alert.ID,
		AlertType:   alert.Type,
		Priority:    alert.Priority,
		Description: alert.Description,
		Latitude:    unknownPosition,
		Longitude:   unknownPosition,
		Address:     noAddress,
		MapsURL:     mapsUnavailable,
		UserName:    reporter.FullName,
		UserPhone:   reporter.Phone,
		Timestamp:   alert.CreatedAt.Format(time.RFC3339),
	}
	if strings.TrimSpace(p.Description) == "" {
		p.Description = noDescription
	}
	if loc := alert.Location; loc != nil && loc.Valid() {
		p.Latitude = models.FormatCoord(loc.Latitude)
		p.Longitude = models.FormatCoord(loc.Longitude)
		p.MapsURL = loc.MapsURL()
		if strings.TrimSpace(loc.Address) != "" {
			p.Address = loc.Address
		}
	}
	return p
}

// Data is the push data block. Every value is a string, as FCM requires.
func (p Payload) Data() map[string]string {
	return map[string]string{
		"alert_id":    strconv.FormatInt(p.AlertID, 10),
		"alert_type":  string(p.AlertType),
		"priority":    string(p.Priority),
		"description": p.Description,
		"latitude":    p.Latitude,
		"longitude":   p.Longitude,
		"address":     p.Address,
		"user_name":   p.UserName,
		"user_phone":  p.UserPhone,
		"timestamp":   p.Timestamp,
		"maps_url":    p.MapsURL,
	}
}

func (p Payload) PushTitle() string {
	return fmt.Sprintf("EMERGENCY: %s", p.AlertType)
}

func (p Payload) PushBody() string {
	return fmt.Sprintf("Priority: %s. Location: %s", p.Priority, p.Address)
}

func (p Payload) SMSBody() string {
	return strings.Join([]string{
		fmt.Sprintf("EMERGENCY ALERT [%s]", p.AlertType),
		fmt.Sprintf("Priority: %s", p.Priority),
		fmt.Sprintf("Location: %s", p.Address),
		fmt.Sprintf("Coordinates: %s, %s", p.Latitude, p.Longitude),
		fmt.Sprintf("Reporter: %s (%s)", p.UserName, p.UserPhone),
		fmt.Sprintf("Map: %s", p.MapsURL),
		fmt.Sprintf("Alert ID: %d", p.AlertID),
	}, "\n")
}

func (p Payload) EmailSubject() string {
	return fmt.Sprintf("EMERGENCY ALERT: %s - Priority %s", p.AlertType, p.Priority)
}

func (p Payload) EmailBody() string {
	var b strings.Builder
	b.WriteString("EMERGENCY ALERT\n")
	b.WriteString(emailRule + "\n\n")
	fmt.Fprintf(&b, "Type: %s\n", p.AlertType)
	fmt.Fprintf(&b, "Priority: %s\n", p.Priority)
	fmt.Fprintf(&b, "Time: %s\n\n", p.Timestamp)
	b.WriteString("LOCATION\n")
	fmt.Fprintf(&b, "Address: %s\n", p.Address)
	fmt.Fprintf(&b, "Coordinates: %s, %s\n", p.Latitude, p.Longitude)
	fmt.Fprintf(&b, "Google Maps: %s\n\n", p.MapsURL)
	b.WriteString("REPORTER\n")
	fmt.Fprintf(&b, "Name: %s\n", p.UserName)
	fmt.Fprintf(&b, "Phone: %s\n\n", p.UserPhone)
	b.WriteString("DESCRIPTION\n")
	fmt.Fprintf(&b, "%s\n\n", p.Description)
	fmt.Fprintf(&b, "Alert ID: %d\n", p.AlertID)
	b.WriteString(emailAckReminder)
	return b.String()
}

// AckNotice carries what the reporter is told when an agency acknowledges.
type AckNotice struct {
	AlertID          int64
	AgencyName       string
	EstimatedArrival *int
}

func (n AckNotice) eta() string {
	if n.EstimatedArrival == nil {
		return "Unknown"
	}
	return strconv.Itoa(*n.EstimatedArrival)
}

func (n AckNotice) PushBody() string {
	return fmt.Sprintf("%s has acknowledged your alert. ETA: %s min", n.AgencyName, n.eta())
}

func (n AckNotice) SMSBody() string {
	return fmt.Sprintf("Your emergency alert has been acknowledged by %s. Estimated arrival: %s minutes. Stay safe.",
		n.AgencyName, n.eta())
}

// StatusMessage returns the push title and body for a status change. Unknown
// statuses get a generic update.
func StatusMessage(agencyName string, status models.AlertStatus) (title, body string) {
	switch status {
	case models.StatusResponding:
		return "Help is on the way!", fmt.Sprintf("%s is now responding to your alert.", agencyName)
	case models.StatusResolved:
		return "Alert Resolved", fmt.Sprintf("%s has marked your alert as resolved.", agencyName)
	default:
		return "Alert Update", fmt.Sprintf("Your alert status has been updated to %s.", status)
	}
}

func StatusSMS(agencyName string, status models.AlertStatus, alertID int64) string {
	return fmt.Sprintf("Emergency Alert Update: %s has updated your alert status to %s. Alert ID: %d",
		agencyName, status, alertID)
}
