package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"emergency-dispatch/internal/models"
)

func samplePayload() Payload {
	alert := models.Alert{
		ID:        41,
		Type:      models.AlertKidnapping,
		Priority:  models.PriorityCritical,
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Location:  &models.Location{Latitude: 6.5244, Longitude: 3.3792},
	}
	return BuildPayload(alert, models.User{FullName: "Amina Bello", Phone: "+2347000000000"})
}

func TestBuildPayload_Defaults(t *testing.T) {
	p := samplePayload()

	assert.Equal(t, "No description provided", p.Description)
	assert.Equal(t, "Address unavailable", p.Address)
	assert.Equal(t, "6.5244000", p.Latitude)
	assert.Equal(t, "3.3792000", p.Longitude)
	assert.Equal(t, "https://maps.google.com/?q=6.5244000,3.3792000", p.MapsURL)
	assert.Equal(t, "2026-01-02T03:04:05Z", p.Timestamp)
	assert.Equal(t, "41", p.Data()["alert_id"])
}

func TestBuildPayload_NoLocation(t *testing.T) {
	p := BuildPayload(models.Alert{ID: 1, Type: models.AlertOther, Description: "x"}, models.User{})

	assert.Equal(t, "unknown", p.Latitude)
	assert.Equal(t, "unknown", p.Longitude)
	assert.Equal(t, "unavailable", p.MapsURL)
	assert.Equal(t, "x", p.Description)
}

func TestSMSBody(t *testing.T) {
	want := "EMERGENCY ALERT [KIDNAPPING]\n" +
		"Priority: CRITICAL\n" +
		"Location: Address unavailable\n" +
		"Coordinates: 6.5244000, 3.3792000\n" +
		"Reporter: Amina Bello (+2347000000000)\n" +
		"Map: https://maps.google.com/?q=6.5244000,3.3792000\n" +
		"Alert ID: 41"

	assert.Equal(t, want, samplePayload().SMSBody())
}

func TestEmailBody(t *testing.T) {
	want := "EMERGENCY ALERT\n" +
		"==================================================\n\n" +
		"Type: KIDNAPPING\n" +
		"Priority: CRITICAL\n" +
		"Time: 2026-01-02T03:04:05Z\n\n" +
		"LOCATION\n" +
		"Address: Address unavailable\n" +
		"Coordinates: 6.5244000, 3.3792000\n" +
		"Google Maps: https://maps.google.com/?q=6.5244000,3.3792000\n\n" +
		"REPORTER\n" +
		"Name: Amina Bello\n" +
		"Phone: +2347000000000\n\n" +
		"DESCRIPTION\n" +
		"No description provided\n\n" +
		"Alert ID: 41\n" +
		"Please acknowledge this alert through the system."

	p := samplePayload()
	assert.Equal(t, want, p.EmailBody())
	assert.Equal(t, "EMERGENCY ALERT: KIDNAPPING - Priority CRITICAL", p.EmailSubject())
	assert.Len(t, emailRule, 50)
}

func TestStatusMessage(t *testing.T) {
	title, body := StatusMessage("Police Div", models.StatusResponding)
	assert.Equal(t, "Help is on the way!", title)
	assert.Equal(t, "Police Div is now responding to your alert.", body)

	title, body = StatusMessage("Police Div", "ON_HOLD")
	assert.Equal(t, "Alert Update", title)
	assert.Equal(t, "Your alert status has been updated to ON_HOLD.", body)

	assert.Equal(t, "Emergency Alert Update: Police Div has updated your alert status to RESOLVED. Alert ID: 9",
		StatusSMS("Police Div", models.StatusResolved, 9))
}
