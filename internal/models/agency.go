package models

import "time"

type Agency struct {
	ID           int64      `json:"agency_id"`
	Name         string     `json:"agency_name"`
	Type         AgencyType `json:"agency_type"`
	ContactEmail string     `json:"contact_email"`
	ContactPhone string     `json:"contact_phone"`
	Jurisdiction string     `json:"jurisdiction"`
	Address      string     `json:"address"`
	Latitude     *float64   `json:"latitude"`
	Longitude    *float64   `json:"longitude"`
	Active       bool       `json:"is_active"`
	PushToken    string     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Coordinates returns the agency position, ok is false when it has none.
func (a Agency) Coordinates() (lat, lng float64, ok bool) {
	if a.Latitude == nil || a.Longitude == nil {
		return 0, 0, false
	}
	return *a.Latitude, *a.Longitude, true
}

// User is the civilian reporter as provisioned by the auth collaborator.
type User struct {
	ID        int64     `json:"user_id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone_number"`
	PushToken string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
