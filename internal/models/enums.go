package models

// AlertType is the incident category declared by the reporter.
type AlertType string

const (
	AlertTerrorism     AlertType = "TERRORISM"
	AlertBanditry      AlertType = "BANDITRY"
	AlertKidnapping    AlertType = "KIDNAPPING"
	AlertArmedRobbery  AlertType = "ARMED_ROBBERY"
	AlertFireIncidence AlertType = "FIRE_INCIDENCE"
	AlertAccident      AlertType = "ACCIDENT"
	AlertRobbery       AlertType = "ROBBERY"
	AlertOther         AlertType = "OTHER"
)

var AlertTypes = []AlertType{
	AlertTerrorism, AlertBanditry, AlertKidnapping, AlertArmedRobbery,
	AlertFireIncidence, AlertAccident, AlertRobbery, AlertOther,
}

func (t AlertType) Valid() bool {
	for _, v := range AlertTypes {
		if v == t {
			return true
		}
	}
	return false
}

type Priority string

const (
	PriorityCritical Priority = "CRITICAL"
	PriorityHigh     Priority = "HIGH"
	PriorityMedium   Priority = "MEDIUM"
	PriorityLow      Priority = "LOW"
)

var Priorities = []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow}

func (p Priority) Valid() bool {
	for _, v := range Priorities {
		if v == p {
			return true
		}
	}
	return false
}

type AlertStatus string

const (
	StatusPending      AlertStatus = "PENDING"
	StatusDispatched   AlertStatus = "DISPATCHED"
	StatusAcknowledged AlertStatus = "ACKNOWLEDGED"
	StatusResponding   AlertStatus = "RESPONDING"
	StatusResolved     AlertStatus = "RESOLVED"
	StatusCancelled    AlertStatus = "CANCELLED"
)

var AlertStatuses = []AlertStatus{
	StatusPending, StatusDispatched, StatusAcknowledged,
	StatusResponding, StatusResolved, StatusCancelled,
}

func (s AlertStatus) Valid() bool {
	for _, v := range AlertStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Terminal reports whether the alert can no longer change location or be cancelled.
func (s AlertStatus) Terminal() bool {
	return s == StatusResolved || s == StatusCancelled
}

type AgencyType string

const (
	AgencyPolice        AgencyType = "POLICE"
	AgencyFire          AgencyType = "FIRE"
	AgencyMedical       AgencyType = "MEDICAL"
	AgencyMilitary      AgencyType = "MILITARY"
	AgencySecurityForce AgencyType = "SECURITY_FORCE"
)

var AgencyTypes = []AgencyType{AgencyPolice, AgencyFire, AgencyMedical, AgencyMilitary, AgencySecurityForce}

func (t AgencyType) Valid() bool {
	for _, v := range AgencyTypes {
		if v == t {
			return true
		}
	}
	return false
}

// NotificationStatus is used both for a single delivery attempt and for the
// aggregate status of an assignment.
type NotificationStatus string

const (
	NotificationPending   NotificationStatus = "PENDING"
	NotificationSent      NotificationStatus = "SENT"
	NotificationDelivered NotificationStatus = "DELIVERED"
	NotificationFailed    NotificationStatus = "FAILED"
)

func (s NotificationStatus) Valid() bool {
	switch s {
	case NotificationPending, NotificationSent, NotificationDelivered, NotificationFailed:
		return true
	}
	return false
}

type Channel string

const (
	ChannelPush  Channel = "PUSH"
	ChannelSMS   Channel = "SMS"
	ChannelEmail Channel = "EMAIL"
)

var Channels = []Channel{ChannelPush, ChannelSMS, ChannelEmail}

func (c Channel) Valid() bool {
	return c == ChannelPush || c == ChannelSMS || c == ChannelEmail
}
