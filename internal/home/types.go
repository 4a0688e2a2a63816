package home

import (
	"errors"
	"time"
)

// Sentinel errors for household data lookups.
var (
	ErrHomeNotFound   = errors.New("home not found")
	ErrRoomNotFound   = errors.New("room not found")
	ErrDeviceNotFound = errors.New("device not found")
)

// Home is the top-level household record. One home per linking id.
type Home struct {
	ID        string    `json:"id"`
	LinkingID string    `json:"linking_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Room groups devices within a home.
type Room struct {
	ID        string    `json:"id"`
	HomeID    string    `json:"home_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Common device types. Type is free-form; these cover the built-in
// dashboard cards.
const (
	DeviceLight      = "light"
	DeviceThermostat = "thermostat"
	DeviceLock       = "lock"
	DeviceCamera     = "camera"
)

// Device is a controllable or observable thing in a home. RoomID is
// empty for unassigned devices. Status is device-specific ("on", "off",
// "locked", "21.5C"); only the latest value is kept here — history goes
// to InfluxDB when enabled.
type Device struct {
	ID         string     `json:"id"`
	HomeID     string     `json:"home_id"`
	RoomID     string     `json:"room_id,omitempty"`
	Name       string     `json:"name"`
	Type       string     `json:"type"`
	Status     string     `json:"status"`
	LastActive *time.Time `json:"last_active,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Activity log severities.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// ActivityLog is one household event: a device change, a member
// sign-in, an alert. UserID and DeviceID are optional attribution.
type ActivityLog struct {
	ID        string    `json:"id"`
	HomeID    string    `json:"home_id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	UserID    string    `json:"user_id,omitempty"`
	DeviceID  string    `json:"device_id,omitempty"`
	Severity  string    `json:"severity"`
	CreatedAt time.Time `json:"created_at"`
}

// LogFilter narrows activity log queries. Zero Limit means the default
// page size; empty Type matches all entries.
type LogFilter struct {
	Limit int
	Type  string
}

// UserAccess is the coarse per-member access flag. Fine-grained
// per-device ACLs are deliberately out of scope.
type UserAccess struct {
	HomeID     string    `json:"home_id"`
	AccountID  string    `json:"account_id"`
	Accessible bool      `json:"accessible"`
	CreatedAt  time.Time `json:"created_at"`
}
