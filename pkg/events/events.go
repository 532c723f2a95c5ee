// Package events defines the typed events pushed by the server over the
// event channel and their wire envelope.
package events

import "time"

// Kind identifies the shape of an event's payload.
type Kind string

// Event kinds.
const (
	AppointmentStatusChanged Kind = "appointment.status_changed"
	QueuePositionUpdated     Kind = "queue.position_updated"
	SystemNotice             Kind = "system.notice"
)

// Kinds lists every known kind.
var Kinds = []Kind{AppointmentStatusChanged, QueuePositionUpdated, SystemNotice}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case AppointmentStatusChanged, QueuePositionUpdated, SystemNotice:
		return true
	}
	return false
}

// Event is one server notification. Events are values; nothing in the
// client mutates or stores them after delivery.
type Event struct {
	Kind      Kind
	Timestamp time.Time
	// TargetUserID is the user the event is addressed to. Empty means broadcast.
	TargetUserID string
	// Payload is one of AppointmentStatus, QueuePosition or Notice, matching Kind.
	Payload any
}

// AppliesTo reports whether the event should reach userID.
func (e Event) AppliesTo(userID string) bool {
	return e.TargetUserID == "" || e.TargetUserID == userID
}

// Status is an appointment's lifecycle state.
type Status string

// Appointment statuses.
const (
	StatusBooked     Status = "booked"
	StatusConfirmed  Status = "confirmed"
	StatusReady      Status = "ready"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no_show"
)

// AppointmentStatus is the payload of AppointmentStatusChanged.
type AppointmentStatus struct {
	AppointmentID string    `json:"appointment_id"`
	Status        Status    `json:"status"`
	TokenNumber   string    `json:"token_number,omitempty"`
	Service       string    `json:"service,omitempty"`
	Office        string    `json:"office,omitempty"`
	Counter       string    `json:"counter,omitempty"`
	ScheduledAt   time.Time `json:"scheduled_at,omitzero"`
}

// QueuePosition is the payload of QueuePositionUpdated.
type QueuePosition struct {
	QueueID              string `json:"queue_id"`
	TokenNumber          string `json:"token_number"`
	Position             int    `json:"position"`
	EstimatedWaitMinutes int    `json:"estimated_wait_minutes"`
	Service              string `json:"service,omitempty"`
	Office               string `json:"office,omitempty"`
}

// Level is the severity a SystemNotice asks for.
type Level string

// Notice levels.
const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is the payload of SystemNotice.
type Notice struct {
	Level   Level  `json:"level"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message"`
}
