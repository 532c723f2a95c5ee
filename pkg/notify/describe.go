package notify

import (
	"fmt"
	"strings"

	"github.com/agentstation/queuelink/pkg/events"
)

// Severity is how prominently a notification should be shown.
type Severity string

// Severities.
const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Descriptor is a user-visible notification.
type Descriptor struct {
	Severity Severity
	Title    string
	Message  string
}

// IsZero reports whether there is nothing to show.
func (d Descriptor) IsZero() bool {
	return d.Message == ""
}

// Describe maps an event to the notification it should produce and the
// cache keys it makes stale. It is pure.
func Describe(e events.Event) (Descriptor, []string) {
	switch p := e.Payload.(type) {
	case events.AppointmentStatus:
		return describeAppointment(p), appointmentKeys(e.TargetUserID, p)
	case events.QueuePosition:
		return describeQueue(p), queueKeys(p)
	case events.Notice:
		return Descriptor{
			Severity: noticeSeverity(p.Level),
			Title:    p.Title,
			Message:  p.Message,
		}, nil
	}
	return Descriptor{}, nil
}

// Cache keys.

// AppointmentsKey is the list of a user's appointments.
func AppointmentsKey(userID string) string {
	if userID == "" {
		return "appointments"
	}
	return "appointments:user:" + userID
}

// AppointmentKey is a single appointment.
func AppointmentKey(id string) string {
	return "appointment:" + id
}

// TicketKey is the queue position of one token.
func TicketKey(token string) string {
	return "queue:ticket:" + token
}

// QueueKey is the state of a whole queue.
func QueueKey(id string) string {
	return "queue:" + id
}

func appointmentKeys(userID string, p events.AppointmentStatus) []string {
	keys := []string{AppointmentsKey(userID)}
	if p.AppointmentID != "" {
		keys = append(keys, AppointmentKey(p.AppointmentID))
	}
	if p.TokenNumber != "" {
		keys = append(keys, TicketKey(p.TokenNumber))
	}
	return keys
}

func queueKeys(p events.QueuePosition) []string {
	var keys []string
	if p.TokenNumber != "" {
		keys = append(keys, TicketKey(p.TokenNumber))
	}
	if p.QueueID != "" {
		keys = append(keys, QueueKey(p.QueueID))
	}
	return keys
}

func describeAppointment(p events.AppointmentStatus) Descriptor {
	where := place(p.Service, p.Office)
	switch p.Status {
	case events.StatusBooked, events.StatusConfirmed:
		return Descriptor{
			Severity: SeveritySuccess,
			Title:    "Appointment confirmed",
			Message:  sentence("Your appointment"+where+" is confirmed", token(p.TokenNumber)),
		}
	case events.StatusReady:
		counter := "counter"
		if p.Counter != "" {
			counter = "counter " + p.Counter
		}
		return Descriptor{
			Severity: SeverityInfo,
			Title:    "It's your turn!",
			Message:  sentence("It's your turn! Please report to "+counter+where, token(p.TokenNumber)),
		}
	case events.StatusInProgress:
		return Descriptor{
			Severity: SeverityInfo,
			Title:    "Being served",
			Message:  sentence("Your request"+where+" is being served", token(p.TokenNumber)),
		}
	case events.StatusCompleted:
		visit := "Thank you for your visit"
		if p.Office != "" {
			visit = "Thank you for visiting " + p.Office
		}
		request := "Your request has been processed"
		if p.Service != "" {
			request = "Your " + p.Service + " request has been processed"
		}
		ref := ""
		if p.TokenNumber != "" {
			ref = "Reference: " + p.TokenNumber
		}
		return Descriptor{
			Severity: SeveritySuccess,
			Title:    "Appointment completed",
			Message:  sentence(visit, request, ref),
		}
	case events.StatusCancelled:
		return Descriptor{
			Severity: SeverityWarning,
			Title:    "Appointment cancelled",
			Message:  sentence("Your appointment" + where + " has been cancelled"),
		}
	case events.StatusNoShow:
		return Descriptor{
			Severity: SeverityWarning,
			Title:    "Appointment missed",
			Message:  sentence("Your appointment"+where+" was marked as missed", token(p.TokenNumber)),
		}
	}
	return Descriptor{
		Severity: SeverityInfo,
		Title:    "Appointment updated",
		Message:  sentence(fmt.Sprintf("Appointment %s is now %s", p.AppointmentID, strings.ReplaceAll(string(p.Status), "_", " "))),
	}
}

func describeQueue(p events.QueuePosition) Descriptor {
	head := "Update: Your token " + p.TokenNumber + place(p.Service, p.Office)
	if p.TokenNumber == "" {
		head = "Update: Your queue position changed"
	}
	wait := ""
	if p.EstimatedWaitMinutes > 0 {
		wait = fmt.Sprintf("Estimated wait: %d minutes", p.EstimatedWaitMinutes)
	}
	return Descriptor{
		Severity: SeverityInfo,
		Title:    "Queue update",
		Message:  sentence(head, fmt.Sprintf("Current position: %d", p.Position), wait),
	}
}

func noticeSeverity(l events.Level) Severity {
	switch l {
	case events.LevelWarning:
		return SeverityWarning
	case events.LevelError:
		return SeverityError
	}
	return SeverityInfo
}

// place renders " for <service> at <office>", skipping missing parts.
func place(service, office string) string {
	var b strings.Builder
	if service != "" {
		b.WriteString(" for " + service)
	}
	if office != "" {
		b.WriteString(" at " + office)
	}
	return b.String()
}

func token(n string) string {
	if n == "" {
		return ""
	}
	return "Token: " + n
}

// sentence joins non-empty clauses, each ending with a period.
func sentence(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		if !strings.HasSuffix(p, ".") && !strings.HasSuffix(p, "!") {
			p += "."
		}
		out = append(out, p)
	}
	return strings.Join(out, " ")
}
