// Package queue defines the broker messages and the background consumer
// that records them.
package queue

import (
	"time"

	"github.com/clinicdesk/clinic-api/internal/scheduling"
)

// AppointmentBookedQueue is the durable queue carrying booking events.
const AppointmentBookedQueue = "appointment.booked"

// AppointmentBookedEvent is published once per committed appointment.
type AppointmentBookedEvent struct {
	AppointmentID uint64 `json:"appointment_id"`
	UserID        uint64 `json:"user_id"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	ScheduledAt   string `json:"scheduled_at"`
	BookedAt      string `json:"booked_at"`
}

// NewAppointmentBookedEvent builds the event for a ledger appointment.
func NewAppointmentBookedEvent(a scheduling.Appointment) AppointmentBookedEvent {
	return AppointmentBookedEvent{
		AppointmentID: a.ID,
		UserID:        a.SubjectID,
		Date:          a.DateString(),
		Time:          a.Slot,
		ScheduledAt:   a.ScheduledAt.UTC().Format(time.RFC3339),
		BookedAt:      a.CreatedAt.UTC().Format(time.RFC3339),
	}
}
