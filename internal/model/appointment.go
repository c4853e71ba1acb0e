package model

import (
	"time"

	"github.com/clinicdesk/clinic-api/internal/scheduling"
)

// Appointment is the JSON shape of a booked appointment.
type Appointment struct {
	ID          uint64    `json:"id"`
	UserID      uint64    `json:"user_id"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	ScheduledAt time.Time `json:"scheduled_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewAppointment converts a ledger appointment for output.
func NewAppointment(a scheduling.Appointment) Appointment {
	return Appointment{
		ID:          a.ID,
		UserID:      a.SubjectID,
		Date:        a.DateString(),
		Time:        a.Slot,
		ScheduledAt: a.ScheduledAt,
		CreatedAt:   a.CreatedAt,
	}
}

// NewAppointments converts a list, never returning nil.
func NewAppointments(as []scheduling.Appointment) []Appointment {
	out := make([]Appointment, 0, len(as))
	for _, a := range as {
		out = append(out, NewAppointment(a))
	}
	return out
}
