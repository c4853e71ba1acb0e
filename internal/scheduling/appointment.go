package scheduling

import (
	"context"
	"time"
)

// Appointment is a committed booking of one slot on one date. It is created
// once by a successful reservation and never updated in place.
type Appointment struct {
	ID          uint64
	SubjectID   uint64
	Date        time.Time // midnight UTC
	Slot        string
	ScheduledAt time.Time
	CreatedAt   time.Time
}

// DateString is the appointment date in DateLayout.
func (a Appointment) DateString() string { return FormatDate(a.Date) }

// BookingRequest is the caller's input to SubmitBooking. Date is a
// YYYY-MM-DD calendar date and Slot a catalog label such as "09:00".
type BookingRequest struct {
	SubjectID uint64
	Date      string
	Slot      string
}

// Reservation is what the service asks the ledger to commit atomically.
// DailyCap is the cap in force for this attempt; the ledger re-checks it
// inside its atomic boundary.
type Reservation struct {
	SubjectID uint64
	Date      time.Time
	Slot      string
	DailyCap  int
}

// Ledger is the sole authority over persisted appointments.
//
// Reserve must be atomic: the capacity check, the slot occupancy check and
// the insert happen against one consistent view, so that two concurrent
// reservations of the same (date, slot) cannot both succeed and the number
// of appointments on a date never exceeds the cap. It returns
// ErrCapacityExceeded, ErrSlotTaken or ErrInvalidSlot for business
// rejections, and errors wrapping ErrTransientStore or ErrUnexpectedStore
// for store failures. A failed Reserve leaves the ledger unchanged.
//
// The read methods are advisory and may observe a slightly stale view.
type Ledger interface {
	CountByDate(ctx context.Context, date time.Time) (int, error)
	ExistsForSlot(ctx context.Context, date time.Time, slot string) (bool, error)
	Reserve(ctx context.Context, r Reservation) (*Appointment, error)
	// ListByDateRange returns appointments with start <= date < end,
	// ordered by date then slot time.
	ListByDateRange(ctx context.Context, start, end time.Time) ([]Appointment, error)
}

// SubjectLister is implemented by ledgers that can list the appointments of
// one subject. It backs the "my appointments" view.
type SubjectLister interface {
	ListBySubject(ctx context.Context, subjectID uint64) ([]Appointment, error)
}

// EventPublisher receives every committed appointment. Publishing happens
// after the commit and its failure never undoes the booking.
type EventPublisher interface {
	PublishAppointmentBooked(ctx context.Context, a Appointment) error
}

// DayAvailability lists the free slots of one bookable date.
type DayAvailability struct {
	Date      string `json:"date"`
	Booked    int    `json:"booked"`
	Remaining int    `json:"remaining"`
	Slots     []Slot `json:"slots"`
}
