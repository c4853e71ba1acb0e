package scheduling

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryLedger is an in-process Ledger. A single mutex makes Reserve atomic,
// which gives the same guarantees as the transactional MySQL ledger for one
// process. It backs tests and STORE_DRIVER=memory.
type MemoryLedger struct {
	catalog *Catalog
	now     func() time.Time

	mu     sync.RWMutex
	nextID uint64
	byID   map[uint64]*Appointment
	bySlot map[slotKey]uint64 // (date, slot) -> appointment ID
	perDay map[time.Time]int
}

type slotKey struct {
	date time.Time
	slot string
}

// NewMemoryLedger returns an empty ledger validating slots against catalog.
func NewMemoryLedger(catalog *Catalog) *MemoryLedger {
	return &MemoryLedger{
		catalog: catalog,
		now:     time.Now,
		byID:    make(map[uint64]*Appointment),
		bySlot:  make(map[slotKey]uint64),
		perDay:  make(map[time.Time]int),
	}
}

// CountByDate returns the number of appointments on date.
func (l *MemoryLedger) CountByDate(_ context.Context, date time.Time) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.perDay[Day(date)], nil
}

// ExistsForSlot reports whether (date, slot) is already booked.
func (l *MemoryLedger) ExistsForSlot(_ context.Context, date time.Time, slot string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.bySlot[slotKey{Day(date), slot}]
	return ok, nil
}

// Reserve books the slot if the date is under its cap and the slot is free.
// Capacity is checked before occupancy.
func (l *MemoryLedger) Reserve(ctx context.Context, r Reservation) (*Appointment, error) {
	slot, ok := l.catalog.Lookup(r.Slot)
	if !ok {
		return nil, ErrInvalidSlot
	}
	if err := ctx.Err(); err != nil {
		return nil, TransientError(err)
	}
	date := Day(r.Date)
	limit := r.DailyCap
	if limit < 1 {
		limit = DefaultDailyCap
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.perDay[date] >= limit {
		return nil, ErrCapacityExceeded
	}
	key := slotKey{date, slot.Label}
	if _, taken := l.bySlot[key]; taken {
		return nil, ErrSlotTaken
	}

	l.nextID++
	a := &Appointment{
		ID:          l.nextID,
		SubjectID:   r.SubjectID,
		Date:        date,
		Slot:        slot.Label,
		ScheduledAt: l.catalog.ScheduledAt(date, slot),
		CreatedAt:   l.now().UTC(),
	}
	l.byID[a.ID] = a
	l.bySlot[key] = a.ID
	l.perDay[date]++

	out := *a
	return &out, nil
}

// ListByDateRange returns appointments with start <= date < end.
func (l *MemoryLedger) ListByDateRange(_ context.Context, start, end time.Time) ([]Appointment, error) {
	start, end = Day(start), Day(end)
	l.mu.RLock()
	out := make([]Appointment, 0)
	for _, a := range l.byID {
		if a.Date.Before(start) || !a.Date.Before(end) {
			continue
		}
		out = append(out, *a)
	}
	l.mu.RUnlock()
	sortByTime(out)
	return out, nil
}

// ListBySubject returns the subject's appointments, earliest first.
func (l *MemoryLedger) ListBySubject(_ context.Context, subjectID uint64) ([]Appointment, error) {
	l.mu.RLock()
	out := make([]Appointment, 0)
	for _, a := range l.byID {
		if a.SubjectID == subjectID {
			out = append(out, *a)
		}
	}
	l.mu.RUnlock()
	sortByTime(out)
	return out, nil
}

func sortByTime(as []Appointment) {
	sort.Slice(as, func(i, j int) bool {
		return as[i].ScheduledAt.Before(as[j].ScheduledAt)
	})
}
