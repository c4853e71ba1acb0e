package scheduling

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// spyLedger counts calls into the wrapped ledger and can inject failures.
type spyLedger struct {
	Ledger

	counts   atomic.Int64
	reserves atomic.Int64
	lists    atomic.Int64

	countErr   error
	reserveErr error
	reserveFn  func(ctx context.Context, r Reservation) (*Appointment, error)
}

func (s *spyLedger) CountByDate(ctx context.Context, date time.Time) (int, error) {
	s.counts.Add(1)
	if s.countErr != nil {
		return 0, s.countErr
	}
	return s.Ledger.CountByDate(ctx, date)
}

func (s *spyLedger) Reserve(ctx context.Context, r Reservation) (*Appointment, error) {
	s.reserves.Add(1)
	if s.reserveFn != nil {
		return s.reserveFn(ctx, r)
	}
	if s.reserveErr != nil {
		return nil, s.reserveErr
	}
	return s.Ledger.Reserve(ctx, r)
}

func (s *spyLedger) ListByDateRange(ctx context.Context, start, end time.Time) ([]Appointment, error) {
	s.lists.Add(1)
	return s.Ledger.ListByDateRange(ctx, start, end)
}

func (s *spyLedger) calls() int64 {
	return s.counts.Load() + s.reserves.Load() + s.lists.Load()
}

type recordingPublisher struct {
	mu  sync.Mutex
	got []Appointment
	err error
}

func (p *recordingPublisher) PublishAppointmentBooked(_ context.Context, a Appointment) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, a)
	return p.err
}

func fixedClock(s string) func() time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return func() time.Time { return t }
}

func newTestService(t *testing.T, dailyCap int) (*Service, *spyLedger) {
	t.Helper()
	catalog := MustCatalog(DefaultSlotLabels)
	spy := &spyLedger{Ledger: NewMemoryLedger(catalog)}
	svc := NewService(catalog, spy, Options{DailyCap: dailyCap}, zerolog.Nop()).
		WithClock(fixedClock("2025-06-01T08:30:00Z"))
	return svc, spy
}

func TestSubmitBooking_Success(t *testing.T) {
	svc, _ := newTestService(t, 5)
	pub := &recordingPublisher{}
	svc.WithPublisher(pub)

	a, err := svc.SubmitBooking(context.Background(), BookingRequest{SubjectID: 7, Date: "2025-06-01", Slot: "09:00"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.ID == 0 || a.SubjectID != 7 || a.Slot != "09:00" {
		t.Errorf("unexpected appointment: %+v", a)
	}
	want := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	if !a.ScheduledAt.Equal(want) {
		t.Errorf("expected scheduled_at %v, got %v", want, a.ScheduledAt)
	}
	if a.DateString() != "2025-06-01" {
		t.Errorf("expected date 2025-06-01, got %s", a.DateString())
	}
	if len(pub.got) != 1 || pub.got[0].ID != a.ID {
		t.Errorf("expected one published appointment, got %+v", pub.got)
	}
}

func TestSubmitBooking_PublishFailureKeepsBooking(t *testing.T) {
	svc, spy := newTestService(t, 5)
	svc.WithPublisher(&recordingPublisher{err: errors.New("broker down")})

	if _, err := svc.SubmitBooking(context.Background(), BookingRequest{SubjectID: 1, Date: "2025-06-01", Slot: "07:00"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n, _ := spy.Ledger.CountByDate(context.Background(), time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	if n != 1 {
		t.Errorf("expected booking to stand, count=%d", n)
	}
}

func TestSubmitBooking_MissingFields(t *testing.T) {
	svc, spy := newTestService(t, 5)
	tests := []struct {
		name  string
		req   BookingRequest
		field string
	}{
		{"no subject", BookingRequest{Date: "2025-06-01", Slot: "09:00"}, "user_id"},
		{"no date", BookingRequest{SubjectID: 1, Slot: "09:00"}, "date"},
		{"blank date", BookingRequest{SubjectID: 1, Date: "  ", Slot: "09:00"}, "date"},
		{"no slot", BookingRequest{SubjectID: 1, Date: "2025-06-01"}, "time"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SubmitBooking(context.Background(), tt.req)
			if ReasonOf(err) != ReasonMissingField {
				t.Fatalf("expected MISSING_FIELD, got %v", err)
			}
			if want := "missing required field: " + tt.field; err.Error() != want {
				t.Errorf("expected %q, got %q", want, err.Error())
			}
		})
	}
	if spy.calls() != 0 {
		t.Errorf("expected no ledger access, got %d calls", spy.calls())
	}
}

func TestSubmitBooking_InvalidDate(t *testing.T) {
	svc, spy := newTestService(t, 5)
	_, err := svc.SubmitBooking(context.Background(), BookingRequest{SubjectID: 1, Date: "06/01/2025", Slot: "09:00"})
	if ReasonOf(err) != ReasonInvalidDate {
		t.Fatalf("expected INVALID_DATE, got %v", err)
	}
	if spy.calls() != 0 {
		t.Errorf("expected no ledger access, got %d calls", spy.calls())
	}
}

func TestSubmitBooking_InvalidSlotTouchesNothing(t *testing.T) {
	svc, spy := newTestService(t, 5)
	_, err := svc.SubmitBooking(context.Background(), BookingRequest{SubjectID: 1, Date: "2025-06-01", Slot: "03:00"})
	if !errors.Is(err, ErrInvalidSlot) {
		t.Fatalf("expected ErrInvalidSlot, got %v", err)
	}
	if spy.calls() != 0 {
		t.Errorf("expected zero ledger access, got %d calls", spy.calls())
	}
}

// Two subjects race for 2025-06-01 09:00: exactly one wins.
func TestSubmitBooking_RaceForSameSlot(t *testing.T) {
	svc, _ := newTestService(t, 5)

	var wg sync.WaitGroup
	results := make([]error, 2)
	start := make(chan struct{})
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, results[i] = svc.SubmitBooking(context.Background(), BookingRequest{
				SubjectID: uint64(i + 1), Date: "2025-06-01", Slot: "09:00",
			})
		}(i)
	}
	close(start)
	wg.Wait()

	var ok, taken int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrSlotTaken):
			taken++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 || taken != 1 {
		t.Errorf("expected one success and one SLOT_TAKEN, got ok=%d taken=%d", ok, taken)
	}
}

func TestSubmitBooking_CapReached(t *testing.T) {
	svc, spy := newTestService(t, 5)
	ctx := context.Background()
	for _, slot := range []string{"07:00", "08:00", "09:00", "10:00", "11:00"} {
		if _, err := svc.SubmitBooking(ctx, BookingRequest{SubjectID: 1, Date: "2025-06-01", Slot: slot}); err != nil {
			t.Fatalf("booking %s: %v", slot, err)
		}
	}
	before := spy.reserves.Load()
	_, err := svc.SubmitBooking(ctx, BookingRequest{SubjectID: 2, Date: "2025-06-01", Slot: "13:00"})
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
	if spy.reserves.Load() != before {
		t.Error("expected the pre-check to reject without calling Reserve")
	}
	// another date is unaffected
	if _, err := svc.SubmitBooking(ctx, BookingRequest{SubjectID: 2, Date: "2025-06-02", Slot: "13:00"}); err != nil {
		t.Errorf("unexpected error on next day: %v", err)
	}
}

func TestSubmitBooking_CapacityBeforeSlot(t *testing.T) {
	svc, _ := newTestService(t, 2)
	ctx := context.Background()
	for _, slot := range []string{"07:00", "08:00"} {
		if _, err := svc.SubmitBooking(ctx, BookingRequest{SubjectID: 1, Date: "2025-06-01", Slot: slot}); err != nil {
			t.Fatalf("booking %s: %v", slot, err)
		}
	}
	_, err := svc.SubmitBooking(ctx, BookingRequest{SubjectID: 2, Date: "2025-06-01", Slot: "07:00"})
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("expected capacity to win over slot taken, got %v", err)
	}
}

// Pre-check passes but the ledger rejects; the ledger's answer is final.
func TestSubmitBooking_LedgerIsAuthoritative(t *testing.T) {
	svc, spy := newTestService(t, 5)
	spy.reserveErr = ErrCapacityExceeded
	_, err := svc.SubmitBooking(context.Background(), BookingRequest{SubjectID: 1, Date: "2025-06-01", Slot: "09:00"})
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("expected ErrCapacityExceeded, got %v", err)
	}
}

func TestSubmitBooking_PreCheckFailureDefersToReserve(t *testing.T) {
	svc, spy := newTestService(t, 5)
	spy.countErr = errors.New("replica lag")
	a, err := svc.SubmitBooking(context.Background(), BookingRequest{SubjectID: 1, Date: "2025-06-01", Slot: "09:00"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a == nil || spy.reserves.Load() != 1 {
		t.Error("expected Reserve to decide")
	}
}

func TestSubmitBooking_StoreFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Reason
	}{
		{"transient", TransientError(errors.New("bad conn")), ReasonTransientStoreFailure},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), ReasonTransientStoreFailure},
		{"unexpected", UnexpectedError(errors.New("syntax error")), ReasonUnexpectedStoreFailure},
		{"unclassified", errors.New("boom"), ReasonUnexpectedStoreFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, spy := newTestService(t, 5)
			spy.reserveErr = tt.err
			_, err := svc.SubmitBooking(context.Background(), BookingRequest{SubjectID: 1, Date: "2025-06-01", Slot: "09:00"})
			if got := ReasonOf(err); got != tt.want {
				t.Errorf("expected %s, got %s (%v)", tt.want, got, err)
			}
			if tt.want == ReasonUnexpectedStoreFailure && !errors.Is(err, ErrUnexpectedStore) {
				t.Errorf("expected error to wrap ErrUnexpectedStore, got %v", err)
			}
		})
	}
}

func TestSubmitBooking_ReserveTimeoutIsTransient(t *testing.T) {
	catalog := MustCatalog(DefaultSlotLabels)
	spy := &spyLedger{Ledger: NewMemoryLedger(catalog)}
	spy.reserveFn = func(ctx context.Context, _ Reservation) (*Appointment, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	svc := NewService(catalog, spy, Options{ReserveTimeout: 20 * time.Millisecond}, zerolog.Nop())

	_, err := svc.SubmitBooking(context.Background(), BookingRequest{SubjectID: 1, Date: "2025-06-01", Slot: "09:00"})
	if !errors.Is(err, ErrTransientStore) {
		t.Fatalf("expected transient failure, got %v", err)
	}
	if !Retriable(err) {
		t.Error("expected timeout to be retriable")
	}
}

// Valid requests for distinct free slots under the cap are all accepted.
func TestSubmitBooking_NoFalseRejection(t *testing.T) {
	svc, _ := newTestService(t, 5)
	ctx := context.Background()
	dates := []string{"2025-06-01", "2025-06-02", "2025-06-03"}
	slots := []string{"07:00", "09:00", "11:00", "14:00"}
	for _, d := range dates {
		for i, s := range slots {
			if _, err := svc.SubmitBooking(ctx, BookingRequest{SubjectID: uint64(i + 1), Date: d, Slot: s}); err != nil {
				t.Errorf("%s %s: unexpected rejection: %v", d, s, err)
			}
		}
	}
}

// Many concurrent submissions over every slot of a few dates never
// produce a duplicate (date, slot) or more than cap bookings per date.
func TestSubmitBooking_ConcurrentInvariants(t *testing.T) {
	const dailyCap = 3
	svc, spy := newTestService(t, dailyCap)
	ctx := context.Background()
	dates := []string{"2025-06-01", "2025-06-02"}

	var wg sync.WaitGroup
	var accepted atomic.Int64
	for round := 0; round < 4; round++ {
		for _, d := range dates {
			for _, s := range DefaultSlotLabels {
				wg.Add(1)
				go func(subject uint64, d, s string) {
					defer wg.Done()
					_, err := svc.SubmitBooking(ctx, BookingRequest{SubjectID: subject, Date: d, Slot: s})
					switch {
					case err == nil:
						accepted.Add(1)
					case errors.Is(err, ErrSlotTaken), errors.Is(err, ErrCapacityExceeded):
					default:
						t.Errorf("unexpected error: %v", err)
					}
				}(uint64(round+1), d, s)
			}
		}
	}
	wg.Wait()

	if got := accepted.Load(); got != int64(dailyCap*len(dates)) {
		t.Errorf("expected %d accepted bookings, got %d", dailyCap*len(dates), got)
	}
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	all, err := spy.Ledger.ListByDateRange(ctx, start, start.AddDate(0, 0, len(dates)))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	perDay := map[string]int{}
	seen := map[string]bool{}
	for _, a := range all {
		key := a.DateString() + " " + a.Slot
		if seen[key] {
			t.Errorf("duplicate booking for %s", key)
		}
		seen[key] = true
		perDay[a.DateString()]++
	}
	for d, n := range perDay {
		if n > dailyCap {
			t.Errorf("%s: %d bookings exceeds cap %d", d, n, dailyCap)
		}
	}
}
