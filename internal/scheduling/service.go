package scheduling

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options carries the booking rules that come from configuration.
type Options struct {
	DailyCap           int
	ReserveTimeout     time.Duration
	DefaultHorizonDays int
	MaxHorizonDays     int
	PublishTimeout     time.Duration
}

func (o Options) withDefaults() Options {
	if o.DailyCap < 1 {
		o.DailyCap = DefaultDailyCap
	}
	if o.ReserveTimeout <= 0 {
		o.ReserveTimeout = 3 * time.Second
	}
	if o.DefaultHorizonDays < 1 {
		o.DefaultHorizonDays = 30
	}
	if o.MaxHorizonDays < o.DefaultHorizonDays {
		o.MaxHorizonDays = o.DefaultHorizonDays
	}
	if o.PublishTimeout <= 0 {
		o.PublishTimeout = 2 * time.Second
	}
	return o
}

// Service is the entry point for booking and availability. It holds no
// booking state of its own; every decision reads or atomically mutates the
// ledger.
type Service struct {
	catalog   *Catalog
	policy    *CapacityPolicy
	ledger    Ledger
	publisher EventPublisher
	opts      Options
	log       zerolog.Logger
	now       func() time.Time
}

// NewService wires the catalog, ledger and options into a Service.
func NewService(catalog *Catalog, ledger Ledger, opts Options, logger zerolog.Logger) *Service {
	opts = opts.withDefaults()
	return &Service{
		catalog: catalog,
		policy:  NewCapacityPolicy(ledger, opts.DailyCap),
		ledger:  ledger,
		opts:    opts,
		log:     logger.With().Str("component", "booking").Logger(),
		now:     time.Now,
	}
}

// WithPublisher sets the publisher notified after each commit.
func (s *Service) WithPublisher(p EventPublisher) *Service {
	s.publisher = p
	return s
}

// WithClock replaces the clock used to determine "today".
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Catalog returns the slot catalog in use.
func (s *Service) Catalog() *Catalog { return s.catalog }

// Policy returns the capacity policy in use.
func (s *Service) Policy() *CapacityPolicy { return s.policy }

// SubmitBooking validates req and reserves the slot.
//
// It returns the committed appointment, or an error whose ReasonOf is one of
// MISSING_FIELD, INVALID_DATE, INVALID_SLOT, CAPACITY_EXCEEDED, SLOT_TAKEN,
// TRANSIENT_STORE_FAILURE or UNEXPECTED_STORE_FAILURE. Rejections are final
// and not retried here; transient failures left no partial write and may be
// retried by the caller.
//
// If ctx is cancelled after the ledger committed, the appointment stands.
func (s *Service) SubmitBooking(ctx context.Context, req BookingRequest) (*Appointment, error) {
	log := s.log.With().
		Uint64("subject_id", req.SubjectID).
		Str("date", req.Date).
		Str("slot", req.Slot).
		Logger()

	a, err := s.submit(ctx, req)
	if err != nil {
		reason := ReasonOf(err)
		evt := log.Info()
		switch reason {
		case ReasonTransientStoreFailure:
			evt = log.Warn()
		case ReasonUnexpectedStoreFailure:
			evt = log.Error()
		}
		evt.Err(err).Str("reason", string(reason)).Msg("booking rejected")
		return nil, err
	}

	log.Info().Uint64("appointment_id", a.ID).Time("scheduled_at", a.ScheduledAt).Msg("appointment booked")
	s.publish(ctx, *a)
	return a, nil
}

func (s *Service) submit(ctx context.Context, req BookingRequest) (*Appointment, error) {
	// received
	dateStr := strings.TrimSpace(req.Date)
	label := strings.TrimSpace(req.Slot)
	switch {
	case req.SubjectID == 0:
		return nil, missingField("user_id")
	case dateStr == "":
		return nil, missingField("date")
	case label == "":
		return nil, missingField("time")
	}
	date, err := ParseDate(dateStr)
	if err != nil {
		return nil, err
	}

	// validated
	if !s.catalog.IsValid(label) {
		return nil, ErrInvalidSlot
	}

	// capacity pre-check; the ledger re-checks atomically
	ok, err := s.policy.CanAcceptAnother(ctx, date)
	switch {
	case err != nil:
		s.log.Warn().Err(err).Str("date", dateStr).Msg("capacity pre-check failed, deferring to reservation")
	case !ok:
		return nil, ErrCapacityExceeded
	}

	rctx, cancel := context.WithTimeout(ctx, s.opts.ReserveTimeout)
	defer cancel()
	a, err := s.ledger.Reserve(rctx, Reservation{
		SubjectID: req.SubjectID,
		Date:      date,
		Slot:      label,
		DailyCap:  s.policy.Cap(),
	})
	if err != nil {
		return nil, normalize(err)
	}
	return a, nil
}

func (s *Service) publish(ctx context.Context, a Appointment) {
	if s.publisher == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.PublishTimeout)
	defer cancel()
	if err := s.publisher.PublishAppointmentBooked(pctx, a); err != nil {
		s.log.Warn().Err(err).Uint64("appointment_id", a.ID).Msg("publish appointment.booked failed")
	}
}

// ListBySubject returns the subject's appointments when the ledger supports
// it.
func (s *Service) ListBySubject(ctx context.Context, subjectID uint64) ([]Appointment, error) {
	sl, ok := s.ledger.(SubjectLister)
	if !ok {
		return nil, UnexpectedError(errors.New("ledger cannot list by subject"))
	}
	as, err := sl.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, normalize(err)
	}
	return as, nil
}

// ListRange returns the appointments with start <= date < end.
func (s *Service) ListRange(ctx context.Context, start, end time.Time) ([]Appointment, error) {
	as, err := s.ledger.ListByDateRange(ctx, Day(start), Day(end))
	if err != nil {
		return nil, normalize(err)
	}
	return as, nil
}

// normalize makes sure every error leaving the service belongs to the
// reject taxonomy.
func normalize(err error) error {
	switch {
	case errors.Is(err, ErrInvalidSlot),
		errors.Is(err, ErrCapacityExceeded),
		errors.Is(err, ErrSlotTaken),
		errors.Is(err, ErrTransientStore),
		errors.Is(err, ErrUnexpectedStore):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return TransientError(err)
	default:
		return UnexpectedError(err)
	}
}
