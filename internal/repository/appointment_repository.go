package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/clinicdesk/clinic-api/internal/scheduling"
)

// AppointmentRepo is the MySQL booking ledger.
//
// Reserve runs one READ COMMITTED transaction per attempt. It upserts and
// then locks the date's row in appointment_days, so reservations for the
// same date queue behind each other while other dates proceed in parallel.
// Under that lock it counts the date's appointments, checks the slot and
// inserts. UNIQUE(appt_date, slot) backs up the slot check.
type AppointmentRepo struct {
	db          *sql.DB
	catalog     *scheduling.Catalog
	maxAttempts int
	backoff     time.Duration
}

// NewAppointmentRepo returns a ledger over db validating slots against
// catalog.
func NewAppointmentRepo(db *sql.DB, catalog *scheduling.Catalog) *AppointmentRepo {
	return &AppointmentRepo{db: db, catalog: catalog, maxAttempts: 3, backoff: 25 * time.Millisecond}
}

const selectAppointment = `SELECT id, subject_id, appt_date, slot, scheduled_at, created_at FROM appointments`

func scanAppointment(row interface{ Scan(...any) error }) (scheduling.Appointment, error) {
	var a scheduling.Appointment
	err := row.Scan(&a.ID, &a.SubjectID, &a.Date, &a.Slot, &a.ScheduledAt, &a.CreatedAt)
	a.Date = scheduling.Day(a.Date)
	a.ScheduledAt = a.ScheduledAt.UTC()
	a.CreatedAt = a.CreatedAt.UTC()
	return a, err
}

// CountByDate returns the number of appointments on date.
func (r *AppointmentRepo) CountByDate(ctx context.Context, date time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM appointments WHERE appt_date = ?`,
		scheduling.FormatDate(date)).Scan(&n)
	if err != nil {
		return 0, classify(err)
	}
	return n, nil
}

// ExistsForSlot reports whether (date, slot) is booked.
func (r *AppointmentRepo) ExistsForSlot(ctx context.Context, date time.Time, slot string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM appointments WHERE appt_date = ? AND slot = ?`,
		scheduling.FormatDate(date), slot).Scan(&n)
	if err != nil {
		return false, classify(err)
	}
	return n > 0, nil
}

// Reserve atomically books r.Slot on r.Date. Deadlocks and lock wait
// timeouts replay the transaction up to three times.
func (r *AppointmentRepo) Reserve(ctx context.Context, res scheduling.Reservation) (*scheduling.Appointment, error) {
	slot, ok := r.catalog.Lookup(res.Slot)
	if !ok {
		return nil, scheduling.ErrInvalidSlot
	}
	limit := res.DailyCap
	if limit < 1 {
		limit = scheduling.DefaultDailyCap
	}
	date := scheduling.Day(res.Date)

	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		a, err := r.reserveTx(ctx, res.SubjectID, date, slot, limit)
		if err == nil {
			return a, nil
		}
		if !isRetryableTxError(err) {
			return nil, classify(err)
		}
		lastErr = err
		if attempt == r.maxAttempts {
			break
		}
		t := time.NewTimer(time.Duration(attempt) * r.backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, scheduling.TransientError(ctx.Err())
		case <-t.C:
		}
	}
	return nil, scheduling.TransientError(fmt.Errorf("reserve: %d attempts: %w", r.maxAttempts, lastErr))
}

func (r *AppointmentRepo) reserveTx(ctx context.Context, subjectID uint64, date time.Time, slot scheduling.Slot, limit int) (*scheduling.Appointment, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	day := scheduling.FormatDate(date)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO appointment_days (appt_date) VALUES (?) ON DUPLICATE KEY UPDATE appt_date = appt_date`,
		day); err != nil {
		return nil, err
	}
	var one int
	if err := tx.QueryRowContext(ctx,
		`SELECT 1 FROM appointment_days WHERE appt_date = ? FOR UPDATE`, day).Scan(&one); err != nil {
		return nil, err
	}

	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM appointments WHERE appt_date = ?`, day).Scan(&count); err != nil {
		return nil, err
	}
	if count >= limit {
		return nil, scheduling.ErrCapacityExceeded
	}
	var taken int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM appointments WHERE appt_date = ? AND slot = ?`, day, slot.Label).Scan(&taken); err != nil {
		return nil, err
	}
	if taken > 0 {
		return nil, scheduling.ErrSlotTaken
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO appointments (subject_id, appt_date, slot, scheduled_at) VALUES (?, ?, ?, ?)`,
		subjectID, day, slot.Label, r.catalog.ScheduledAt(date, slot))
	if err != nil {
		if isDuplicateKey(err) {
			return nil, scheduling.ErrSlotTaken
		}
		return nil, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	a, err := scanAppointment(tx.QueryRowContext(ctx, selectAppointment+` WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		// the commit may or may not have reached the server
		return nil, scheduling.UnexpectedError(fmt.Errorf("commit: %w", err))
	}
	committed = true
	return &a, nil
}

// ListByDateRange returns appointments with start <= date < end ordered by
// date and time.
func (r *AppointmentRepo) ListByDateRange(ctx context.Context, start, end time.Time) ([]scheduling.Appointment, error) {
	return r.list(ctx,
		selectAppointment+` WHERE appt_date >= ? AND appt_date < ? ORDER BY appt_date, scheduled_at`,
		scheduling.FormatDate(start), scheduling.FormatDate(end))
}

// ListBySubject returns the subject's appointments, earliest first.
func (r *AppointmentRepo) ListBySubject(ctx context.Context, subjectID uint64) ([]scheduling.Appointment, error) {
	return r.list(ctx, selectAppointment+` WHERE subject_id = ? ORDER BY scheduled_at`, subjectID)
}

func (r *AppointmentRepo) list(ctx context.Context, q string, args ...any) ([]scheduling.Appointment, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	out := make([]scheduling.Appointment, 0)
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, classify(err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// classify maps a store error onto the booking taxonomy. Business
// rejections and already classified errors pass through unchanged.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, scheduling.ErrInvalidSlot),
		errors.Is(err, scheduling.ErrCapacityExceeded),
		errors.Is(err, scheduling.ErrSlotTaken),
		errors.Is(err, scheduling.ErrTransientStore),
		errors.Is(err, scheduling.ErrUnexpectedStore):
		return err
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone),
		errors.Is(err, mysql.ErrInvalidConn),
		isRetryableTxError(err):
		return scheduling.TransientError(err)
	default:
		return scheduling.UnexpectedError(err)
	}
}
