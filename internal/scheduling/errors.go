// Package scheduling decides whether an appointment may be booked for a given
// date and time slot. It owns the slot catalog, the daily capacity rule and
// the orchestration around the ledger's atomic reservation. Persistence
// lives behind the Ledger interface so the same rules apply to the MySQL
// store and to the in-process MemoryLedger.
package scheduling

import (
	"errors"
	"fmt"
)

// Reason is the stable, machine-readable code attached to every rejected
// booking attempt. Clients switch on it; the text of the error may change.
type Reason string

const (
	ReasonNone                   Reason = ""
	ReasonMissingField           Reason = "MISSING_FIELD"
	ReasonInvalidDate            Reason = "INVALID_DATE"
	ReasonInvalidSlot            Reason = "INVALID_SLOT"
	ReasonCapacityExceeded       Reason = "CAPACITY_EXCEEDED"
	ReasonSlotTaken              Reason = "SLOT_TAKEN"
	ReasonTransientStoreFailure  Reason = "TRANSIENT_STORE_FAILURE"
	ReasonUnexpectedStoreFailure Reason = "UNEXPECTED_STORE_FAILURE"
)

// Sentinel errors for each rejection. Ledger implementations return (or
// wrap) these so that callers can use errors.Is regardless of the store.
var (
	ErrMissingField     = errors.New("missing required field")
	ErrInvalidDate      = errors.New("invalid date, expected YYYY-MM-DD")
	ErrInvalidSlot      = errors.New("invalid time slot selected")
	ErrCapacityExceeded = errors.New("booking limit reached for this day")
	ErrSlotTaken        = errors.New("time slot already booked")
	ErrTransientStore   = errors.New("appointment store temporarily unavailable")
	ErrUnexpectedStore  = errors.New("appointment store failure")
)

// missingField names the absent field while still matching ErrMissingField.
func missingField(name string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, name)
}

// TransientError wraps a store error that is safe to retry: no partial
// write happened.
func TransientError(err error) error {
	return fmt.Errorf("%w: %w", ErrTransientStore, err)
}

// UnexpectedError wraps a store error that should surface as an internal
// failure and must not be retried automatically.
func UnexpectedError(err error) error {
	return fmt.Errorf("%w: %w", ErrUnexpectedStore, err)
}

// ReasonOf maps an error returned by this package to its reason code. Errors
// that do not belong to the taxonomy are reported as unexpected store
// failures; nil maps to ReasonNone.
func ReasonOf(err error) Reason {
	switch {
	case err == nil:
		return ReasonNone
	case errors.Is(err, ErrMissingField):
		return ReasonMissingField
	case errors.Is(err, ErrInvalidDate):
		return ReasonInvalidDate
	case errors.Is(err, ErrInvalidSlot):
		return ReasonInvalidSlot
	case errors.Is(err, ErrCapacityExceeded):
		return ReasonCapacityExceeded
	case errors.Is(err, ErrSlotTaken):
		return ReasonSlotTaken
	case errors.Is(err, ErrTransientStore):
		return ReasonTransientStoreFailure
	default:
		return ReasonUnexpectedStoreFailure
	}
}

// Retriable reports whether the same request may be retried unchanged.
// Business rejections are final for that (date, slot); only transient store
// failures are worth another attempt.
func Retriable(err error) bool {
	return errors.Is(err, ErrTransientStore)
}
