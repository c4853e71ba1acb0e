package scheduling

import (
	"context"
	"time"
)

// DefaultDailyCap is the number of appointments accepted per date when no
// cap is configured.
const DefaultDailyCap = 5

// CapacityPolicy holds the daily cap and answers whether a date can take
// another appointment. Counts always come from the ledger; nothing is
// cached between calls. The answer is advisory: only Ledger.Reserve
// enforces the cap.
type CapacityPolicy struct {
	ledger Ledger
	cap    int
}

// NewCapacityPolicy returns a policy over ledger. A cap below one falls back
// to DefaultDailyCap.
func NewCapacityPolicy(ledger Ledger, dailyCap int) *CapacityPolicy {
	if dailyCap < 1 {
		dailyCap = DefaultDailyCap
	}
	return &CapacityPolicy{ledger: ledger, cap: dailyCap}
}

// Cap is the configured daily cap.
func (p *CapacityPolicy) Cap() int { return p.cap }

// DailyCount is the ledger's current count for date.
func (p *CapacityPolicy) DailyCount(ctx context.Context, date time.Time) (int, error) {
	return p.ledger.CountByDate(ctx, Day(date))
}

// CanAcceptAnother reports whether date is still below the cap.
func (p *CapacityPolicy) CanAcceptAnother(ctx context.Context, date time.Time) (bool, error) {
	n, err := p.DailyCount(ctx, date)
	if err != nil {
		return false, err
	}
	return n < p.cap, nil
}
