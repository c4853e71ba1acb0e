package scheduling

import (
	"context"
	"time"
)

// ListAvailability returns the bookable dates of the next horizonDays days,
// today included, each with its free slots in catalog order. A date is
// listed when it is below the daily cap and has at least one free slot.
//
// The listing is a read-only snapshot for display; a slot shown here can
// still be lost to a concurrent reservation. horizonDays <= 0 selects the
// default horizon and values above the maximum are clamped.
func (s *Service) ListAvailability(ctx context.Context, horizonDays int) ([]DayAvailability, error) {
	days := s.horizon(horizonDays)
	start := Day(s.now())
	end := start.AddDate(0, 0, days)

	booked, err := s.ledger.ListByDateRange(ctx, start, end)
	if err != nil {
		return nil, normalize(err)
	}

	taken := make(map[time.Time]map[string]struct{}, len(booked))
	for _, a := range booked {
		d := Day(a.Date)
		if taken[d] == nil {
			taken[d] = make(map[string]struct{})
		}
		taken[d][a.Slot] = struct{}{}
	}

	limit := s.policy.Cap()
	out := make([]DayAvailability, 0, days)
	for i := 0; i < days; i++ {
		d := start.AddDate(0, 0, i)
		occupied := taken[d]
		if len(occupied) >= limit {
			continue
		}
		free := make([]Slot, 0, s.catalog.Len())
		for _, slot := range s.catalog.All() {
			if _, ok := occupied[slot.Label]; !ok {
				free = append(free, slot)
			}
		}
		if len(free) == 0 {
			continue
		}
		out = append(out, DayAvailability{
			Date:      FormatDate(d),
			Booked:    len(occupied),
			Remaining: limit - len(occupied),
			Slots:     free,
		})
	}
	return out, nil
}

// AvailableDates is ListAvailability reduced to the dates.
func (s *Service) AvailableDates(ctx context.Context, horizonDays int) ([]string, error) {
	days, err := s.ListAvailability(ctx, horizonDays)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(days))
	for i, d := range days {
		out[i] = d.Date
	}
	return out, nil
}

func (s *Service) horizon(n int) int {
	if n <= 0 {
		return s.opts.DefaultHorizonDays
	}
	if n > s.opts.MaxHorizonDays {
		return s.opts.MaxHorizonDays
	}
	return n
}
