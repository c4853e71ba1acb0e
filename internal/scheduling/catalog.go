package scheduling

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DefaultSlotLabels are the bookable clock times of a clinic day.
var DefaultSlotLabels = []string{"07:00", "08:00", "09:00", "10:00", "11:00", "13:00", "14:00"}

// DateLayout is the wire format of a calendar date.
const DateLayout = "2006-01-02"

const slotLayout = "15:04"

// Slot is one bookable time within a day. Ordinal is its position in the
// catalog and is used to order slots within a date.
type Slot struct {
	Label   string `json:"label"`
	Ordinal int    `json:"ordinal"`

	offset time.Duration
}

// Catalog is the fixed, ordered set of slots offered every day. It is built
// once from configuration and never changes afterwards.
type Catalog struct {
	slots []Slot
	index map[string]int
}

// NewCatalog validates the given HH:MM labels and returns a catalog ordered
// by time of day. Duplicate or malformed labels are rejected.
func NewCatalog(labels []string) (*Catalog, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("slot catalog: at least one slot is required")
	}
	slots := make([]Slot, 0, len(labels))
	seen := make(map[string]struct{}, len(labels))
	for _, raw := range labels {
		label := strings.TrimSpace(raw)
		t, err := time.Parse(slotLayout, label)
		if err != nil {
			return nil, fmt.Errorf("slot catalog: invalid slot %q: %w", raw, err)
		}
		// normalise "9:00" to "09:00"
		label = t.Format(slotLayout)
		if _, dup := seen[label]; dup {
			return nil, fmt.Errorf("slot catalog: duplicate slot %q", label)
		}
		seen[label] = struct{}{}
		slots = append(slots, Slot{
			Label:  label,
			offset: time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute,
		})
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].offset < slots[j].offset })

	c := &Catalog{slots: slots, index: make(map[string]int, len(slots))}
	for i := range c.slots {
		c.slots[i].Ordinal = i
		c.index[c.slots[i].Label] = i
	}
	return c, nil
}

// MustCatalog is NewCatalog for static label sets known to be valid.
func MustCatalog(labels []string) *Catalog {
	c, err := NewCatalog(labels)
	if err != nil {
		panic(err)
	}
	return c
}

// All returns the slots in day order. The returned slice is a copy.
func (c *Catalog) All() []Slot {
	out := make([]Slot, len(c.slots))
	copy(out, c.slots)
	return out
}

// Len is the number of slots per day.
func (c *Catalog) Len() int { return len(c.slots) }

// IsValid reports whether label names a slot of the catalog. Labels are
// matched exactly; "9:00" is not "09:00".
func (c *Catalog) IsValid(label string) bool {
	_, ok := c.index[label]
	return ok
}

// Lookup returns the slot with the given label.
func (c *Catalog) Lookup(label string) (Slot, bool) {
	i, ok := c.index[label]
	if !ok {
		return Slot{}, false
	}
	return c.slots[i], true
}

// Labels returns the slot labels in day order.
func (c *Catalog) Labels() []string {
	out := make([]string, len(c.slots))
	for i, s := range c.slots {
		out[i] = s.Label
	}
	return out
}

// ScheduledAt resolves a date and slot into a single UTC instant.
func (c *Catalog) ScheduledAt(date time.Time, slot Slot) time.Time {
	return Day(date).Add(slot.offset)
}

// ParseDate parses a YYYY-MM-DD calendar date into UTC midnight.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDate renders a date in DateLayout.
func FormatDate(t time.Time) string {
	return Day(t).Format(DateLayout)
}
