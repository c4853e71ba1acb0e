package handler

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

var errInvalidAmount = errors.New("amount must be a positive number with at most two decimals")

// parseCents converts a JSON number such as 12 or 12.5 to cents. Exponents
// and more than two decimals are rejected.
func parseCents(n json.Number) (int64, error) {
	s := strings.TrimSpace(n.String())
	if s == "" || strings.ContainsAny(s, "eE+-") {
		return 0, errInvalidAmount
	}
	whole, frac, _ := strings.Cut(s, ".")
	if len(frac) > 2 || whole == "" {
		return 0, errInvalidAmount
	}
	frac += strings.Repeat("0", 2-len(frac))
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || w > (1<<62)/100 {
		return 0, errInvalidAmount
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, errInvalidAmount
	}
	cents := w*100 + f
	if cents <= 0 {
		return 0, errInvalidAmount
	}
	return cents, nil
}
