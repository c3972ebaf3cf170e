package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Duration units beyond what time.ParseDuration understands.
const (
	day  = 24 * time.Hour
	week = 7 * day
)

// infiniteRetention lists the spellings that mean "never expire".
var infiniteRetention = map[string]bool{
	"":         true,
	"0":        true,
	"inf":      true,
	"infinite": true,
	"never":    true,
}

// ParseRetention parses a bucket retention. Zero means data never expires.
func ParseRetention(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if infiniteRetention[strings.ToLower(s)] {
		return 0, nil
	}

	d, err := ParseDuration(s)
	if err != nil {
		return 0, err
	}

	if d < 0 {
		return 0, fmt.Errorf("retention must not be negative, got %q", s)
	}

	if d%time.Second != 0 {
		return 0, fmt.Errorf("retention must be whole seconds, got %q", s)
	}

	return d, nil
}

// ParseDuration accepts anything time.ParseDuration does, plus a single
// integer followed by "d" (days) or "w" (weeks), such as "30d" or "2w".
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)

	unit := time.Duration(0)

	switch {
	case strings.HasSuffix(s, "d"):
		unit = day
	case strings.HasSuffix(s, "w"):
		unit = week
	}

	if unit != 0 {
		n, err := strconv.ParseInt(strings.TrimSpace(s[:len(s)-1]), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}

		if limit := math.MaxInt64 / int64(unit); n > limit || n < -limit {
			return 0, fmt.Errorf("duration %q too large", s)
		}

		return time.Duration(n) * unit, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}

	return d, nil
}

// FormatRetention renders a retention the way an operator would write it.
func FormatRetention(d time.Duration) string {
	switch {
	case d == 0:
		return "infinite"
	case d%week == 0:
		return fmt.Sprintf("%dw", d/week)
	case d%day == 0:
		return fmt.Sprintf("%dd", d/day)
	default:
		return d.String()
	}
}
