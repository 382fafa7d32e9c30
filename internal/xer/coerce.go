package xer

import (
	"strconv"
	"strings"
	"time"
)

// Date layouts accepted by schedule exports, tried in order.
var dateLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC3339,
}

// ParseOptionalFloat parses a numeric field, returning nil when the
// value is blank or not a number. Coercion never fails hard; a bad
// value simply reads as absent.
func ParseOptionalFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

// ParseOptionalInt parses an integer field, returning nil when the
// value is blank or not an integer.
func ParseOptionalInt(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

// ParseOptionalDate parses a date field against the known layouts,
// returning nil when the value is blank or matches none of them.
func ParseOptionalDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
