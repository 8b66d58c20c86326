package utils

import (
	"fmt"
	"time"
)

var fallbackLayouts = []string{"2006-01-02", "2006-01-02 15:04", "2006-01-02 15:04:05", "2006-01-02T15:04"}

// ParseFlexibleTime accepts RFC3339 or one of the plain date layouts forms send.
func ParseFlexibleTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q, use RFC3339 or YYYY-MM-DD", s)
}

// ParseOptionalTime returns nil for a nil or empty input.
func ParseOptionalTime(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := ParseFlexibleTime(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
