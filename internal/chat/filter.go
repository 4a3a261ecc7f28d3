package chat

import (
	"fmt"
	"strings"
	"time"
)

// Filter selects messages by date range and/or sender. All criteria are
// optional and combined with AND logic; the zero value passes everything.
//
// After is inclusive, Before is exclusive. Messages without a timestamp
// fail any date bound but pass a filter that has none. Sender matching is
// case-insensitive.
type Filter struct {
	After  time.Time
	Before time.Time
	Sender string
}

// ParseDate parses a YYYY-MM-DD date for use as a filter bound.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// Active reports whether any criterion is set.
func (f Filter) Active() bool {
	return !f.After.IsZero() || !f.Before.IsZero() || f.Sender != ""
}

func (f Filter) hasDateBound() bool {
	return !f.After.IsZero() || !f.Before.IsZero()
}

// Matches reports whether a single message passes the filter.
func (f Filter) Matches(msg Message) bool {
	if f.Sender != "" && !strings.EqualFold(msg.Sender, f.Sender) {
		return false
	}
	if f.hasDateBound() {
		if !msg.HasTime() {
			return false
		}
		if !f.After.IsZero() && msg.Time.Before(f.After) {
			return false
		}
		if !f.Before.IsZero() && !msg.Time.Before(f.Before) {
			return false
		}
	}
	return true
}

// Apply filters a message slice, preserving order. An inactive filter
// returns the input unchanged.
func (f Filter) Apply(messages []Message) []Message {
	if !f.Active() {
		return messages
	}
	filtered := make([]Message, 0, len(messages))
	for _, msg := range messages {
		if f.Matches(msg) {
			filtered = append(filtered, msg)
		}
	}
	return filtered
}
