package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrStaleDate = errors.New("request date outside accepted window")

const dateOnlyLayout = "2006-01-02"

// DateWindow is an optional freshness check on the signed date. VerifyRequest
// never applies it; callers that want replay protection do.
type DateWindow struct {
	// MaxSkew of zero disables the check.
	MaxSkew time.Duration
	Now     func() time.Time
}

// Check accepts RFC 3339 timestamps within MaxSkew of now, and calendar dates
// whose day overlaps [now-MaxSkew, now+MaxSkew].
func (w DateWindow) Check(date string) error {
	if w.MaxSkew <= 0 {
		return nil
	}
	now := time.Now()
	if w.Now != nil {
		now = w.Now()
	}
	date = strings.TrimSpace(date)

	if t, err := time.Parse(time.RFC3339, date); err == nil {
		if d := now.Sub(t); d > w.MaxSkew || d < -w.MaxSkew {
			return fmt.Errorf("%w: %s is %s from now", ErrStaleDate, date, d.Round(time.Second))
		}
		return nil
	}

	day, err := time.Parse(dateOnlyLayout, date)
	if err != nil {
		return fmt.Errorf("%w: unrecognized date %q", ErrStaleDate, date)
	}
	start := day.Add(-w.MaxSkew)
	end := day.Add(24*time.Hour + w.MaxSkew)
	if now.Before(start) || !now.Before(end) {
		return fmt.Errorf("%w: %s", ErrStaleDate, date)
	}
	return nil
}
