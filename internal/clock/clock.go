// Package clock supplies event timestamps and calendar-day boundaries.
package clock

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// DateLayout is the only accepted calendar date format.
const DateLayout = "2006-01-02"

// ErrInvalidDate is returned for strings that are not a YYYY-MM-DD calendar date.
var ErrInvalidDate = errors.New("invalid date")

// Clock is the source of "now" for stored timestamps.
type Clock interface {
	Now() time.Time
}

// Func adapts a function to Clock.
type Func func() time.Time

func (f Func) Now() time.Time { return f() }

// Monotonic never returns an instant earlier than one it already returned,
// at one-second resolution, so stock events keep a non-decreasing created_at
// even when the wall clock steps back.
type Monotonic struct {
	mu   sync.Mutex
	src  Clock
	last time.Time
}

func NewMonotonic(src Clock) *Monotonic {
	if src == nil {
		src = Func(time.Now)
	}
	return &Monotonic{src: src}
}

func (m *Monotonic) Now() time.Time {
	now := m.src.Now().UTC().Truncate(time.Second)

	m.mu.Lock()
	defer m.mu.Unlock()
	if now.Before(m.last) {
		return m.last
	}
	m.last = now
	return now
}

// LoadLocation resolves a timezone name. "" and "Local" both mean the host zone.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

// DayRange parses date as a calendar day in loc and returns the inclusive
// [start, end] instants of that day.
func DayRange(date string, loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	day, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	start := day
	end := day.AddDate(0, 0, 1).Add(-time.Nanosecond)
	return start, end, nil
}
