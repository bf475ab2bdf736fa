package timetable

import (
	"fmt"
	"strings"
	"time"
)

// Interval is an inclusive time-of-day range at minute granularity.
type Interval struct {
	Start int // minutes since midnight
	End   int
}

// ParseInterval parses "HH:MM-HH:MM". Surrounding spaces are allowed.
func ParseInterval(s string) (Interval, error) {
	start, end, ok := strings.Cut(s, "-")
	if !ok {
		return Interval{}, fmt.Errorf("%w: %q is not HH:MM-HH:MM", ErrMalformedEntry, s)
	}
	from, err := parseClock(start)
	if err != nil {
		return Interval{}, err
	}
	to, err := parseClock(end)
	if err != nil {
		return Interval{}, err
	}
	if from > to {
		return Interval{}, fmt.Errorf("%w: %q starts after it ends", ErrMalformedEntry, s)
	}
	return Interval{Start: from, End: to}, nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: bad time %q", ErrMalformedEntry, strings.TrimSpace(s))
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Contains reports whether minute falls within the interval, both ends included.
func (iv Interval) Contains(minute int) bool {
	return iv.Start <= minute && minute <= iv.End
}

func (iv Interval) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", iv.Start/60, iv.Start%60, iv.End/60, iv.End%60)
}

// MinuteOfDay truncates t to its HH:MM wall-clock minute.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
