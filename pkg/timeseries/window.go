package timeseries

import (
	"fmt"
	"strings"
	"time"
)

// Window is a caller-selected relative time window.
type Window string

const (
	Window1m        Window = "1m"
	Window5m        Window = "5m"
	Window15m       Window = "15m"
	Window30m       Window = "30m"
	Window1h        Window = "1h"
	Window6h        Window = "6h"
	Window12h       Window = "12h"
	Window24h       Window = "24h"
	Window7d        Window = "7d"
	Window30d       Window = "30d"
	Window3mo       Window = "3m"
	Window1y        Window = "1y"
	WindowUnbounded Window = "unbounded"
)

// DefaultWindow is used when the caller omits the window or sends an unknown token.
const DefaultWindow = WindowUnbounded

// allWindows is ordered from the narrowest to the widest window.
var allWindows = []Window{
	Window1m, Window5m, Window15m, Window30m,
	Window1h, Window6h, Window12h, Window24h,
	Window7d, Window30d, Window3mo, Window1y,
	WindowUnbounded,
}

// AllWindows returns every supported window, narrowest first.
func AllWindows() []Window {
	out := make([]Window, len(allWindows))
	copy(out, allWindows)
	return out
}

// ParseWindow maps a raw token to a Window. An empty token yields DefaultWindow with no error;
// an unknown token yields DefaultWindow together with ErrInvalidWindowToken so callers can log it
// and carry on.
func ParseWindow(raw string) (Window, error) {
	token := strings.ToLower(strings.TrimSpace(raw))
	if token == "" || token == "all" {
		return DefaultWindow, nil
	}
	for _, w := range allWindows {
		if string(w) == token {
			return w, nil
		}
	}
	return DefaultWindow, fmt.Errorf("%w: %q", ErrInvalidWindowToken, raw)
}

func (w Window) String() string {
	return string(w)
}

// Bounded reports whether the window has a fixed duration.
func (w Window) Bounded() bool {
	_, ok := windowStarts[w]
	return ok
}

var windowStarts = map[Window]func(now time.Time) time.Time{
	Window1m:  func(now time.Time) time.Time { return now.Add(-time.Minute) },
	Window5m:  func(now time.Time) time.Time { return now.Add(-5 * time.Minute) },
	Window15m: func(now time.Time) time.Time { return now.Add(-15 * time.Minute) },
	Window30m: func(now time.Time) time.Time { return now.Add(-30 * time.Minute) },
	Window1h:  func(now time.Time) time.Time { return now.Add(-time.Hour) },
	Window6h:  func(now time.Time) time.Time { return now.Add(-6 * time.Hour) },
	Window12h: func(now time.Time) time.Time { return now.Add(-12 * time.Hour) },
	Window24h: func(now time.Time) time.Time { return now.Add(-24 * time.Hour) },
	Window7d:  func(now time.Time) time.Time { return now.AddDate(0, 0, -7) },
	Window30d: func(now time.Time) time.Time { return now.AddDate(0, 0, -30) },
	Window3mo: func(now time.Time) time.Time { return subMonths(now, 3) },
	Window1y:  func(now time.Time) time.Time { return subMonths(now, 12) },
}

// Start returns now minus the window duration using calendar arithmetic for day, month
// and year windows. Unbounded windows have no fixed start and return false.
func (w Window) Start(now time.Time) (time.Time, bool) {
	fn, ok := windowStarts[w]
	if !ok {
		return time.Time{}, false
	}
	return fn(now.UTC()), true
}

// subMonths moves back n calendar months, clamping the day to the last day of the target month.
func subMonths(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	target := time.Date(year, month-time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	if last := daysIn(target.Year(), target.Month()); day > last {
		day = last
	}
	return time.Date(target.Year(), target.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
