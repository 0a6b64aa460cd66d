package ui

import (
	"fmt"
	"time"
)

var durationUnits = []struct {
	suffix string
	size   time.Duration
}{
	{"d", 24 * time.Hour},
	{"h", time.Hour},
	{"m", time.Minute},
	{"s", time.Second},
}

// FormatTimeAgo describes then relative to now, e.g. "2m ago" or "in 1h5m".
// The zero time renders as "-".
func FormatTimeAgo(then, now time.Time) string {
	if then.IsZero() {
		return "-"
	}
	delta := now.Sub(then)
	switch {
	case delta < 0 && -delta >= time.Second:
		return "in " + FormatDurationShort(-delta)
	case delta < time.Second:
		return "just now"
	default:
		return FormatDurationShort(delta) + " ago"
	}
}

// FormatDurationShort renders a duration with its two largest units, e.g.
// "45s", "2m10s", "3h5m" or "2d". Negative durations render as "0s".
func FormatDurationShort(duration time.Duration) string {
	duration = duration.Truncate(time.Second)
	if duration <= 0 {
		return "0s"
	}
	for i, unit := range durationUnits {
		if duration < unit.size {
			continue
		}
		out := fmt.Sprintf("%d%s", duration/unit.size, unit.suffix)
		if i+1 < len(durationUnits) {
			next := durationUnits[i+1]
			if rest := (duration % unit.size) / next.size; rest > 0 {
				out += fmt.Sprintf("%d%s", rest, next.suffix)
			}
		}
		return out
	}
	return "0s"
}
