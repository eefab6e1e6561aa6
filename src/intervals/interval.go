package intervals

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// -----------------------------------------------------------------------------
// Interval parsing and classification.
// Intervals are strings like "30s", "1m", "5m", "1h", "1d".
// -----------------------------------------------------------------------------

// Canonical raw base granularities as stored in the historical store.
const (
	BaseSubMinute = "30s"
	BaseMinute    = "1m"
	BaseDaily     = "1d"
)

// Class groups intervals by the fallback rules that apply to them.
type Class int

const (
	ClassSubMinute Class = iota // < 1 minute
	ClassMinute                 // >= 1 minute, < 1 day
	ClassDay                    // >= 1 day
)

func (c Class) String() string {
	switch c {
	case ClassSubMinute:
		return "sub-minute"
	case ClassMinute:
		return "minute"
	case ClassDay:
		return "day"
	}
	return "unknown"
}

// -----------------------------------------------------------------------------

// Seconds parses an interval string into its span in seconds.
func Seconds(interval string) (int64, error) {
	if len(interval) < 2 {
		return 0, fmt.Errorf("invalid interval %q", interval)
	}

	unit := interval[len(interval)-1:]
	n, err := strconv.ParseInt(strings.TrimSuffix(interval, unit), 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid interval %q", interval)
	}

	switch unit {
	case "s":
		return n, nil
	case "m":
		return n * 60, nil
	case "h":
		return n * 3600, nil
	case "d":
		return n * 86400, nil
	}
	return 0, fmt.Errorf("invalid interval unit %q in %q", unit, interval)
}

// -----------------------------------------------------------------------------

// ClassOf returns the fallback class of an interval.
func ClassOf(interval string) (Class, error) {
	secs, err := Seconds(interval)
	if err != nil {
		return 0, err
	}

	switch {
	case secs < 60:
		return ClassSubMinute, nil
	case secs < 86400:
		return ClassMinute, nil
	default:
		return ClassDay, nil
	}
}

// -----------------------------------------------------------------------------

// SortAscending orders intervals smallest-span first, so derived intervals
// are generated after the intervals they aggregate from. Unparseable entries
// sort last.
func SortAscending(list []string) {
	sort.SliceStable(list, func(i, j int) bool {
		a, errA := Seconds(list[i])
		b, errB := Seconds(list[j])
		if errA != nil {
			return false
		}
		if errB != nil {
			return true
		}
		return a < b
	})
}

// -----------------------------------------------------------------------------

// Dedupe returns list without duplicates, preserving first occurrence order.
func Dedupe(list []string) []string {
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, iv := range list {
		if _, ok := seen[iv]; ok {
			continue
		}
		seen[iv] = struct{}{}
		out = append(out, iv)
	}
	return out
}
