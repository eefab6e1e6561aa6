package intervals

import (
	"errors"
	"fmt"

	"backtest-engine/src/models"
)

// -----------------------------------------------------------------------------
// Interval Resolver: chooses the streamed base granularity for a symbol and
// the generation source for every requested interval.
//
// Rules:
//   1. Stream-smallest: the smallest available base granularity is the one
//      consumed from the feed; everything coarser is generated locally.
//   2. Fallback chains: sub-minute targets generate only from a sub-minute
//      base; minute-class targets prefer a native minute base, falling back
//      to sub-minute; day-class targets prefer native daily, then minute,
//      then sub-minute.
//   3. Quote source: most granular available base (sub-minute > minute > day).
// -----------------------------------------------------------------------------

// ErrNoBaseData: no raw granularity exists for the symbol at all. Hard
// per-symbol error, nothing can be streamed or generated.
var ErrNoBaseData = errors.New("no base granularity available")

// -----------------------------------------------------------------------------

// Resolve computes the stream decision for one symbol given its raw data
// availability and the full set of requested intervals.
func Resolve(avail models.MAvailabilityInfo, requested []string) (models.MStreamDecision, error) {
	if !avail.HasAnyBase() {
		return models.MStreamDecision{}, fmt.Errorf("%s: %w", avail.Symbol, ErrNoBaseData)
	}

	decision := models.MStreamDecision{
		Symbol:         avail.Symbol,
		StreamInterval: smallestBase(avail),
		QuoteSource:    smallestBase(avail),
	}

	wanted := Dedupe(requested)
	SortAscending(wanted)

	for _, iv := range wanted {
		if iv == decision.StreamInterval {
			continue // consumed directly from the feed
		}

		source, err := GenerationSource(avail, iv)
		if err != nil {
			return models.MStreamDecision{}, err
		}

		decision.Generated = append(decision.Generated, models.MGeneratedInterval{
			Interval: iv,
			Source:   source,
		})
	}

	return decision, nil
}

// -----------------------------------------------------------------------------

// GenerationSource returns the base interval a derived interval aggregates
// from, applying the per-class fallback chain.
func GenerationSource(avail models.MAvailabilityInfo, interval string) (string, error) {
	class, err := ClassOf(interval)
	if err != nil {
		return "", err
	}

	// An interval never sources itself: a natively available granularity that
	// is not the streamed one is generated from the next finer base.
	switch class {
	case ClassSubMinute:
		// Sub-minute targets can only come from sub-minute data.
		if avail.HasSubMinute && interval != BaseSubMinute {
			return BaseSubMinute, nil
		}
		return "", fmt.Errorf("%s: interval %s requires sub-minute base data", avail.Symbol, interval)

	case ClassMinute:
		if avail.HasMinute && interval != BaseMinute {
			return BaseMinute, nil
		}
		if avail.HasSubMinute {
			return BaseSubMinute, nil
		}
		return "", fmt.Errorf("%s: interval %s requires minute or sub-minute base data", avail.Symbol, interval)

	default: // ClassDay
		if avail.HasDaily && interval != BaseDaily {
			return BaseDaily, nil
		}
		if avail.HasMinute {
			return BaseMinute, nil
		}
		if avail.HasSubMinute {
			return BaseSubMinute, nil
		}
		return "", fmt.Errorf("%s: %w", avail.Symbol, ErrNoBaseData)
	}
}

// -----------------------------------------------------------------------------

// Derivable reports whether one requested interval could be produced at all,
// with a human-readable reason when it cannot. Used by the validate phase.
func Derivable(avail models.MAvailabilityInfo, interval string) (bool, string) {
	if !avail.HasAnyBase() {
		return false, fmt.Sprintf("%s: %v", avail.Symbol, ErrNoBaseData)
	}
	if interval == smallestBase(avail) {
		return true, "" // consumed directly from the feed
	}
	if _, err := GenerationSource(avail, interval); err != nil {
		return false, err.Error()
	}
	return true, ""
}

// -----------------------------------------------------------------------------

// smallestBase picks the most granular available raw granularity.
func smallestBase(avail models.MAvailabilityInfo) string {
	switch {
	case avail.HasSubMinute:
		return BaseSubMinute
	case avail.HasMinute:
		return BaseMinute
	default:
		return BaseDaily
	}
}
