package intervals

import (
	"testing"

	"github.com/stretchr/testify/require"

	"backtest-engine/src/models"
)

// -----------------------------------------------------------------------------

func availAll(symbol string) models.MAvailabilityInfo {
	return models.MAvailabilityInfo{Symbol: symbol, HasSubMinute: true, HasMinute: true, HasDaily: true}
}

// -----------------------------------------------------------------------------

func TestResolveStreamsSmallestBase(t *testing.T) {
	avail := availAll("AAPL")

	decision, err := Resolve(avail, []string{"30s", "1m", "1h", "1d"})
	require.NoError(t, err)

	require.Equal(t, "30s", decision.StreamInterval)
	require.Equal(t, "30s", decision.QuoteSource)

	// Everything coarser than the streamed base is generated locally, even
	// when it is natively available.
	sources := map[string]string{}
	for _, g := range decision.Generated {
		sources[g.Interval] = g.Source
	}
	require.Equal(t, map[string]string{
		"1m": "30s",
		"1h": "1m",
		"1d": "1m",
	}, sources)
}

// -----------------------------------------------------------------------------

func TestResolveMinuteOnlySymbol(t *testing.T) {
	avail := models.MAvailabilityInfo{Symbol: "MSFT", HasMinute: true}

	decision, err := Resolve(avail, []string{"1m", "5m", "1d"})
	require.NoError(t, err)

	require.Equal(t, "1m", decision.StreamInterval)
	require.Len(t, decision.Generated, 2)
	for _, g := range decision.Generated {
		require.Equal(t, "1m", g.Source)
	}
}

// -----------------------------------------------------------------------------

func TestResolveDailyOnlySymbol(t *testing.T) {
	avail := models.MAvailabilityInfo{Symbol: "FUND", HasDaily: true}

	decision, err := Resolve(avail, []string{"1d"})
	require.NoError(t, err)
	require.Equal(t, "1d", decision.StreamInterval)
	require.Empty(t, decision.Generated)

	// A minute-class target is out of reach from a daily base.
	_, err = Resolve(avail, []string{"1d", "5m"})
	require.Error(t, err)
}

// -----------------------------------------------------------------------------

func TestResolveSubMinuteRequiresSubMinuteBase(t *testing.T) {
	avail := models.MAvailabilityInfo{Symbol: "MSFT", HasMinute: true, HasDaily: true}

	_, err := Resolve(avail, []string{"30s"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "sub-minute")
}

// -----------------------------------------------------------------------------

func TestResolveNoBaseData(t *testing.T) {
	avail := models.MAvailabilityInfo{Symbol: "GHOST"}

	_, err := Resolve(avail, []string{"1m"})
	require.ErrorIs(t, err, ErrNoBaseData)
}

// -----------------------------------------------------------------------------

func TestResolveDeduplicatesRequests(t *testing.T) {
	decision, err := Resolve(availAll("AAPL"), []string{"1h", "1h", "30s", "1h"})
	require.NoError(t, err)
	require.Len(t, decision.Generated, 1)
	require.Equal(t, "1h", decision.Generated[0].Interval)
}

// -----------------------------------------------------------------------------

func TestGenerationSourceFallbackChains(t *testing.T) {
	t.Run("day class falls back minute then sub-minute", func(t *testing.T) {
		src, err := GenerationSource(models.MAvailabilityInfo{Symbol: "X", HasMinute: true}, "1d")
		require.NoError(t, err)
		require.Equal(t, "1m", src)

		src, err = GenerationSource(models.MAvailabilityInfo{Symbol: "X", HasSubMinute: true}, "1d")
		require.NoError(t, err)
		require.Equal(t, "30s", src)
	})

	t.Run("native daily preferred for non-daily targets", func(t *testing.T) {
		src, err := GenerationSource(models.MAvailabilityInfo{Symbol: "X", HasDaily: true}, "5d")
		require.NoError(t, err)
		require.Equal(t, "1d", src)
	})

	t.Run("minute class prefers native minute", func(t *testing.T) {
		src, err := GenerationSource(availAll("X"), "5m")
		require.NoError(t, err)
		require.Equal(t, "1m", src)
	})
}

// -----------------------------------------------------------------------------

func TestDerivable(t *testing.T) {
	avail := models.MAvailabilityInfo{Symbol: "MSFT", HasMinute: true}

	ok, _ := Derivable(avail, "1m") // streamed directly
	require.True(t, ok)

	ok, _ = Derivable(avail, "1h")
	require.True(t, ok)

	ok, reason := Derivable(avail, "30s")
	require.False(t, ok)
	require.NotEmpty(t, reason)

	ok, reason = Derivable(models.MAvailabilityInfo{Symbol: "GHOST"}, "1m")
	require.False(t, ok)
	require.Contains(t, reason, "no base granularity")
}

// -----------------------------------------------------------------------------

func TestSeconds(t *testing.T) {
	cases := map[string]int64{
		"30s": 30,
		"1m":  60,
		"5m":  300,
		"1h":  3600,
		"1d":  86400,
	}
	for iv, want := range cases {
		got, err := Seconds(iv)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	for _, bad := range []string{"", "m", "0m", "-5m", "10x", "1"} {
		_, err := Seconds(bad)
		require.Error(t, err, "interval %q", bad)
	}
}

// -----------------------------------------------------------------------------

func TestSortAscendingAndDedupe(t *testing.T) {
	list := []string{"1d", "30s", "1h", "1m"}
	SortAscending(list)
	require.Equal(t, []string{"30s", "1m", "1h", "1d"}, list)

	require.Equal(t, []string{"1m", "5m", "1h"}, Dedupe([]string{"1m", "5m", "1m", "1h", "5m"}))
}
