package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"backtest-engine/src/models"
)

// -----------------------------------------------------------------------------

func testBar(interval string, start int64, span int64) models.MBar {
	return models.MBar{
		Symbol: "AAPL", Interval: interval,
		Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 1000,
		StartTime: start, EndTime: start + span,
	}
}

// -----------------------------------------------------------------------------

func TestSymbolLifecycle(t *testing.T) {
	sd := NewSessionData(time.Now())

	sym, err := sd.AddSymbol("AAPL", models.SourceConfig, false, sd.Clock().Now())
	require.NoError(t, err)
	require.False(t, sym.Meta.AutoProvisioned)
	require.True(t, sym.Meta.MeetsFullRequirements)

	// Re-creation is an error; upgrades never go through AddSymbol.
	_, err = sd.AddSymbol("AAPL", models.SourceConfig, false, sd.Clock().Now())
	require.Error(t, err)

	require.Equal(t, 1, sd.Count())
	require.NoError(t, sd.RemoveSymbol("AAPL"))
	require.Equal(t, 0, sd.Count())
	require.Error(t, sd.RemoveSymbol("AAPL"))
}

// -----------------------------------------------------------------------------

func TestUpgradeIsMonotonic(t *testing.T) {
	sd := NewSessionData(time.Now())

	sym, err := sd.AddSymbol("NVDA", models.SourceScanner, true, sd.Clock().Now())
	require.NoError(t, err)
	require.True(t, sym.Meta.AutoProvisioned)
	require.False(t, sym.Meta.MeetsFullRequirements)

	require.NoError(t, sd.Upgrade("NVDA", models.SourceConfig))
	require.True(t, sym.Meta.MeetsFullRequirements)
	require.True(t, sym.Meta.UpgradedFromAdhoc)
	require.Equal(t, models.SourceConfig, sym.Meta.AddedBy)

	require.Error(t, sd.Upgrade("GHOST", models.SourceConfig))
}

// -----------------------------------------------------------------------------

func TestAddIntervalSetsBase(t *testing.T) {
	sd := NewSessionData(time.Now())
	_, err := sd.AddSymbol("AAPL", models.SourceConfig, false, sd.Clock().Now())
	require.NoError(t, err)

	_, err = sd.AddInterval("AAPL", "1m", false, "")
	require.NoError(t, err)
	_, err = sd.AddInterval("AAPL", "5m", true, "1m")
	require.NoError(t, err)

	sym, _ := sd.Symbol("AAPL")
	require.Equal(t, "1m", sym.BaseInterval)
	require.True(t, sym.Intervals["5m"].Derived)
	require.Equal(t, "1m", sym.Intervals["5m"].SourceInterval)

	// Duplicate interval registration is an error.
	_, err = sd.AddInterval("AAPL", "1m", false, "")
	require.Error(t, err)
}

// -----------------------------------------------------------------------------

func TestRegisterIndicatorRejectsDuplicateKey(t *testing.T) {
	sd := NewSessionData(time.Now())
	_, err := sd.AddSymbol("AAPL", models.SourceConfig, false, sd.Clock().Now())
	require.NoError(t, err)

	cfg := models.MIndicatorConfig{Type: "sma", Interval: "1m", Period: 20}
	require.NoError(t, sd.RegisterIndicator("AAPL", &IndicatorInstance{Config: cfg, Lookback: 20}))
	require.Error(t, sd.RegisterIndicator("AAPL", &IndicatorInstance{Config: cfg, Lookback: 20}))
}

// -----------------------------------------------------------------------------

func TestResetDestroysEverything(t *testing.T) {
	sd := NewSessionData(time.Now())
	_, err := sd.AddSymbol("AAPL", models.SourceConfig, false, sd.Clock().Now())
	require.NoError(t, err)
	_, err = sd.AddSymbol("NVDA", models.SourceScanner, true, sd.Clock().Now())
	require.NoError(t, err)

	sd.Reset()
	require.Equal(t, 0, sd.Count())
	_, ok := sd.Symbol("AAPL")
	require.False(t, ok)
}

// -----------------------------------------------------------------------------

func TestQueueDraining(t *testing.T) {
	sym := &SymbolSessionData{Symbol: "AAPL"}
	sym.SetQueue([]models.MBar{
		testBar("1m", 0, 60),
		testBar("1m", 60, 60),
		testBar("1m", 120, 60),
	})

	require.Equal(t, 3, sym.QueueRemaining())
	next, ok := sym.NextQueuedTime()
	require.True(t, ok)
	require.Equal(t, int64(60), next)

	// Nothing closes at or before t=30.
	require.Nil(t, sym.DequeueUpTo(30))

	bars := sym.DequeueUpTo(120)
	require.Len(t, bars, 2)
	require.Equal(t, 1, sym.QueueRemaining())

	bars = sym.DequeueUpTo(10_000)
	require.Len(t, bars, 1)
	require.Equal(t, 0, sym.QueueRemaining())

	_, ok = sym.NextQueuedTime()
	require.False(t, ok)
}

// -----------------------------------------------------------------------------

func TestQueueReloadRestartsDrain(t *testing.T) {
	sym := &SymbolSessionData{Symbol: "AAPL"}
	sym.SetQueue([]models.MBar{testBar("1m", 0, 60)})
	require.Len(t, sym.DequeueUpTo(60), 1)

	// A mid-day provisioning reload replaces the queue wholesale.
	sym.SetQueue([]models.MBar{testBar("1m", 0, 60), testBar("1m", 60, 60)})
	require.Equal(t, 2, sym.QueueRemaining())
}

// -----------------------------------------------------------------------------

func TestBarIntervalData(t *testing.T) {
	rec := &BarIntervalData{Interval: "1m"}

	_, ok := rec.LastBar()
	require.False(t, ok)
	require.Equal(t, int64(0), rec.LastEndTime())

	rec.AppendBars([]models.MBar{
		testBar("1m", 0, 60),
		testBar("1m", 60, 60),
		testBar("1m", 120, 60),
	})
	require.Equal(t, 3, rec.BarCount())
	require.Equal(t, int64(180), rec.LastEndTime())

	last, ok := rec.LastBar()
	require.True(t, ok)
	require.Equal(t, int64(120), last.StartTime)

	require.Len(t, rec.BarsClosedAfter(0), 3)
	require.Len(t, rec.BarsClosedAfter(60), 2)
	require.Len(t, rec.BarsClosedAfter(180), 0)
}

// -----------------------------------------------------------------------------

func TestSnapshotAccessorsAreCopies(t *testing.T) {
	sd := NewSessionData(time.Now())
	_, err := sd.AddSymbol("AAPL", models.SourceConfig, false, sd.Clock().Now())
	require.NoError(t, err)
	_, err = sd.AddInterval("AAPL", "1m", false, "")
	require.NoError(t, err)

	recs := sd.IntervalRecords("AAPL")
	require.Len(t, recs, 1)

	// Mutating the snapshot map does not touch session state.
	delete(recs, "1m")
	require.Len(t, sd.IntervalRecords("AAPL"), 1)

	require.Nil(t, sd.IntervalRecords("GHOST"))
	_, ok := sd.Decision("GHOST")
	require.False(t, ok)
}

// -----------------------------------------------------------------------------

func TestSymbolStatuses(t *testing.T) {
	sd := NewSessionData(time.Now())
	_, err := sd.AddSymbol("AAPL", models.SourceConfig, false, sd.Clock().Now())
	require.NoError(t, err)
	rec, err := sd.AddInterval("AAPL", "1m", false, "")
	require.NoError(t, err)
	rec.AppendBar(testBar("1m", 0, 60))

	cfg := models.MIndicatorConfig{Type: "sma", Interval: "1m", Period: 20}
	require.NoError(t, sd.RegisterIndicator("AAPL", &IndicatorInstance{Config: cfg, Lookback: 20}))

	statuses := sd.SymbolStatuses()
	st, ok := statuses["AAPL"]
	require.True(t, ok)
	require.Equal(t, "1m", st.BaseInterval)
	require.Equal(t, 1, st.Intervals["1m"].Bars)
	require.Equal(t, []string{cfg.Key()}, st.Indicators)
}
