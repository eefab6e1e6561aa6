package coordinator

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"backtest-engine/src/helpers"
	"backtest-engine/src/indicators"
	"backtest-engine/src/logger"
	"backtest-engine/src/models"
	"backtest-engine/src/provision"
	"backtest-engine/src/session"
	"backtest-engine/src/utils"
)

// -----------------------------------------------------------------------------
// fakeStore serves one synthetic 1m bar per minute for every known symbol.
// -----------------------------------------------------------------------------

type fakeStore struct {
	known map[string]bool
}

func (f *fakeStore) Initialize() error                     { return nil }
func (f *fakeStore) Close() error                          { return nil }
func (f *fakeStore) SaveBarsBulk(bars []models.MBar) error { return nil }

func (f *fakeStore) Availability(symbol string) (models.MAvailabilityInfo, error) {
	if !f.known[symbol] {
		return models.MAvailabilityInfo{}, fmt.Errorf("symbol %s unknown to store", symbol)
	}
	return models.MAvailabilityInfo{Symbol: symbol, HasMinute: true, HasQuotes: true}, nil
}

func (f *fakeStore) EarliestBar(symbol, interval string) (time.Time, error) {
	return time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), nil
}

func (f *fakeStore) LoadBars(symbol, interval string, from, to time.Time) ([]models.MBar, error) {
	var bars []models.MBar
	for ts := from.Unix(); ts < to.Unix(); ts += 60 {
		bars = append(bars, models.MBar{
			Symbol: symbol, Interval: interval,
			Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 1000,
			StartTime: ts, EndTime: ts + 60,
		})
	}
	return bars, nil
}

// -----------------------------------------------------------------------------

func testConfig() *models.MConfig {
	return &models.MConfig{
		Name: "test", Host: "127.0.0.1", Port: 8080,
		Session: models.MSessionConfig{
			Mode:            "data",
			StartDate:       "2024-03-11", // Monday
			EndDate:         "2024-03-12",
			TickSeconds:     60,
			SpeedMultiplier: 1.0,
			ClockTimeoutMs:  500,
			MaxOverruns:     10,
			HistoricalDays:  1,
			Symbols: []models.MSymbolConfig{
				{
					Symbol:    "AAPL",
					Intervals: []string{"1m", "5m"},
					Indicators: []models.MIndicatorConfig{
						{Type: "sma", Interval: "5m", Period: 20},
					},
				},
			},
		},
	}
}

func newTestCoordinator(t *testing.T, cfg *models.MConfig, store *fakeStore) (*Coordinator, *session.SessionData) {
	t.Helper()

	log := logger.NewLogger(nil, "test")
	sess := session.NewSessionData(time.Now())
	eng := provision.NewEngine(sess, store, indicators.NewRegistry(), cfg.Session.HistoricalDays, log)

	var symbols []string
	for _, sc := range cfg.Session.Symbols {
		symbols = append(symbols, sc.Symbol)
	}
	sched := utils.NewMarketScheduler(symbols, log)

	return NewCoordinator(cfg, sess, eng, store, sched, log), sess
}

// -----------------------------------------------------------------------------

func TestRunDataDrivenSession(t *testing.T) {
	cfg := testConfig()
	cfg.Session.Scans = []models.MScanConfig{
		{
			At:        "10:00",
			Symbols:   []string{"NVDA"},
			Indicator: models.MIndicatorConfig{Type: "rsi", Interval: "1m", Period: 14},
		},
	}
	coord, sess := newTestCoordinator(t, cfg, &fakeStore{known: map[string]bool{"AAPL": true, "NVDA": true}})

	require.Equal(t, StateStopped, coord.State())
	require.NoError(t, coord.Run())
	require.Equal(t, StateStopped, coord.State())

	// Both trading days streamed, labeled with the exchange-local dates. A
	// day cursor resolved in the wrong timezone drops Monday and shifts
	// every label forward.
	history := coord.History()
	require.Len(t, history, 2)
	require.Equal(t, "2024-03-11", history[0].Day)
	require.Equal(t, "2024-03-12", history[1].Day)
	for _, day := range history {
		require.Greater(t, day.Ticks, int64(0))
		require.Greater(t, day.BarsStreamed, int64(0))
		require.Greater(t, day.BarsGenerated, int64(0))
		require.Greater(t, day.QuotesSynthesized, int64(0))
		require.Equal(t, int64(0), day.Overruns) // no overruns in data-driven mode
		require.Equal(t, 1, day.SymbolsProvisioned)
	}

	// The final day's data is retained for export.
	sym, ok := sess.Symbol("AAPL")
	require.True(t, ok)
	require.Equal(t, 0, sym.QueueRemaining())
	require.Greater(t, sym.Intervals["1m"].BarCount(), 0)
	require.Greater(t, sym.Intervals["5m"].BarCount(), 0)

	// Quotes were synthesized from the streamed base.
	require.True(t, sym.LastQuote.Synthesized)
	require.Equal(t, "1m", sym.LastQuote.SourceInterval)

	// The indicator warmed up during the day.
	for _, inst := range sym.Indicators {
		require.True(t, inst.Warm)
	}

	// The 10:00 scan added NVDA adhoc; Phase 1 teardown removed day one's
	// instance, day two's scan re-added it.
	nvda, ok := sess.Symbol("NVDA")
	require.True(t, ok)
	require.True(t, nvda.Meta.AutoProvisioned)
	require.False(t, nvda.Meta.MeetsFullRequirements)
	require.Equal(t, models.SourceScanner, nvda.Meta.AddedBy)
}

// -----------------------------------------------------------------------------

func TestRunIsTerminal(t *testing.T) {
	coord, _ := newTestCoordinator(t, testConfig(), &fakeStore{known: map[string]bool{"AAPL": true}})

	require.NoError(t, coord.Run())

	// STOPPED is terminal: a session never restarts.
	err := coord.Run()
	require.Error(t, err)
	require.Contains(t, err.Error(), "terminal")
}

// -----------------------------------------------------------------------------

func TestPauseFreezesSimulatedTime(t *testing.T) {
	cfg := testConfig()
	cfg.Session.Mode = "clock"
	cfg.Session.SpeedMultiplier = 6000 // 10ms wall per simulated minute
	coord, sess := newTestCoordinator(t, cfg, &fakeStore{known: map[string]bool{"AAPL": true}})

	done := make(chan error, 1)
	go func() { done <- coord.Run() }()

	// Let a few ticks land, then pause.
	time.Sleep(300 * time.Millisecond)
	require.True(t, coord.Pause())
	require.Equal(t, StatePaused, coord.State())

	// Pausing twice is a no-op.
	require.False(t, coord.Pause())

	// Simulated time holds still while paused.
	time.Sleep(100 * time.Millisecond)
	frozen := sess.Clock().Now()
	time.Sleep(200 * time.Millisecond)
	require.Equal(t, frozen, sess.Clock().Now())

	require.True(t, coord.Resume())
	require.Equal(t, StateRunning, coord.State())
	require.False(t, coord.Resume())

	// Time advances again after resume.
	time.Sleep(300 * time.Millisecond)
	require.True(t, sess.Clock().Now().After(frozen))

	coord.Stop()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("session did not stop")
	}
}

// -----------------------------------------------------------------------------

func TestPauseRejectedInLiveMode(t *testing.T) {
	cfg := testConfig()
	cfg.Session.Live = true
	coord, _ := newTestCoordinator(t, cfg, &fakeStore{known: map[string]bool{"AAPL": true}})

	require.False(t, coord.Pause())
	require.False(t, coord.Resume())
}

// -----------------------------------------------------------------------------

func TestPauseRequiresRunningState(t *testing.T) {
	coord, _ := newTestCoordinator(t, testConfig(), &fakeStore{known: map[string]bool{"AAPL": true}})

	// STOPPED: nothing to pause or resume.
	require.False(t, coord.Pause())
	require.False(t, coord.Resume())
}

// -----------------------------------------------------------------------------

func TestStopMidSession(t *testing.T) {
	cfg := testConfig()
	cfg.Session.Mode = "clock"
	cfg.Session.SpeedMultiplier = 600 // 100ms wall per simulated minute
	coord, _ := newTestCoordinator(t, cfg, &fakeStore{known: map[string]bool{"AAPL": true}})

	done := make(chan error, 1)
	go func() { done <- coord.Run() }()

	time.Sleep(300 * time.Millisecond)
	coord.Stop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("session did not stop")
	}

	require.Equal(t, StateStopped, coord.State())
	select {
	case <-coord.Done():
	default:
		t.Fatal("Done not closed after Run returned")
	}
}

// -----------------------------------------------------------------------------

func TestRunFailsWhenAllSymbolsFail(t *testing.T) {
	coord, _ := newTestCoordinator(t, testConfig(), &fakeStore{known: map[string]bool{}})

	err := coord.Run()
	var fatal *helpers.AllSymbolsFailedError
	require.ErrorAs(t, err, &fatal)
	require.Equal(t, StateStopped, coord.State())
}

// -----------------------------------------------------------------------------

func TestRunRejectsEmptySymbolRequest(t *testing.T) {
	cfg := testConfig()
	cfg.Session.Symbols = []models.MSymbolConfig{{Symbol: "AAPL"}}
	coord, _ := newTestCoordinator(t, cfg, &fakeStore{known: map[string]bool{"AAPL": true}})

	err := coord.Run()
	var cfgErr *helpers.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

// -----------------------------------------------------------------------------

// Snapshot and History serve the HTTP goroutine while the session loop is
// writing; hammering them mid-run keeps the race detector honest.
func TestSnapshotAndHistoryDuringRun(t *testing.T) {
	cfg := testConfig()
	cfg.Session.Mode = "clock"
	cfg.Session.SpeedMultiplier = 6000 // 10ms wall per simulated minute
	coord, _ := newTestCoordinator(t, cfg, &fakeStore{known: map[string]bool{"AAPL": true}})

	done := make(chan error, 1)
	go func() { done <- coord.Run() }()

	stop := make(chan struct{})
	reads := make(chan int, 1)
	go func() {
		n := 0
		for {
			select {
			case <-stop:
				reads <- n
				return
			default:
				_ = coord.Snapshot()
				_ = coord.History()
				n++
			}
		}
	}()

	time.Sleep(500 * time.Millisecond)
	coord.Stop()
	close(stop)

	require.Greater(t, <-reads, 0)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("session did not stop")
	}
}

// -----------------------------------------------------------------------------

func TestSnapshotShape(t *testing.T) {
	coord, _ := newTestCoordinator(t, testConfig(), &fakeStore{known: map[string]bool{"AAPL": true}})
	require.NoError(t, coord.Run())

	snap := coord.Snapshot()
	require.Equal(t, "UPDATE", snap.Type)
	require.Equal(t, StateStopped, snap.State)
	require.Equal(t, "data-driven", snap.Mode)
	require.Equal(t, "2024-03-12", snap.Day)
	require.Contains(t, snap.Symbols, "AAPL")
	require.Greater(t, snap.Metrics.Ticks, int64(0))
}
