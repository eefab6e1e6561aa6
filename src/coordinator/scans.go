package coordinator

import (
	"time"

	"backtest-engine/src/models"
)

// -----------------------------------------------------------------------------
// Scheduled scans fire once per session day at a configured market time and
// add their symbols adhoc (one indicator, minimal warm-up, no full backfill).
// -----------------------------------------------------------------------------

// symbolExpander is implemented by stores that can resolve table references
// ("schema.table.field") in a scan's symbol list.
type symbolExpander interface {
	ExpandSymbols(sourceName string, raw []string) ([]string, error)
}

type scheduledScan struct {
	at    time.Time
	cfg   models.MScanConfig
	fired bool
}

type scanSchedule struct {
	scans []*scheduledScan
}

// -----------------------------------------------------------------------------

// newScanSchedule resolves each scan's "HH:MM" against the session day open.
func newScanSchedule(cfgs []models.MScanConfig, dayOpen time.Time) *scanSchedule {
	s := &scanSchedule{}
	for _, cfg := range cfgs {
		t, err := time.Parse("15:04", cfg.At)
		if err != nil {
			continue // rejected at config validation; belt and braces
		}
		at := time.Date(dayOpen.Year(), dayOpen.Month(), dayOpen.Day(),
			t.Hour(), t.Minute(), 0, 0, dayOpen.Location())
		s.scans = append(s.scans, &scheduledScan{at: at, cfg: cfg})
	}
	return s
}

// -----------------------------------------------------------------------------

// fire runs every scan whose time has been reached and not yet fired today.
func (s *scanSchedule) fire(c *Coordinator, now time.Time) {
	for _, scan := range s.scans {
		if scan.fired || now.Before(scan.at) {
			continue
		}
		scan.fired = true
		s.runScan(c, scan.cfg)
	}
}

// -----------------------------------------------------------------------------

func (s *scanSchedule) runScan(c *Coordinator, cfg models.MScanConfig) {
	symbols := cfg.Symbols
	if exp, ok := c.Store.(symbolExpander); ok {
		expanded, err := exp.ExpandSymbols("scanner", symbols)
		if err != nil {
			c.Logger.Warning("Scan symbol expansion failed: %v", err)
		} else {
			symbols = expanded
		}
	}

	added := 0
	for _, symbol := range symbols {
		res := c.Engine.AddSymbol(symbol, nil, []models.MIndicatorConfig{cfg.Indicator}, models.SourceScanner)
		if res.Success {
			added++
			c.Logger.Info("Scan added %s adhoc (%s)", symbol, cfg.Indicator.Key())
		} else {
			c.Logger.Debug("Scan skipped %s: %s", symbol, res.Reason)
		}
	}

	if added > 0 {
		c.Scheduler.UpdateSymbols(c.trackedSymbols())
	}
}

// -----------------------------------------------------------------------------

// trackedSymbols lists the session's symbols with the configured ones first,
// so the scheduler's primary calendar never shifts to an adhoc market.
func (c *Coordinator) trackedSymbols() []string {
	seen := make(map[string]bool)
	var out []string
	for _, sym := range c.Config.Session.Symbols {
		if !seen[sym.Symbol] {
			seen[sym.Symbol] = true
			out = append(out, sym.Symbol)
		}
	}
	for _, sym := range c.Session.Symbols() {
		if !seen[sym.Symbol] {
			seen[sym.Symbol] = true
			out = append(out, sym.Symbol)
		}
	}
	return out
}
