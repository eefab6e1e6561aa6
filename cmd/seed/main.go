package main

import (
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strings"
	"time"

	"backtest-engine/src/config"
	"backtest-engine/src/intervals"
	"backtest-engine/src/logger"
	"backtest-engine/src/models"
	"backtest-engine/src/storage"
	"backtest-engine/src/utils"
)

// -----------------------------------------------------------------------------
// Seeds the configured store with synthetic session bars so a backtest can run
// without a market data dump. Prices follow a bounded random walk per symbol.
// -----------------------------------------------------------------------------

func main() {

	configPath := flag.String("config", "../../config/default.yaml", "path to config file")
	symbolsFlag := flag.String("symbols", "", "comma separated symbols (default: config symbols)")
	intervalsFlag := flag.String("intervals", "1m", "comma separated raw intervals to seed")
	startFlag := flag.String("start", "", "first day YYYY-MM-DD (default: config start_date)")
	endFlag := flag.String("end", "", "last day YYYY-MM-DD (default: config end_date)")
	basePrice := flag.Float64("price", 100.0, "starting price for the walk")
	seed := flag.Int64("seed", 42, "random seed")
	flag.Parse()

	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	appLogger := logger.NewLogger(cfg.MConfig, "seed")

	symbols := splitList(*symbolsFlag)
	if len(symbols) == 0 {
		for _, sc := range cfg.Session.Symbols {
			symbols = append(symbols, sc.Symbol)
		}
	}
	ivs := splitList(*intervalsFlag)
	if len(symbols) == 0 || len(ivs) == 0 {
		appLogger.Critical("Nothing to seed: need at least one symbol and one interval")
		os.Exit(1)
	}

	startDate := cfg.Session.StartDate
	if *startFlag != "" {
		startDate = *startFlag
	}
	endDate := cfg.Session.EndDate
	if *endFlag != "" {
		endDate = *endFlag
	}
	first, err := time.Parse("2006-01-02", startDate)
	if err != nil {
		appLogger.Critical("Bad start date %q: %v", startDate, err)
		os.Exit(1)
	}
	last, err := time.Parse("2006-01-02", endDate)
	if err != nil {
		appLogger.Critical("Bad end date %q: %v", endDate, err)
		os.Exit(1)
	}

	store, err := storage.NewStore(cfg.MConfig, appLogger)
	if err != nil {
		appLogger.Critical("Failed to init store: %v", err)
		os.Exit(1)
	}
	if err := store.Initialize(); err != nil {
		appLogger.Critical("Failed to migrate store: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	rng := rand.New(rand.NewSource(*seed))
	total := 0

	for _, symbol := range symbols {
		cal := utils.GetCalendar(symbol)
		price := *basePrice

		// Anchor the date range in the exchange timezone so a UTC-midnight
		// cursor never lands on the previous local day.
		loc := cal.Location()
		symFirst := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, loc)
		symLast := time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, loc)

		for day := cal.FirstTradingDayFrom(symFirst); !day.After(symLast); day = cal.NextTradingDay(day) {
			open, close := cal.SessionBounds(day)

			var batch []models.MBar
			for _, iv := range ivs {
				ivSec, err := intervals.Seconds(iv)
				if err != nil {
					appLogger.Critical("Bad interval %q: %v", iv, err)
					os.Exit(1)
				}
				bars, end := walkDay(rng, symbol, iv, ivSec, open.Unix(), close.Unix(), price)
				batch = append(batch, bars...)
				if iv == ivs[0] {
					price = end // carry the walk across days on the finest interval
				}
			}

			if err := store.SaveBarsBulk(batch); err != nil {
				appLogger.Critical("Seeding %s on %s failed: %v", symbol, day.Format("2006-01-02"), err)
				os.Exit(1)
			}
			total += len(batch)
		}
		appLogger.Info("Seeded %s", symbol)
	}

	appLogger.Info("Done: %d bars written", total)
}

// -----------------------------------------------------------------------------

// walkDay emits one bar per interval window across the session and returns the
// closing price so the next day continues the same walk.
func walkDay(rng *rand.Rand, symbol, interval string, ivSec, open, close int64, price float64) ([]models.MBar, float64) {
	var bars []models.MBar

	for start := open; start+ivSec <= close; start += ivSec {
		drift := price * 0.002 * (rng.Float64()*2 - 1)
		o := price
		c := math.Max(0.01, price+drift)
		h := math.Max(o, c) * (1 + rng.Float64()*0.001)
		l := math.Min(o, c) * (1 - rng.Float64()*0.001)

		bars = append(bars, models.MBar{
			Symbol:    symbol,
			Interval:  interval,
			Open:      o,
			High:      h,
			Low:       l,
			Close:     c,
			Volume:    float64(1000 + rng.Intn(9000)),
			StartTime: start,
			EndTime:   start + ivSec,
		})
		price = c
	}
	return bars, price
}

// -----------------------------------------------------------------------------

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
