package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backtest-engine/src/config"
	"backtest-engine/src/coordinator"
	"backtest-engine/src/indicators"
	"backtest-engine/src/logger"
	"backtest-engine/src/provision"
	"backtest-engine/src/server"
	"backtest-engine/src/session"
	"backtest-engine/src/storage"
	"backtest-engine/src/utils"
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "../../config/default.yaml", "path to config file")
	flag.Parse()

	// Load config from YAML file
	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.NewLogger(cfg.MConfig, cfg.Name)

	// 2. Storage
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

	// 3. Session state. The clock start is provisional; the coordinator resets
	// it to each trading day's open before streaming.
	start := time.Now()
	if !cfg.Session.Live {
		start, _ = time.Parse("2006-01-02", cfg.Session.StartDate)
	}
	sess := session.NewSessionData(start)

	// 4. Provisioning
	registry := indicators.NewRegistry()
	engine := provision.NewEngine(sess, store, registry, cfg.Session.HistoricalDays, appLogger)

	// 5. Market scheduler, seeded with the configured symbols
	symbols := make([]string, 0, len(cfg.Session.Symbols))
	for _, sc := range cfg.Session.Symbols {
		symbols = append(symbols, sc.Symbol)
	}
	scheduler := utils.NewMarketScheduler(symbols, appLogger)

	// 6. Coordinator + server, wired both ways
	srv := server.NewSessionServer(cfg.MConfig, appLogger)
	coord := coordinator.NewCoordinator(cfg.MConfig, sess, engine, store, scheduler, appLogger)
	coord.Exchanger = srv
	srv.Control = coord
	srv.Provisioner = engine

	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Error("Server failed: %v", err)
		}
	}()

	// 7. Run the session in the background so signals stay responsive
	runErr := make(chan error, 1)
	go func() {
		runErr <- coord.Run()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-runErr:
		if err != nil {
			appLogger.Critical("Session aborted: %v", err)
			os.Exit(1)
		}
		appLogger.Info("Session complete.")
	case <-quit:
		appLogger.Info("Shutting down...")
		coord.Stop()
		<-coord.Done()
	}

	srv.Stop()
}
