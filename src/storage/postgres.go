package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"backtest-engine/src/intervals"
	"backtest-engine/src/logger"
	"backtest-engine/src/models"

	_ "github.com/lib/pq"
)

// -----------------------------------------------------------------------------

type PostgresStore struct {
	Config *models.MConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewPostgresStore(cfg *models.MConfig, log *logger.Logger) (*PostgresStore, error) {
	// Use the executable name as the schema so several engines can share one
	// database.
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable name: %w", err)
	}
	name := filepath.Base(exe)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	return &PostgresStore{
		Config: cfg,
		Schema: name,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresStore) Initialize() error {
	dsn := d.Config.Storage.DBConnectionString
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	d.DB = db

	// Create Schema
	if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", d.Schema, err)
	}

	if err := d.createTables(); err != nil {
		return err
	}

	d.Logger.Info("PostgresStore initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresStore) createTables() error {
	barsTable := fmt.Sprintf(`"%s"."bars"`, d.Schema)

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			symbol TEXT,
			interval TEXT,
			start_time BIGINT,
			end_time BIGINT,
			open DOUBLE PRECISION,
			high DOUBLE PRECISION,
			low DOUBLE PRECISION,
			close DOUBLE PRECISION,
			volume DOUBLE PRECISION,
			PRIMARY KEY (symbol, interval, start_time)
		);
	`, barsTable)
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create bars: %w", err)
	}

	query = fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_bars_symbol_interval_end
		ON %s (symbol, interval, end_time);
	`, barsTable)
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to index bars: %w", err)
	}

	return d.ensureSymbolCatalog()
}

// -----------------------------------------------------------------------------

func (d *PostgresStore) LoadBars(symbol, interval string, from, to time.Time) ([]models.MBar, error) {
	query := fmt.Sprintf(`
		SELECT symbol, interval, start_time, end_time, open, high, low, close, volume
		FROM "%s"."bars"
		WHERE symbol = $1 AND interval = $2 AND start_time >= $3 AND start_time < $4
		ORDER BY start_time ASC
	`, d.Schema)

	rows, err := d.DB.Query(query, symbol, interval, from.Unix(), to.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to load bars for %s %s: %w", symbol, interval, err)
	}
	defer rows.Close()

	var bars []models.MBar
	for rows.Next() {
		var b models.MBar
		if err := rows.Scan(&b.Symbol, &b.Interval, &b.StartTime, &b.EndTime, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// -----------------------------------------------------------------------------

func (d *PostgresStore) SaveBarsBulk(bars []models.MBar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO "%s"."bars" (symbol, interval, start_time, end_time, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (symbol, interval, start_time) DO UPDATE SET
			end_time = EXCLUDED.end_time,
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume
	`, d.Schema)
	stmt, err := tx.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		_, err := stmt.Exec(b.Symbol, b.Interval, b.StartTime, b.EndTime, b.Open, b.High, b.Low, b.Close, b.Volume)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *PostgresStore) Availability(symbol string) (models.MAvailabilityInfo, error) {
	info := models.MAvailabilityInfo{Symbol: symbol}

	query := fmt.Sprintf(`SELECT DISTINCT interval FROM "%s"."bars" WHERE symbol = $1`, d.Schema)
	rows, err := d.DB.Query(query, symbol)
	if err != nil {
		return info, fmt.Errorf("availability query failed for %s: %w", symbol, err)
	}
	defer rows.Close()

	for rows.Next() {
		var iv string
		if err := rows.Scan(&iv); err != nil {
			return info, err
		}
		switch iv {
		case intervals.BaseSubMinute:
			info.HasSubMinute = true
		case intervals.BaseMinute:
			info.HasMinute = true
		case intervals.BaseDaily:
			info.HasDaily = true
		}
	}
	if err := rows.Err(); err != nil {
		return info, err
	}

	info.HasQuotes = info.HasSubMinute || info.HasMinute
	return info, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresStore) EarliestBar(symbol, interval string) (time.Time, error) {
	query := fmt.Sprintf(`
		SELECT MIN(start_time) FROM "%s"."bars" WHERE symbol = $1 AND interval = $2
	`, d.Schema)

	var ts sql.NullInt64
	if err := d.DB.QueryRow(query, symbol, interval).Scan(&ts); err != nil {
		return time.Time{}, err
	}
	if !ts.Valid {
		return time.Time{}, fmt.Errorf("no %s bars stored for %s", interval, symbol)
	}
	return time.Unix(ts.Int64, 0).UTC(), nil
}

// -----------------------------------------------------------------------------

func (d *PostgresStore) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
