package storage

import (
	"database/sql"
	"fmt"
	"time"

	"backtest-engine/src/intervals"
	"backtest-engine/src/logger"
	"backtest-engine/src/models"

	_ "modernc.org/sqlite"
)

// Rows per committed transaction in SaveBarsBulk. Rows are bound one
// statement at a time, so this caps transaction size, not variable count.
const sqliteBatchSize = 4000

// -----------------------------------------------------------------------------

type SQLiteStore struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewSQLiteStore(cfg *models.MConfig, log *logger.Logger) (*SQLiteStore, error) {
	return &SQLiteStore{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteStore) Initialize() error {
	dsn := d.Config.Storage.DBPath

	// Open DB
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *SQLiteStore) createTables() error {
	// SQLite types: INTEGER for int64, REAL for float64, TEXT for string
	query := `
		CREATE TABLE IF NOT EXISTS bars (
			symbol TEXT,
			interval TEXT,
			start_time INTEGER,
			end_time INTEGER,
			open REAL,
			high REAL,
			low REAL,
			close REAL,
			volume REAL,
			PRIMARY KEY (symbol, interval, start_time)
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create bars: %w", err)
	}

	query = `
		CREATE INDEX IF NOT EXISTS idx_bars_symbol_interval_end
		ON bars (symbol, interval, end_time);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to index bars: %w", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteStore) LoadBars(symbol, interval string, from, to time.Time) ([]models.MBar, error) {
	rows, err := d.DB.Query(`
		SELECT symbol, interval, start_time, end_time, open, high, low, close, volume
		FROM bars
		WHERE symbol = ? AND interval = ? AND start_time >= ? AND start_time < ?
		ORDER BY start_time ASC
	`, symbol, interval, from.Unix(), to.Unix())
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

func (d *SQLiteStore) SaveBarsBulk(bars []models.MBar) error {
	if len(bars) == 0 {
		return nil
	}

	// Commit in bounded transactions so one huge save never holds a long
	// write lock.
	for start := 0; start < len(bars); start += sqliteBatchSize {
		end := start + sqliteBatchSize
		if end > len(bars) {
			end = len(bars)
		}
		if err := d.saveChunk(bars[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (d *SQLiteStore) saveChunk(bars []models.MBar) error {
	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO bars (symbol, interval, start_time, end_time, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (symbol, interval, start_time) DO UPDATE SET
			end_time = excluded.end_time,
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume
	`)
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

func (d *SQLiteStore) Availability(symbol string) (models.MAvailabilityInfo, error) {
	info := models.MAvailabilityInfo{Symbol: symbol}

	rows, err := d.DB.Query(`SELECT DISTINCT interval FROM bars WHERE symbol = ?`, symbol)
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

	// Quotes are synthesized from the finest bars on hand
	info.HasQuotes = info.HasSubMinute || info.HasMinute
	return info, nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteStore) EarliestBar(symbol, interval string) (time.Time, error) {
	var ts sql.NullInt64
	err := d.DB.QueryRow(`
		SELECT MIN(start_time) FROM bars WHERE symbol = ? AND interval = ?
	`, symbol, interval).Scan(&ts)
	if err != nil {
		return time.Time{}, err
	}
	if !ts.Valid {
		return time.Time{}, fmt.Errorf("no %s bars stored for %s", interval, symbol)
	}
	return time.Unix(ts.Int64, 0).UTC(), nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteStore) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
