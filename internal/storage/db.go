// Package storage persists the engine's token status and position
// state across restarts, and logs completed trades for reporting.
package storage

import (
	"database/sql"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database tuned for a single writer with many
// readers: WAL journaling, NORMAL sync, and a generous busy timeout so
// the engine's single command-processing goroutine never blocks the
// observability surface's read queries for long.
type DB struct {
	db *sql.DB
}

// PersistedPosition is a snapshot of one mint's engine-owned state,
// saved on every state transition and reloaded on restart so open
// positions can be revalidated against a fresh price read before
// monitoring resumes.
type PersistedPosition struct {
	Mint         string
	Status       string
	Source       string
	DiscoveredAt int64
	EntryPrice   float64
	EntryTime    int64
	AmountUSD    float64
	Quantity     float64
}

// Trade records one completed round trip (buy through sell) for
// reporting and win-rate statistics.
type Trade struct {
	ID         int64
	Mint       string
	AmountUSD  float64
	EntryPrice float64
	ExitPrice  float64
	PnLUSD     float64
	PnLPct     float64
	DurationMs int64
	EntryTxSig string
	ExitTxSig  string
	Timestamp  int64
}

// NewDB opens (creating if necessary) the SQLite database at path.
func NewDB(path string) (*DB, error) {
	dsn := path
	if !strings.Contains(path, "?") {
		dsn += "?"
	} else {
		dsn += "&"
	}
	dsn += "_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := createTables(db); err != nil {
		return nil, err
	}

	log.Info().Str("path", path).Msg("database initialized")
	return &DB{db: db}, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS positions (
		mint TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		discovered_at INTEGER NOT NULL DEFAULT 0,
		entry_price REAL NOT NULL DEFAULT 0,
		entry_time INTEGER NOT NULL DEFAULT 0,
		amount_usd REAL NOT NULL DEFAULT 0,
		quantity REAL NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		mint TEXT NOT NULL,
		amount_usd REAL NOT NULL DEFAULT 0,
		entry_price REAL NOT NULL,
		exit_price REAL NOT NULL,
		pnl_usd REAL NOT NULL,
		pnl_pct REAL NOT NULL,
		duration_ms INTEGER NOT NULL,
		entry_tx_sig TEXT NOT NULL,
		exit_tx_sig TEXT NOT NULL,
		timestamp INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_trades_timestamp ON trades(timestamp);
	`

	_, err := db.Exec(schema)
	return err
}

// UpsertPosition inserts or replaces a mint's persisted state. Called
// on every status transition so a crash mid-trade never loses track
// of a mint the engine already committed capital to.
func (d *DB) UpsertPosition(p *PersistedPosition) error {
	_, err := d.db.Exec(`
		INSERT OR REPLACE INTO positions
		(mint, status, source, discovered_at, entry_price, entry_time, amount_usd, quantity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Mint, p.Status, p.Source, p.DiscoveredAt, p.EntryPrice, p.EntryTime, p.AmountUSD, p.Quantity)
	return err
}

// DeletePosition removes a mint's persisted state once it is Sold and
// no longer needs to survive a restart.
func (d *DB) DeletePosition(mint string) error {
	_, err := d.db.Exec("DELETE FROM positions WHERE mint = ?", mint)
	return err
}

// GetAllPositions retrieves every persisted mint, used once at startup
// to reload and revalidate state before resuming monitoring.
func (d *DB) GetAllPositions() ([]*PersistedPosition, error) {
	rows, err := d.db.Query(`
		SELECT mint, status, source, discovered_at, entry_price, entry_time, amount_usd, quantity
		FROM positions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []*PersistedPosition
	for rows.Next() {
		var p PersistedPosition
		if err := rows.Scan(&p.Mint, &p.Status, &p.Source, &p.DiscoveredAt, &p.EntryPrice, &p.EntryTime, &p.AmountUSD, &p.Quantity); err != nil {
			return nil, err
		}
		positions = append(positions, &p)
	}
	return positions, rows.Err()
}

// InsertTrade logs a completed trade.
func (d *DB) InsertTrade(t *Trade) error {
	_, err := d.db.Exec(`
		INSERT INTO trades
		(mint, amount_usd, entry_price, exit_price, pnl_usd, pnl_pct, duration_ms, entry_tx_sig, exit_tx_sig, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Mint, t.AmountUSD, t.EntryPrice, t.ExitPrice, t.PnLUSD, t.PnLPct, t.DurationMs, t.EntryTxSig, t.ExitTxSig, t.Timestamp)
	return err
}

// GetRecentTrades retrieves the most recent trades, newest first.
func (d *DB) GetRecentTrades(limit int) ([]*Trade, error) {
	rows, err := d.db.Query(`
		SELECT id, mint, amount_usd, entry_price, exit_price, pnl_usd, pnl_pct, duration_ms, entry_tx_sig, exit_tx_sig, timestamp
		FROM trades ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []*Trade
	for rows.Next() {
		var t Trade
		if err := rows.Scan(&t.ID, &t.Mint, &t.AmountUSD, &t.EntryPrice, &t.ExitPrice, &t.PnLUSD, &t.PnLPct, &t.DurationMs, &t.EntryTxSig, &t.ExitTxSig, &t.Timestamp); err != nil {
			return nil, err
		}
		trades = append(trades, &t)
	}
	return trades, rows.Err()
}

// GetTradingStats returns aggregate win rate and total P&L across all
// logged trades.
func (d *DB) GetTradingStats() (totalTrades int, winRate float64, totalPnLUSD float64, err error) {
	var wins int
	err = d.db.QueryRow(`
		SELECT
			COUNT(*) as total,
			SUM(CASE WHEN pnl_usd > 0 THEN 1 ELSE 0 END) as wins,
			COALESCE(SUM(pnl_usd), 0) as total_pnl
		FROM trades`).Scan(&totalTrades, &wins, &totalPnLUSD)
	if err != nil {
		return
	}
	if totalTrades > 0 {
		winRate = float64(wins) / float64(totalTrades) * 100
	}
	return
}

// Close closes the underlying database handle.
func (d *DB) Close() error {
	return d.db.Close()
}

// Now returns the current Unix timestamp; a helper so callers don't
// reach for time.Now().Unix() inline at every call site.
func Now() int64 {
	return time.Now().Unix()
}
