package storage

// sqlite.go — persistencia en SQLite (pure Go, sin CGo).
//
// Un único fichero .db con cuatro tablas:
//   - `forecasts`: histórico append-only, una mutación por fila al resolver.
//   - `trades`: ledger inmutable de trades ejecutados.
//   - `positions`: una fila por mercado (UPSERT). shares == 0 → cerrada.
//   - `daily_stats`: una fila por fecha UTC; ending_bankroll de la fila más
//     reciente es la fuente autoritativa del bankroll.

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
-- Histórico de forecasts, TRADE y SKIP por igual
CREATE TABLE IF NOT EXISTS forecasts (
    id                       TEXT PRIMARY KEY,
    market_id                TEXT NOT NULL,
    question                 TEXT,
    category                 TEXT NOT NULL DEFAULT 'binary',
    timestamp                DATETIME NOT NULL,
    raw_probability          REAL NOT NULL,
    calibrated_probability   REAL NOT NULL,
    confidence               REAL NOT NULL,
    reasoning                TEXT,
    market_price_at_forecast REAL NOT NULL DEFAULT 0,
    edge                     REAL NOT NULL DEFAULT 0,
    recommended_action       TEXT NOT NULL DEFAULT 'SKIP',
    resolved                 INTEGER NOT NULL DEFAULT 0,
    outcome                  INTEGER,
    brier_score_raw          REAL,
    brier_score_calibrated   REAL
);

-- Ledger inmutable de trades
CREATE TABLE IF NOT EXISTS trades (
    id          TEXT PRIMARY KEY,
    market_id   TEXT NOT NULL,
    direction   TEXT NOT NULL,
    amount_usd  REAL NOT NULL,
    num_shares  REAL NOT NULL,
    entry_price REAL NOT NULL,
    status      TEXT NOT NULL,
    order_id    TEXT,
    timestamp   DATETIME NOT NULL
);

-- Una posición agregada por mercado
CREATE TABLE IF NOT EXISTS positions (
    market_id       TEXT PRIMARY KEY,
    direction       TEXT NOT NULL,
    num_shares      REAL NOT NULL DEFAULT 0,
    amount_usd      REAL NOT NULL DEFAULT 0,
    avg_entry_price REAL NOT NULL DEFAULT 0,
    current_price   REAL NOT NULL DEFAULT 0,
    updated_at      DATETIME NOT NULL
);

-- Resumen diario, una fila por fecha UTC
CREATE TABLE IF NOT EXISTS daily_stats (
    date              DATE PRIMARY KEY,
    starting_bankroll REAL    NOT NULL DEFAULT 0,
    ending_bankroll   REAL    NOT NULL DEFAULT 0,
    trades_executed   INTEGER NOT NULL DEFAULT 0,
    trades_won        INTEGER NOT NULL DEFAULT 0,
    gross_pnl         REAL    NOT NULL DEFAULT 0,
    fees_paid         REAL    NOT NULL DEFAULT 0,
    net_pnl           REAL    NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_forecasts_market   ON forecasts(market_id, timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_forecasts_resolved ON forecasts(resolved);
CREATE INDEX IF NOT EXISTS idx_forecasts_category ON forecasts(category, resolved);
CREATE INDEX IF NOT EXISTS idx_trades_market      ON trades(market_id);
CREATE INDEX IF NOT EXISTS idx_stats_date         ON daily_stats(date DESC);
`

// Store implementa ports.ForecastStore y ports.LedgerStore sobre SQLite.
type Store struct {
	db *sql.DB
}

// New abre (o crea) la base de datos en la ruta dada y aplica el schema.
// Usa ":memory:" en tests.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.New: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.New: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func fmtDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}
	}
	return t
}
