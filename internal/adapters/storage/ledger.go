package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alejandrodnm/polyoracle/internal/domain"
	"github.com/alejandrodnm/polyoracle/internal/ports"
)

var _ ports.LedgerStore = (*Store)(nil)

// SaveTrade inserta un trade en el ledger. El ledger es inmutable: no hay
// updates ni deletes.
func (s *Store) SaveTrade(ctx context.Context, t domain.Trade) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (id, market_id, direction, amount_usd, num_shares,
		                    entry_price, status, order_id, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.MarketID, string(t.Direction), t.AmountUSD, t.NumShares,
		t.EntryPrice, string(t.Status), t.OrderID, fmtTime(t.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveTrade: %w", err)
	}
	return nil
}

// GetPosition devuelve la posición de un mercado (abierta o cerrada), o
// nil si nunca hubo una.
func (s *Store) GetPosition(ctx context.Context, marketID string) (*domain.Position, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT market_id, direction, num_shares, amount_usd, avg_entry_price,
		       current_price, updated_at
		FROM positions
		WHERE market_id = ?`, marketID)

	pos, err := scanPosition(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage.GetPosition: %w", err)
	}
	return &pos, nil
}

func (s *Store) GetOpenPositions(ctx context.Context) ([]domain.Position, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT market_id, direction, num_shares, amount_usd, avg_entry_price,
		       current_price, updated_at
		FROM positions
		WHERE num_shares > 0
		ORDER BY market_id`)
	if err != nil {
		return nil, fmt.Errorf("storage.GetOpenPositions: %w", err)
	}
	defer rows.Close()

	var out []domain.Position
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.GetOpenPositions: %w", err)
		}
		out = append(out, pos)
	}
	return out, rows.Err()
}

func (s *Store) UpsertPosition(ctx context.Context, p domain.Position) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO positions (market_id, direction, num_shares, amount_usd,
		                       avg_entry_price, current_price, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(market_id) DO UPDATE SET
			direction       = excluded.direction,
			num_shares      = excluded.num_shares,
			amount_usd      = excluded.amount_usd,
			avg_entry_price = excluded.avg_entry_price,
			current_price   = excluded.current_price,
			updated_at      = excluded.updated_at`,
		p.MarketID, string(p.Direction), p.NumShares, p.AmountUSD,
		p.AvgEntryPrice, p.CurrentPrice, fmtTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("storage.UpsertPosition: %w", err)
	}
	return nil
}

func (s *Store) GetDailyStats(ctx context.Context, date time.Time) (*domain.DailyStats, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT date, starting_bankroll, ending_bankroll, trades_executed,
		       trades_won, gross_pnl, fees_paid, net_pnl
		FROM daily_stats
		WHERE date = ?`, fmtDate(date))

	stats, err := scanDailyStats(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage.GetDailyStats: %w", err)
	}
	return &stats, nil
}

func (s *Store) UpsertDailyStats(ctx context.Context, st domain.DailyStats) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_stats (date, starting_bankroll, ending_bankroll,
		                         trades_executed, trades_won, gross_pnl,
		                         fees_paid, net_pnl)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			starting_bankroll = excluded.starting_bankroll,
			ending_bankroll   = excluded.ending_bankroll,
			trades_executed   = excluded.trades_executed,
			trades_won        = excluded.trades_won,
			gross_pnl         = excluded.gross_pnl,
			fees_paid         = excluded.fees_paid,
			net_pnl           = excluded.net_pnl`,
		fmtDate(st.Date), st.StartingBankroll, st.EndingBankroll,
		st.TradesExecuted, st.TradesWon, st.GrossPnL, st.FeesPaid, st.NetPnL,
	)
	if err != nil {
		return fmt.Errorf("storage.UpsertDailyStats: %w", err)
	}
	return nil
}

// ApplySettlement cierra la posición del mercado y absorbe el P&L en las
// estadísticas de hoy, todo en una transacción: o se aplican ambas cosas
// o ninguna.
func (s *Store) ApplySettlement(ctx context.Context, marketID string, pnl, fallbackBankroll float64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.ApplySettlement: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		UPDATE positions
		SET num_shares = 0, amount_usd = 0, updated_at = ?
		WHERE market_id = ?`, fmtTime(now), marketID); err != nil {
		return fmt.Errorf("storage.ApplySettlement: close position: %w", err)
	}

	won := 0
	if pnl > 0 {
		won = 1
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO daily_stats (date, starting_bankroll, ending_bankroll,
		                         trades_won, gross_pnl, net_pnl)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			ending_bankroll = ending_bankroll + excluded.net_pnl,
			trades_won      = trades_won + excluded.trades_won,
			gross_pnl       = gross_pnl + excluded.gross_pnl,
			net_pnl         = net_pnl + excluded.net_pnl`,
		fmtDate(now), fallbackBankroll, fallbackBankroll+pnl, won, pnl, pnl,
	); err != nil {
		return fmt.Errorf("storage.ApplySettlement: update stats: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.ApplySettlement: %w", err)
	}
	return nil
}

// CurrentBankroll devuelve el ending_bankroll de la fecha más reciente.
// false indica ledger vacío (el caller decide el bankroll inicial); un
// ending_bankroll de 0 con filas presentes se devuelve tal cual.
func (s *Store) CurrentBankroll(ctx context.Context) (float64, bool, error) {
	var b float64
	err := s.db.QueryRowContext(ctx, `
		SELECT ending_bankroll FROM daily_stats
		ORDER BY date DESC LIMIT 1`).Scan(&b)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("storage.CurrentBankroll: %w", err)
	}
	return b, true, nil
}

func scanPosition(row rowScanner) (domain.Position, error) {
	var pos domain.Position
	var direction, updatedAt string
	err := row.Scan(&pos.MarketID, &direction, &pos.NumShares, &pos.AmountUSD,
		&pos.AvgEntryPrice, &pos.CurrentPrice, &updatedAt)
	if err != nil {
		return domain.Position{}, err
	}
	pos.Direction = domain.Direction(direction)
	pos.UpdatedAt = parseTime(updatedAt)
	return pos, nil
}

func scanDailyStats(row rowScanner) (domain.DailyStats, error) {
	var st domain.DailyStats
	var date string
	err := row.Scan(&date, &st.StartingBankroll, &st.EndingBankroll,
		&st.TradesExecuted, &st.TradesWon, &st.GrossPnL, &st.FeesPaid, &st.NetPnL)
	if err != nil {
		return domain.DailyStats{}, err
	}
	st.Date = parseDate(date)
	return st, nil
}
