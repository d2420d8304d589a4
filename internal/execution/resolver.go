package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/alejandrodnm/polyoracle/internal/calibration"
	"github.com/alejandrodnm/polyoracle/internal/domain"
	"github.com/alejandrodnm/polyoracle/internal/ports"
)

// Resolver cierra el ciclo de settlement: localiza los mercados con
// posiciones abiertas o forecasts pendientes, consulta al oracle cuáles
// han resuelto, liquida las posiciones y alimenta el feedback loop.
type Resolver struct {
	oracle          ports.ResolutionOracle
	ledger          ports.LedgerStore
	forecasts       ports.ForecastStore
	feedback        *calibration.FeedbackLoop
	initialBankroll float64
	logger          *slog.Logger
}

func NewResolver(oracle ports.ResolutionOracle, ledger ports.LedgerStore, forecasts ports.ForecastStore, feedback *calibration.FeedbackLoop, initialBankroll float64, logger *slog.Logger) *Resolver {
	return &Resolver{
		oracle:          oracle,
		ledger:          ledger,
		forecasts:       forecasts,
		feedback:        feedback,
		initialBankroll: initialBankroll,
		logger:          logger,
	}
}

// RunCycle runs one resolution pass. A failed market does not stop the
// cycle: its error is collected and the rest still settle. The feedback
// loop sees every resolution, position or not.
func (r *Resolver) RunCycle(ctx context.Context) (domain.ResolutionSummary, error) {
	ids, err := r.marketsToCheck(ctx)
	if err != nil {
		return domain.ResolutionSummary{}, fmt.Errorf("execution.RunCycle: %w", err)
	}
	if len(ids) == 0 {
		r.logger.Debug("sin mercados pendientes de resolución")
		return domain.ResolutionSummary{}, nil
	}

	r.logger.Info("comprobando resoluciones", "markets", len(ids))

	// Si el oracle falla no queda estado a medias: el ciclo siguiente
	// vuelve a intentarlo con los mismos mercados.
	resolved, err := r.oracle.CheckResolutions(ctx, ids)
	if err != nil {
		return domain.ResolutionSummary{}, fmt.Errorf("execution.RunCycle: %w", err)
	}

	summary := domain.ResolutionSummary{Checked: len(ids)}
	if len(resolved) == 0 {
		return summary, nil
	}

	// Orden determinista para logs y tests.
	marketIDs := make([]string, 0, len(resolved))
	for id := range resolved {
		marketIDs = append(marketIDs, id)
	}
	sort.Strings(marketIDs)

	var errs []error
	for _, marketID := range marketIDs {
		outcome := resolved[marketID]

		pnl, err := r.settle(ctx, marketID, outcome)
		if err != nil {
			r.logger.Error("fallo liquidando mercado", "market_id", marketID, "error", err)
			errs = append(errs, fmt.Errorf("market %s: %w", marketID, err))
		} else {
			summary.Resolved++
			summary.PnL += pnl
		}

		// El feedback loop procesa la resolución aunque no hubiera posición.
		if res := r.feedback.ProcessResolution(ctx, marketID, outcome); !res.Success {
			r.logger.Warn("resolución sin forecast que actualizar",
				"market_id", marketID, "reason", res.Err)
		}
	}

	r.logger.Info("ciclo de resolución completado",
		"checked", summary.Checked,
		"resolved", summary.Resolved,
		"pnl", fmt.Sprintf("%+.2f", summary.PnL))

	return summary, errors.Join(errs...)
}

// marketsToCheck une los market IDs con posición abierta y los que tienen
// forecasts sin resolver, sin duplicados.
func (r *Resolver) marketsToCheck(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var ids []string

	positions, err := r.ledger.GetOpenPositions(ctx)
	if err != nil {
		return nil, err
	}
	for _, pos := range positions {
		if !seen[pos.MarketID] {
			seen[pos.MarketID] = true
			ids = append(ids, pos.MarketID)
		}
	}

	pending, err := r.forecasts.GetUnresolvedMarketIDs(ctx)
	if err != nil {
		return nil, err
	}
	for _, id := range pending {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// settle liquida la posición del mercado si existe. Cada share ganadora
// paga $1; la posición queda cerrada y las estadísticas del día absorben
// el P&L en la misma transacción. Resolver un mercado sin posición (o ya
// liquidado) es un no-op con P&L cero.
func (r *Resolver) settle(ctx context.Context, marketID string, outcome bool) (float64, error) {
	pos, err := r.ledger.GetPosition(ctx, marketID)
	if err != nil {
		return 0, err
	}
	if pos == nil || !pos.IsOpen() {
		return 0, nil
	}

	pnl := domain.SettlementPnL(pos.Direction, pos.NumShares, pos.AmountUSD, outcome)

	fallback, ok, err := r.ledger.CurrentBankroll(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		fallback = r.initialBankroll
	}

	if err := r.ledger.ApplySettlement(ctx, marketID, pnl, fallback); err != nil {
		return 0, err
	}

	side := "NO"
	if outcome {
		side = "YES"
	}
	r.logger.Info("mercado liquidado",
		"market_id", marketID,
		"outcome", side,
		"direction", string(pos.Direction),
		"shares", fmt.Sprintf("%.2f", pos.NumShares),
		"pnl", fmt.Sprintf("%+.2f", pnl))

	return pnl, nil
}
