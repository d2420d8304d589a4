package execution

import (
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/polyoracle/internal/domain"
)

// RiskConfig are the hard limits the risk manager enforces.
type RiskConfig struct {
	MaxDailyLossPct         float64
	MaxOpenPositions        int
	MaxSingleMarketExposure float64
}

// RiskManager valida cada trade propuesto contra los límites de riesgo.
// Nunca devuelve error: un trade rechazado es un RiskCheck con las
// violaciones acumuladas, no un fallo.
type RiskManager struct {
	cfg    RiskConfig
	logger *slog.Logger
}

func NewRiskManager(cfg RiskConfig, logger *slog.Logger) *RiskManager {
	return &RiskManager{cfg: cfg, logger: logger}
}

// Check evaluates the proposed trade against every limit and collects all
// violations. Daily loss and position count fail on the boundary; single
// market exposure fails only strictly above its limit.
func (r *RiskManager) Check(proposed domain.Trade, positions []domain.Position, dailyPnL, bankroll float64) domain.RiskCheck {
	var violations []string

	var dailyLossPct float64
	if dailyPnL < 0 && bankroll > 0 {
		dailyLossPct = -dailyPnL / bankroll
		if dailyLossPct >= r.cfg.MaxDailyLossPct {
			violations = append(violations, fmt.Sprintf(
				"Daily loss limit exceeded: %.1f%% >= %.1f%%",
				dailyLossPct*100, r.cfg.MaxDailyLossPct*100))
		}
	}

	if len(positions) >= r.cfg.MaxOpenPositions {
		violations = append(violations, fmt.Sprintf(
			"Max open positions reached: %d >= %d",
			len(positions), r.cfg.MaxOpenPositions))
	}

	var existing *domain.Position
	for i := range positions {
		if positions[i].MarketID == proposed.MarketID {
			existing = &positions[i]
			break
		}
	}

	proposedExposure := proposed.AmountUSD
	if existing != nil {
		if existing.Direction != proposed.Direction {
			violations = append(violations, fmt.Sprintf(
				"Direction conflict: open %s position in market %s, proposed %s",
				existing.Direction, proposed.MarketID, proposed.Direction))
		}

		proposedExposure = existing.AmountUSD + proposed.AmountUSD
		if bankroll > 0 {
			if pct := proposedExposure / bankroll; pct > r.cfg.MaxSingleMarketExposure {
				violations = append(violations, fmt.Sprintf(
					"Single market exposure limit exceeded: $%.2f (%.1f%%) > %.1f%% of bankroll",
					proposedExposure, pct*100, r.cfg.MaxSingleMarketExposure*100))
			}
		}
	}

	check := domain.RiskCheck{
		Passed:                 len(violations) == 0,
		Violations:             violations,
		DailyLossPct:           dailyLossPct,
		NumOpenPositions:       len(positions),
		ProposedMarketExposure: proposedExposure,
	}

	if check.Passed {
		r.logger.Info("checks de riesgo superados", "market_id", proposed.MarketID)
	} else {
		r.logger.Warn("checks de riesgo fallidos",
			"market_id", proposed.MarketID,
			"violations", len(violations))
	}
	return check
}
