package execution

import (
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/polyoracle/internal/domain"
)

// SizerConfig are the betting limits applied on top of the Kelly output.
type SizerConfig struct {
	MinBet         float64
	MaxBet         float64
	MaxBankrollPct float64
	KellyFraction  float64 // fracción conservadora aplicada sobre el Kelly completo
}

// Sizer calcula el tamaño de cada apuesta con Kelly fraccional. Es cálculo
// puro: no toca storage ni red.
type Sizer struct {
	cfg    SizerConfig
	logger *slog.Logger
}

func NewSizer(cfg SizerConfig, logger *slog.Logger) *Sizer {
	return &Sizer{cfg: cfg, logger: logger}
}

// Calculate sizes a bet with the Kelly criterion:
//
//	b = (1/market_p) − 1
//	f* = (b·p − (1−p)) / b
//
// For BUY_NO both probabilities invert. The raw Kelly stake is scaled by
// the conservative fraction and capped by max bankroll percentage and max
// bet; below the minimum bet the amount is zero (skip, not an error).
func (s *Sizer) Calculate(bankroll, ourProb, marketProb float64, direction domain.Direction) (domain.PositionSize, error) {
	if bankroll <= 0 {
		return domain.PositionSize{}, fmt.Errorf("execution.Calculate: bankroll must be positive, got %.2f", bankroll)
	}
	if ourProb <= 0 || ourProb >= 1 {
		return domain.PositionSize{}, fmt.Errorf("execution.Calculate: our probability %.4f out of (0,1)", ourProb)
	}
	if marketProb <= 0 || marketProb >= 1 {
		return domain.PositionSize{}, fmt.Errorf("execution.Calculate: market probability %.4f out of (0,1)", marketProb)
	}

	// Comprar NO equivale a comprar YES sobre el complemento.
	p, marketP := ourProb, marketProb
	if direction == domain.BuyNo {
		p = 1 - ourProb
		marketP = 1 - marketProb
	}

	var kelly float64
	if marketP < 0.99 {
		b := 1/marketP - 1
		kelly = (b*p - (1 - p)) / b
	}

	rawAmount := bankroll * kelly * s.cfg.KellyFraction

	capped := rawAmount
	if maxPct := bankroll * s.cfg.MaxBankrollPct; capped > maxPct {
		capped = maxPct
	}
	if capped > s.cfg.MaxBet {
		capped = s.cfg.MaxBet
	}

	size := domain.PositionSize{
		KellyFraction:   kelly,
		AppliedFraction: s.cfg.KellyFraction,
		Constraints: domain.SizeConstraints{
			MinBet:         s.cfg.MinBet,
			MaxBet:         s.cfg.MaxBet,
			MaxBankrollPct: s.cfg.MaxBankrollPct,
		},
	}

	if capped < s.cfg.MinBet {
		s.logger.Info("apuesta por debajo del mínimo, no se opera",
			"amount", fmt.Sprintf("%.2f", capped),
			"min_bet", fmt.Sprintf("%.2f", s.cfg.MinBet))
		return size, nil
	}

	size.AmountUSD = capped
	// Las shares se compran al precio del token correspondiente.
	if direction == domain.BuyYes {
		size.NumShares = capped / marketProb
	} else {
		size.NumShares = capped / (1 - marketProb)
	}

	s.logger.Info("posición dimensionada",
		"direction", string(direction),
		"bankroll", fmt.Sprintf("%.2f", bankroll),
		"kelly", fmt.Sprintf("%.3f", kelly),
		"amount", fmt.Sprintf("%.2f", size.AmountUSD),
		"shares", fmt.Sprintf("%.2f", size.NumShares))

	return size, nil
}
