package calibration

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/alejandrodnm/polyoracle/internal/domain"
)

// AnalyzerConfig are the thresholds a market must clear before trading.
type AnalyzerConfig struct {
	MinEdge       float64
	MinConfidence float64
	MinLiquidity  float64
}

// Analyzer compara nuestro forecast calibrado con el precio del mercado y
// decide si el edge es accionable. No toca el storage: es cálculo puro.
type Analyzer struct {
	cfg    AnalyzerConfig
	logger *slog.Logger
}

func NewAnalyzer(cfg AnalyzerConfig, logger *slog.Logger) *Analyzer {
	return &Analyzer{cfg: cfg, logger: logger}
}

// Analyze computes the edge between the calibrated forecast and the market
// price. Edge above the forecast means BUY_YES, below means BUY_NO. The
// recommendation is TRADE only when edge, confidence and liquidity all
// meet their thresholds (boundary values pass).
func (a *Analyzer) Analyze(f domain.CalibratedForecast, marketPrice, liquidity float64) (domain.EdgeAnalysis, error) {
	if marketPrice < 0 || marketPrice > 1 {
		return domain.EdgeAnalysis{}, fmt.Errorf("calibration.Analyze: market price %.4f out of [0,1]", marketPrice)
	}
	if liquidity < 0 {
		return domain.EdgeAnalysis{}, fmt.Errorf("calibration.Analyze: negative liquidity %.2f", liquidity)
	}

	rawEdge := f.Calibrated - marketPrice
	absEdge := rawEdge
	if absEdge < 0 {
		absEdge = -absEdge
	}

	direction := domain.BuyNo
	if rawEdge > 0 {
		direction = domain.BuyYes
	}

	actionable := absEdge >= a.cfg.MinEdge &&
		f.Confidence >= a.cfg.MinConfidence &&
		liquidity >= a.cfg.MinLiquidity

	action := domain.ActionSkip
	if actionable {
		action = domain.ActionTrade
	}

	analysis := domain.EdgeAnalysis{
		OurForecast:       f.Calibrated,
		MarketPrice:       marketPrice,
		RawEdge:           rawEdge,
		AbsEdge:           absEdge,
		WeightedEdge:      rawEdge * f.Confidence,
		Direction:         direction,
		HasActionableEdge: actionable,
		RecommendedAction: action,
		Reasoning:         a.reasoning(f, marketPrice, absEdge, liquidity, actionable, direction),
	}

	a.logger.Info("edge analizado",
		"edge", fmt.Sprintf("%.1f%%", absEdge*100),
		"confidence", fmt.Sprintf("%.1f%%", f.Confidence*100),
		"liquidity", fmt.Sprintf("%.0f", liquidity),
		"action", string(action))

	return analysis, nil
}

// reasoning builds a deterministic human-readable breakdown of every
// criterion. Same inputs always produce the same string.
func (a *Analyzer) reasoning(f domain.CalibratedForecast, marketPrice, absEdge, liquidity float64, actionable bool, direction domain.Direction) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Our calibrated forecast: %.1f%%\n", f.Calibrated*100)
	fmt.Fprintf(&b, "Market price: %.1f%%\n", marketPrice*100)
	fmt.Fprintf(&b, "Edge: %.1f%% (%s)\n", absEdge*100, direction)
	fmt.Fprintf(&b, "Confidence: %.1f%%\n", f.Confidence*100)
	fmt.Fprintf(&b, "Market liquidity: $%.0f\n\n", liquidity)

	b.WriteString(criterion("Edge", absEdge*100, a.cfg.MinEdge*100, "%"))
	b.WriteString(criterion("Confidence", f.Confidence*100, a.cfg.MinConfidence*100, "%"))
	b.WriteString(criterion("Liquidity", liquidity, a.cfg.MinLiquidity, "$"))

	if actionable {
		fmt.Fprintf(&b, "\nRECOMMENDATION: %s\n", direction)
		fmt.Fprintf(&b, "This market shows a %.1f%% mispricing opportunity.", absEdge*100)
		if f.Method != "identity" {
			adj := f.Calibrated - f.Raw
			if adj < 0 {
				adj = -adj
			}
			fmt.Fprintf(&b, "\nCalibration adjusted forecast by %.1f%% based on %d historical forecasts.",
				adj*100, f.HistoricalSamples)
		}
	} else {
		b.WriteString("\nRECOMMENDATION: SKIP\n")
		b.WriteString("One or more criteria not met for trading.")
	}

	return b.String()
}

func criterion(name string, value, threshold float64, unit string) string {
	mark, op := "✓", ">="
	if value < threshold {
		mark, op = "✗", "<"
	}
	if unit == "$" {
		return fmt.Sprintf("%s %s $%.0f %s threshold $%.0f\n", mark, name, value, op, threshold)
	}
	return fmt.Sprintf("%s %s %.1f%% %s threshold %.1f%%\n", mark, name, value, op, threshold)
}
