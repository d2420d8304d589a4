package main

import (
	"context"
	"log/slog"

	"github.com/alejandrodnm/polyoracle/internal/adapters/notify"
	"github.com/alejandrodnm/polyoracle/internal/calibration"
	"github.com/alejandrodnm/polyoracle/internal/execution"
	"github.com/alejandrodnm/polyoracle/internal/ports"
)

// runReport imprime los tres reportes: rendimiento de forecasts, curva de
// calibración y cartera con P&L no realizado a precios actuales.
func runReport(ctx context.Context, engine *execution.Engine, feedback *calibration.FeedbackLoop,
	ledger ports.LedgerStore, markets ports.MarketProvider, console *notify.Console) {

	summary, err := feedback.Summary(ctx)
	if err != nil {
		slog.Error("failed to build performance summary", "err", err)
	} else {
		console.PrintPerformanceReport(summary)
	}

	curve, err := feedback.CalibrationCurve(ctx)
	if err != nil {
		slog.Error("failed to build calibration curve", "err", err)
	} else {
		console.PrintCalibrationCurve(curve)
	}

	portfolio, err := engine.Portfolio(ctx, fetchCurrentPrices(ctx, ledger, markets))
	if err != nil {
		slog.Error("failed to build portfolio summary", "err", err)
		return
	}
	console.PrintPortfolio(portfolio)
}

// fetchCurrentPrices trae el precio actual de cada posición abierta. Los
// mercados que fallan se omiten: el portfolio usa el último precio guardado.
func fetchCurrentPrices(ctx context.Context, ledger ports.LedgerStore, markets ports.MarketProvider) map[string]float64 {
	positions, err := ledger.GetOpenPositions(ctx)
	if err != nil {
		slog.Warn("failed to load open positions for pricing", "err", err)
		return nil
	}

	prices := make(map[string]float64, len(positions))
	for _, pos := range positions {
		market, err := markets.FetchMarket(ctx, pos.MarketID)
		if err != nil {
			slog.Warn("failed to refresh market price", "market", pos.MarketID, "err", err)
			continue
		}
		prices[pos.MarketID] = market.CurrentPrice
	}
	return prices
}
