package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/alejandrodnm/polyoracle/internal/adapters/notify"
	"github.com/alejandrodnm/polyoracle/internal/calibration"
	"github.com/alejandrodnm/polyoracle/internal/execution"
	"github.com/alejandrodnm/polyoracle/internal/ports"
)

// stopFile detiene el loop sin señal: útil cuando el bot corre en tmux.
const stopFile = "STOP"

// maxForecastsPerCycle limita cuántos mercados nuevos reciben forecast por
// ciclo. El servicio de debate es lento y caro; los mercados vienen
// ordenados por liquidez, así que cortar aquí ya prioriza bien.
const maxForecastsPerCycle = 5

type app struct {
	markets    ports.MarketProvider
	source     ports.ForecastSource
	forecasts  ports.ForecastStore
	calibrator *calibration.Calibrator
	analyzer   *calibration.Analyzer
	feedback   *calibration.FeedbackLoop
	engine     *execution.Engine
	resolver   *execution.Resolver
	console    *notify.Console
	mode       string
}

// run ejecuta ciclos resolve-then-trade hasta ctx.Done o el STOP file.
func (a *app) run(ctx context.Context, interval time.Duration, once bool) error {
	slog.Info("trading loop started — press Ctrl+C or create STOP file to exit",
		"mode", a.mode, "interval", interval)

	a.runCycle(ctx)
	if once {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("trading loop stopped (signal)")
			return nil
		case <-ticker.C:
			if _, err := os.Stat(stopFile); err == nil {
				slog.Info("trading loop stopped (STOP file found)", "file", stopFile)
				return nil
			}
			a.runCycle(ctx)
		}
	}
}

// runCycle es un ciclo completo: primero liquidar lo resuelto, después
// buscar nuevos trades con el bankroll ya actualizado.
func (a *app) runCycle(ctx context.Context) {
	status := notify.CycleStatus{Mode: a.mode}

	resolution, err := a.resolver.RunCycle(ctx)
	if err != nil {
		slog.Error("resolution cycle failed", "err", err)
		status.Warnings = append(status.Warnings, fmt.Sprintf("resolution: %v", err))
	}
	status.MarketsResolved = resolution.Resolved
	status.ResolutionPnL = resolution.PnL

	markets, err := a.markets.FetchActiveMarkets(ctx)
	if err != nil {
		slog.Error("failed to fetch markets", "err", err)
		status.Warnings = append(status.Warnings, fmt.Sprintf("fetch markets: %v", err))
		a.console.PrintCycleStatus(status)
		return
	}
	status.MarketsScanned = len(markets)

	for _, market := range markets {
		if ctx.Err() != nil {
			return
		}
		if status.ForecastsMade >= maxForecastsPerCycle {
			break
		}

		pending, err := a.hasPendingForecast(ctx, market.ID)
		if err != nil {
			slog.Warn("forecast lookup failed", "market", market.ID, "err", err)
			continue
		}
		if pending {
			continue
		}

		raw, err := a.source.Forecast(ctx, market)
		if err != nil {
			slog.Warn("forecast failed", "market", market.ID, "err", err)
			continue
		}
		status.ForecastsMade++

		cal, err := a.calibrator.Calibrate(ctx, raw.Probability, raw.Confidence, market.Category)
		if err != nil {
			slog.Warn("calibration failed", "market", market.ID, "err", err)
			continue
		}

		analysis, err := a.analyzer.Analyze(cal, market.CurrentPrice, market.Liquidity)
		if err != nil {
			slog.Warn("edge analysis failed", "market", market.ID, "err", err)
			continue
		}

		if _, err := a.feedback.RecordForecast(ctx, market, raw, cal, analysis); err != nil {
			slog.Error("failed to record forecast", "market", market.ID, "err", err)
			status.Warnings = append(status.Warnings, fmt.Sprintf("record %s: %v", market.ID, err))
			continue
		}

		result, err := a.engine.Execute(ctx, market, analysis, cal.Calibrated)
		if err != nil {
			slog.Error("execution failed", "market", market.ID, "err", err)
			status.Warnings = append(status.Warnings, fmt.Sprintf("execute %s: %v", market.ID, err))
			continue
		}

		switch {
		case result == nil:
			status.Skipped++
		case result.Success:
			status.TradesExecuted++
		default:
			status.Skipped++
			status.Warnings = append(status.Warnings, fmt.Sprintf("%s: %s", market.ID, result.Message))
		}
	}

	if bankroll, err := a.engine.Bankroll(ctx); err == nil {
		status.Bankroll = bankroll
	}

	a.console.PrintCycleStatus(status)
}

// hasPendingForecast devuelve true si el mercado ya tiene un forecast sin
// resolver. Un forecast por mercado: se re-evalúa cuando resuelve.
func (a *app) hasPendingForecast(ctx context.Context, marketID string) (bool, error) {
	latest, err := a.forecasts.GetLatestForecast(ctx, marketID)
	if err != nil {
		return false, err
	}
	return latest != nil && !latest.Resolved, nil
}
