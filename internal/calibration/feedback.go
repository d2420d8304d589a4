package calibration

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/alejandrodnm/polyoracle/internal/domain"
	"github.com/alejandrodnm/polyoracle/internal/ports"
)

// RecalibrationThreshold is how many new resolutions a category needs
// before its calibration curve is forced stale.
const RecalibrationThreshold = 10

// ResolutionResult is the outcome of processing one market resolution.
// Failures (forecast missing, already resolved, storage error) are
// reported here rather than as errors so the resolver can keep going.
type ResolutionResult struct {
	Success         bool
	Err             string
	MarketID        string
	Outcome         bool
	BrierRaw        float64
	BrierCalibrated float64
	Improvement     float64 // raw − calibrated; positive means calibration helped
}

// CategoryPerformance son los Brier scores agregados de una categoría.
type CategoryPerformance struct {
	Count           int
	BrierRaw        float64
	BrierCalibrated float64
	Improvement     float64
}

// PerformanceSummary agrega el rendimiento de todos los forecasts.
type PerformanceSummary struct {
	TotalForecasts     int
	ResolvedForecasts  int
	PendingForecasts   int
	BrierRaw           float64
	BrierCalibrated    float64
	Improvement        float64
	WinRate            float64
	AvgEdge            float64
	MarketBrier        float64 // Brier del precio de mercado en el momento del forecast
	ValueAddedVsMarket float64 // MarketBrier − BrierCalibrated
	ByCategory         map[string]CategoryPerformance
}

// FeedbackLoop cierra el ciclo forecast → resolución → recalibración:
// registra cada forecast, anota el outcome cuando el mercado resuelve y
// marca la curva de su categoría como stale cuando acumula suficientes
// resoluciones nuevas.
type FeedbackLoop struct {
	store      ports.ForecastStore
	calibrator *Calibrator
	logger     *slog.Logger

	mu         sync.Mutex
	sinceRecal map[string]int
}

func NewFeedbackLoop(store ports.ForecastStore, calibrator *Calibrator, logger *slog.Logger) *FeedbackLoop {
	return &FeedbackLoop{
		store:      store,
		calibrator: calibrator,
		logger:     logger,
		sinceRecal: make(map[string]int),
	}
}

// RecordForecast persists a forecast row for the market, TRADE and SKIP
// alike. Returns the stored record's ID.
func (fl *FeedbackLoop) RecordForecast(ctx context.Context, market domain.Market, raw domain.RawForecast, cal domain.CalibratedForecast, analysis domain.EdgeAnalysis) (string, error) {
	rec := domain.ForecastRecord{
		ID:                    uuid.NewString(),
		MarketID:              market.ID,
		Question:              market.Question,
		Category:              market.Category,
		Timestamp:             raw.CreatedAt,
		RawProbability:        raw.Probability,
		CalibratedProbability: cal.Calibrated,
		Confidence:            cal.Confidence,
		Reasoning:             raw.Reasoning,
		MarketPriceAtForecast: market.CurrentPrice,
		Edge:                  analysis.RawEdge,
		RecommendedAction:     analysis.RecommendedAction,
	}

	id, err := fl.store.SaveForecast(ctx, rec)
	if err != nil {
		return "", fmt.Errorf("calibration.RecordForecast: %w", err)
	}

	fl.logger.Info("forecast registrado",
		"market_id", market.ID,
		"raw", fmt.Sprintf("%.1f%%", raw.Probability*100),
		"calibrated", fmt.Sprintf("%.1f%%", cal.Calibrated*100),
		"action", string(analysis.RecommendedAction))
	return id, nil
}

// ProcessResolution annotates the market's latest forecast with the
// outcome and both Brier scores. The row is mutated at most once: a
// missing or already-resolved forecast comes back as a failed result,
// not an error.
func (fl *FeedbackLoop) ProcessResolution(ctx context.Context, marketID string, outcome bool) ResolutionResult {
	rec, err := fl.store.GetLatestForecast(ctx, marketID)
	if err != nil {
		return ResolutionResult{MarketID: marketID, Err: err.Error()}
	}
	if rec == nil {
		fl.logger.Warn("resolución sin forecast", "market_id", marketID)
		return ResolutionResult{MarketID: marketID, Err: "forecast not found"}
	}
	if rec.Resolved {
		return ResolutionResult{MarketID: marketID, Err: "forecast already resolved"}
	}

	brierRaw := domain.BrierScore(rec.RawProbability, outcome)
	brierCal := domain.BrierScore(rec.CalibratedProbability, outcome)

	if err := fl.store.MarkForecastResolved(ctx, rec.ID, outcome, brierRaw, brierCal); err != nil {
		return ResolutionResult{MarketID: marketID, Err: err.Error()}
	}

	fl.logger.Info("forecast resuelto",
		"market_id", marketID,
		"outcome", outcome,
		"brier_raw", fmt.Sprintf("%.4f", brierRaw),
		"brier_calibrated", fmt.Sprintf("%.4f", brierCal))

	fl.bumpCategory(rec.Category)

	return ResolutionResult{
		Success:         true,
		MarketID:        marketID,
		Outcome:         outcome,
		BrierRaw:        brierRaw,
		BrierCalibrated: brierCal,
		Improvement:     brierRaw - brierCal,
	}
}

// bumpCategory cuenta resoluciones por categoría y, al llegar al umbral,
// fuerza el refit de la curva y reinicia el contador.
func (fl *FeedbackLoop) bumpCategory(category string) {
	fl.mu.Lock()
	fl.sinceRecal[category]++
	n := fl.sinceRecal[category]
	if n >= RecalibrationThreshold {
		fl.sinceRecal[category] = 0
	}
	fl.mu.Unlock()

	if n >= RecalibrationThreshold {
		fl.logger.Info("umbral de recalibración alcanzado",
			"category", category,
			"new_resolutions", n)
		fl.calibrator.MarkStale(category)
	}
}

// Summary aggregates Brier scores, win rate and value added over the
// whole forecast history.
func (fl *FeedbackLoop) Summary(ctx context.Context) (PerformanceSummary, error) {
	total, err := fl.store.CountForecasts(ctx)
	if err != nil {
		return PerformanceSummary{}, fmt.Errorf("calibration.Summary: %w", err)
	}

	resolved, err := fl.store.GetResolvedForecasts(ctx)
	if err != nil {
		return PerformanceSummary{}, fmt.Errorf("calibration.Summary: %w", err)
	}

	s := PerformanceSummary{
		TotalForecasts:    total,
		ResolvedForecasts: len(resolved),
		PendingForecasts:  total - len(resolved),
		ByCategory:        make(map[string]CategoryPerformance),
	}
	if len(resolved) == 0 {
		return s, nil
	}

	type acc struct {
		count              int
		brierRaw, brierCal float64
	}
	byCat := make(map[string]*acc)

	var sumRaw, sumCal, sumEdge, sumMarket float64
	wins := 0
	for _, r := range resolved {
		if r.BrierScoreRaw != nil {
			sumRaw += *r.BrierScoreRaw
		}
		if r.BrierScoreCalibrated != nil {
			sumCal += *r.BrierScoreCalibrated
		}
		if r.Edge < 0 {
			sumEdge += -r.Edge
		} else {
			sumEdge += r.Edge
		}
		if r.Outcome != nil {
			sumMarket += domain.BrierScore(r.MarketPriceAtForecast, *r.Outcome)
			if (*r.Outcome && r.CalibratedProbability > 0.5) ||
				(!*r.Outcome && r.CalibratedProbability < 0.5) {
				wins++
			}
		}

		a := byCat[r.Category]
		if a == nil {
			a = &acc{}
			byCat[r.Category] = a
		}
		a.count++
		if r.BrierScoreRaw != nil {
			a.brierRaw += *r.BrierScoreRaw
		}
		if r.BrierScoreCalibrated != nil {
			a.brierCal += *r.BrierScoreCalibrated
		}
	}

	n := float64(len(resolved))
	s.BrierRaw = sumRaw / n
	s.BrierCalibrated = sumCal / n
	s.Improvement = s.BrierRaw - s.BrierCalibrated
	s.WinRate = float64(wins) / n
	s.AvgEdge = sumEdge / n
	s.MarketBrier = sumMarket / n
	s.ValueAddedVsMarket = s.MarketBrier - s.BrierCalibrated

	for cat, a := range byCat {
		cn := float64(a.count)
		s.ByCategory[cat] = CategoryPerformance{
			Count:           a.count,
			BrierRaw:        a.brierRaw / cn,
			BrierCalibrated: a.brierCal / cn,
			Improvement:     (a.brierRaw - a.brierCal) / cn,
		}
	}
	return s, nil
}
