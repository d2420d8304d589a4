package calibration

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alejandrodnm/polyoracle/internal/domain"
	"github.com/alejandrodnm/polyoracle/internal/ports"
)

const (
	// MinSamples is the resolved-sample floor below which the calibrator
	// falls back to identity. Isotonic regression on fewer points overfits.
	MinSamples = 50

	// ClipMin and ClipMax bound every calibrated probability.
	ClipMin = 0.01
	ClipMax = 0.99
)

// Calibrator corrects raw debate probabilities against the historical
// record of resolved forecasts, per category. Curves are cached and
// refitted only when the resolved-sample count for the category changes.
type Calibrator struct {
	store  ports.ForecastStore
	logger *slog.Logger

	mu     sync.Mutex
	curves map[string]*fittedCurve
	stale  map[string]bool
}

type fittedCurve struct {
	iso     *Isotonic
	samples int // resolved-sample count at fit time
}

func NewCalibrator(store ports.ForecastStore, logger *slog.Logger) *Calibrator {
	return &Calibrator{
		store:  store,
		logger: logger,
		curves: make(map[string]*fittedCurve),
		stale:  make(map[string]bool),
	}
}

// Calibrate maps a raw probability to a calibrated one for the given
// category. With fewer than MinSamples resolved forecasts the raw value
// passes through unchanged (method "identity"); otherwise the fitted
// isotonic curve applies (method "isotonic"). Extremity shrinkage is
// applied in both cases.
func (c *Calibrator) Calibrate(ctx context.Context, raw, confidence float64, category string) (domain.CalibratedForecast, error) {
	if raw < 0 || raw > 1 {
		return domain.CalibratedForecast{}, fmt.Errorf("calibration.Calibrate: probability %.4f out of [0,1]", raw)
	}
	if confidence < 0 || confidence > 1 {
		return domain.CalibratedForecast{}, fmt.Errorf("calibration.Calibrate: confidence %.4f out of [0,1]", confidence)
	}

	count, err := c.store.CountResolvedSamples(ctx, category)
	if err != nil {
		return domain.CalibratedForecast{}, fmt.Errorf("calibration.Calibrate: %w", err)
	}

	out := domain.CalibratedForecast{
		Raw:               raw,
		Confidence:        confidence,
		HistoricalSamples: count,
	}

	if count < MinSamples {
		out.Calibrated = shrinkExtremes(raw, confidence)
		out.Method = "identity"
		return out, nil
	}

	iso, err := c.curveFor(ctx, category, count)
	if err != nil {
		return domain.CalibratedForecast{}, err
	}

	out.Calibrated = shrinkExtremes(clip(iso.Evaluate(raw)), confidence)
	out.Method = "isotonic"
	return out, nil
}

// MarkStale forces a refit of the category's curve on the next Calibrate,
// even if the sample count has not moved. The feedback loop calls this
// when enough new resolutions have accumulated.
func (c *Calibrator) MarkStale(category string) {
	c.mu.Lock()
	c.stale[category] = true
	c.mu.Unlock()
}

// curveFor returns the cached curve for the category, refitting it when
// the resolved-sample count differs from the fit or the curve was marked
// stale. The mutex covers the whole fetch+fit so concurrent callers never
// fit the same curve twice.
func (c *Calibrator) curveFor(ctx context.Context, category string, count int) (*Isotonic, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cached, ok := c.curves[category]
	if ok && cached.samples == count && !c.stale[category] {
		return cached.iso, nil
	}

	samples, err := c.store.GetResolvedSamples(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("calibration.curveFor: %w", err)
	}

	iso := FitIsotonic(samples, ClipMin, ClipMax)
	if iso == nil {
		return nil, fmt.Errorf("calibration.curveFor: no samples for category %q", category)
	}

	c.curves[category] = &fittedCurve{iso: iso, samples: count}
	delete(c.stale, category)

	c.logger.Info("curva de calibración ajustada",
		"category", category,
		"samples", len(samples))
	return iso, nil
}

// shrinkExtremes pulls extreme probabilities (>0.9 or <0.1) toward 0.5,
// proportionally to how little confidence backs them. A fully confident
// forecast is left untouched.
func shrinkExtremes(p, confidence float64) float64 {
	if p <= 0.9 && p >= 0.1 {
		return p
	}
	shrink := 0.1 * (1 - confidence)
	return 0.5 + (p-0.5)*(1-shrink)
}

func clip(p float64) float64 {
	if p < ClipMin {
		return ClipMin
	}
	if p > ClipMax {
		return ClipMax
	}
	return p
}
