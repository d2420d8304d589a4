package calibration

import (
	"context"
	"fmt"
)

const curveBuckets = 10

// CurveBucket es un punto de la curva de fiabilidad: la media de las
// predicciones del bucket frente a la frecuencia real de YES.
type CurveBucket struct {
	Range         string // "0.3-0.4"
	PredictedMean float64
	ActualFreq    float64
	Count         int
}

// CalibrationCurve agrupa las probabilidades calibradas resueltas en 10
// buckets uniformes y devuelve los buckets no vacíos en orden. Una curva
// bien calibrada tiene PredictedMean ≈ ActualFreq en cada bucket.
func (f *FeedbackLoop) CalibrationCurve(ctx context.Context) ([]CurveBucket, error) {
	resolved, err := f.store.GetResolvedForecasts(ctx)
	if err != nil {
		return nil, fmt.Errorf("calibration.CalibrationCurve: %w", err)
	}

	type acc struct {
		predSum float64
		yes     int
		count   int
	}
	accs := make([]acc, curveBuckets)

	for _, rec := range resolved {
		if rec.Outcome == nil {
			continue
		}
		p := rec.CalibratedProbability
		idx := int(p * curveBuckets)
		if idx >= curveBuckets { // p == 1.0 cae en el último bucket
			idx = curveBuckets - 1
		}
		accs[idx].predSum += p
		accs[idx].count++
		if *rec.Outcome {
			accs[idx].yes++
		}
	}

	var curve []CurveBucket
	for i, a := range accs {
		if a.count == 0 {
			continue
		}
		lower := float64(i) / curveBuckets
		upper := float64(i+1) / curveBuckets
		curve = append(curve, CurveBucket{
			Range:         fmt.Sprintf("%.1f-%.1f", lower, upper),
			PredictedMean: a.predSum / float64(a.count),
			ActualFreq:    float64(a.yes) / float64(a.count),
			Count:         a.count,
		})
	}
	return curve, nil
}
