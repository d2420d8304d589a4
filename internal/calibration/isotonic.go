package calibration

// isotonic.go — Isotonic regression via pool-adjacent-violators.
//
// Fits a monotonically non-decreasing stepwise-linear function from
// (prediction, outcome) pairs. Fitted values are clipped to [yMin, yMax]
// to avoid degenerate 0/1 calibrations; out-of-domain inputs clip to the
// nearest boundary value.

import (
	"sort"

	"github.com/alejandrodnm/polyoracle/internal/domain"
)

// Isotonic is a fitted monotonic calibration curve.
type Isotonic struct {
	xs []float64 // breakpoints, ascending
	ys []float64 // fitted values, non-decreasing
}

// FitIsotonic fits an isotonic regression over the samples using the
// pool-adjacent-violators algorithm. Fitted values are clipped to
// [yMin, yMax]. Returns nil if there are no samples.
func FitIsotonic(samples []domain.CalibrationSample, yMin, yMax float64) *Isotonic {
	if len(samples) == 0 {
		return nil
	}

	sorted := make([]domain.CalibrationSample, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Prediction < sorted[j].Prediction
	})

	// Each block pools adjacent samples whose means would otherwise violate
	// monotonicity. mean = sumY/weight over the pooled range [minX, maxX].
	type block struct {
		sumY, weight float64
		minX, maxX   float64
	}

	// Samples sharing a prediction average into one weighted block first,
	// so repeated predictions fit to their empirical outcome frequency
	// rather than to whichever duplicate sorted first.
	ties := make([]block, 0, len(sorted))
	for _, s := range sorted {
		if n := len(ties); n > 0 && ties[n-1].minX == s.Prediction {
			ties[n-1].sumY += s.Outcome
			ties[n-1].weight++
			continue
		}
		ties = append(ties, block{
			sumY:   s.Outcome,
			weight: 1,
			minX:   s.Prediction,
			maxX:   s.Prediction,
		})
	}

	blocks := make([]block, 0, len(ties))
	for _, b := range ties {
		blocks = append(blocks, b)
		// Pool while the previous block's mean exceeds the new one's.
		for len(blocks) >= 2 {
			n := len(blocks)
			prev, cur := blocks[n-2], blocks[n-1]
			if prev.sumY/prev.weight <= cur.sumY/cur.weight {
				break
			}
			merged := block{
				sumY:   prev.sumY + cur.sumY,
				weight: prev.weight + cur.weight,
				minX:   prev.minX,
				maxX:   cur.maxX,
			}
			blocks = append(blocks[:n-2], merged)
		}
	}

	iso := &Isotonic{}
	for _, b := range blocks {
		v := b.sumY / b.weight
		if v < yMin {
			v = yMin
		}
		if v > yMax {
			v = yMax
		}
		iso.xs = append(iso.xs, b.minX)
		iso.ys = append(iso.ys, v)
		if b.maxX > b.minX {
			iso.xs = append(iso.xs, b.maxX)
			iso.ys = append(iso.ys, v)
		}
	}
	return iso
}

// Evaluate returns the calibrated value at x, interpolating linearly
// between breakpoints and clipping outside the fitted domain.
func (iso *Isotonic) Evaluate(x float64) float64 {
	n := len(iso.xs)
	if n == 0 {
		return x
	}
	if x <= iso.xs[0] {
		return iso.ys[0]
	}
	if x >= iso.xs[n-1] {
		return iso.ys[n-1]
	}

	// First breakpoint strictly greater than x.
	i := sort.SearchFloat64s(iso.xs, x)
	if iso.xs[i] == x {
		return iso.ys[i]
	}

	x0, x1 := iso.xs[i-1], iso.xs[i]
	y0, y1 := iso.ys[i-1], iso.ys[i]
	t := (x - x0) / (x1 - x0)
	return y0 + t*(y1-y0)
}
