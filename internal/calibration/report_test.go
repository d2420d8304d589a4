package calibration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalibrationCurveBuckets(t *testing.T) {
	store := &fakeStore{}
	// Bucket 0.2-0.3: cuatro forecasts a 0.25, uno resuelve YES.
	seedResolved(store, "politics", 4,
		func(i int) float64 { return 0.25 },
		func(i int) bool { return i == 0 })
	// Bucket 0.7-0.8: dos forecasts a 0.75, ambos YES.
	seedResolved(store, "crypto", 2,
		func(i int) float64 { return 0.75 },
		func(i int) bool { return true })

	fl, _ := newTestLoop(store)
	curve, err := fl.CalibrationCurve(context.Background())
	require.NoError(t, err)

	require.Len(t, curve, 2)

	assert.Equal(t, "0.2-0.3", curve[0].Range)
	assert.InDelta(t, 0.25, curve[0].PredictedMean, 1e-9)
	assert.InDelta(t, 0.25, curve[0].ActualFreq, 1e-9)
	assert.Equal(t, 4, curve[0].Count)

	assert.Equal(t, "0.7-0.8", curve[1].Range)
	assert.InDelta(t, 0.75, curve[1].PredictedMean, 1e-9)
	assert.InDelta(t, 1.0, curve[1].ActualFreq, 1e-9)
	assert.Equal(t, 2, curve[1].Count)
}

func TestCalibrationCurveBoundaryGoesToLastBucket(t *testing.T) {
	store := &fakeStore{}
	seedResolved(store, "sports", 1,
		func(i int) float64 { return 1.0 },
		func(i int) bool { return true })

	fl, _ := newTestLoop(store)
	curve, err := fl.CalibrationCurve(context.Background())
	require.NoError(t, err)

	require.Len(t, curve, 1)
	assert.Equal(t, "0.9-1.0", curve[0].Range)
}

func TestCalibrationCurveEmpty(t *testing.T) {
	fl, _ := newTestLoop(&fakeStore{})
	curve, err := fl.CalibrationCurve(context.Background())
	require.NoError(t, err)
	assert.Empty(t, curve)
}
