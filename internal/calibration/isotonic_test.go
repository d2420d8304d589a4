package calibration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polyoracle/internal/domain"
)

func TestFitIsotonicEmpty(t *testing.T) {
	assert.Nil(t, FitIsotonic(nil, ClipMin, ClipMax))
}

func TestFitIsotonicPoolsViolators(t *testing.T) {
	// El par (0.4, 1) seguido de (0.6, 0) viola la monotonicidad y debe
	// fusionarse en un bloque con media 0.5.
	samples := []domain.CalibrationSample{
		{Prediction: 0.2, Outcome: 0},
		{Prediction: 0.4, Outcome: 1},
		{Prediction: 0.6, Outcome: 0},
		{Prediction: 0.8, Outcome: 1},
	}
	iso := FitIsotonic(samples, ClipMin, ClipMax)
	require.NotNil(t, iso)

	assert.InDelta(t, 0.01, iso.Evaluate(0.2), 1e-9) // 0 clipped up
	assert.InDelta(t, 0.5, iso.Evaluate(0.5), 1e-9)
	assert.InDelta(t, 0.99, iso.Evaluate(0.8), 1e-9) // 1 clipped down
}

func TestFitIsotonicPoolsTiedPredictions(t *testing.T) {
	// 50 forecasts todos a 0.7 con outcomes alternados: la curva debe
	// devolver la frecuencia empírica 0.5, no el primer duplicado.
	var samples []domain.CalibrationSample
	for i := 0; i < 50; i++ {
		outcome := 0.0
		if i%2 == 0 {
			outcome = 1.0
		}
		samples = append(samples, domain.CalibrationSample{Prediction: 0.7, Outcome: outcome})
	}
	iso := FitIsotonic(samples, ClipMin, ClipMax)
	require.NotNil(t, iso)

	assert.InDelta(t, 0.5, iso.Evaluate(0.7), 1e-9)
}

func TestFitIsotonicTiedPredictionsKeepWeight(t *testing.T) {
	// Dos grupos empatados: 0.3 con frecuencia 0.25 y 0.7 con 0.75. Cada
	// grupo pesa lo que pesan sus muestras, no un único punto.
	samples := []domain.CalibrationSample{
		{Prediction: 0.3, Outcome: 0},
		{Prediction: 0.3, Outcome: 0},
		{Prediction: 0.3, Outcome: 0},
		{Prediction: 0.3, Outcome: 1},
		{Prediction: 0.7, Outcome: 1},
		{Prediction: 0.7, Outcome: 1},
		{Prediction: 0.7, Outcome: 1},
		{Prediction: 0.7, Outcome: 0},
	}
	iso := FitIsotonic(samples, ClipMin, ClipMax)
	require.NotNil(t, iso)

	assert.InDelta(t, 0.25, iso.Evaluate(0.3), 1e-9)
	assert.InDelta(t, 0.75, iso.Evaluate(0.7), 1e-9)
	// Interpolación lineal entre los dos bloques.
	assert.InDelta(t, 0.5, iso.Evaluate(0.5), 1e-9)
}

func TestFitIsotonicMonotone(t *testing.T) {
	samples := []domain.CalibrationSample{
		{Prediction: 0.1, Outcome: 0},
		{Prediction: 0.3, Outcome: 1},
		{Prediction: 0.35, Outcome: 0},
		{Prediction: 0.5, Outcome: 0},
		{Prediction: 0.55, Outcome: 1},
		{Prediction: 0.7, Outcome: 1},
		{Prediction: 0.9, Outcome: 0},
		{Prediction: 0.95, Outcome: 1},
	}
	iso := FitIsotonic(samples, ClipMin, ClipMax)
	require.NotNil(t, iso)

	prev := -1.0
	for x := 0.0; x <= 1.0; x += 0.01 {
		y := iso.Evaluate(x)
		assert.GreaterOrEqual(t, y, prev, "curva no monótona en x=%.2f", x)
		prev = y
	}
}

func TestEvaluateInterpolatesBetweenBlocks(t *testing.T) {
	samples := []domain.CalibrationSample{
		{Prediction: 0.2, Outcome: 0},
		{Prediction: 0.8, Outcome: 1},
	}
	iso := FitIsotonic(samples, ClipMin, ClipMax)
	require.NotNil(t, iso)

	// Punto medio entre los bloques 0.01 y 0.99.
	assert.InDelta(t, 0.5, iso.Evaluate(0.5), 1e-9)
	// Fuera del dominio ajustado se recorta al valor del borde.
	assert.InDelta(t, 0.01, iso.Evaluate(0.0), 1e-9)
	assert.InDelta(t, 0.99, iso.Evaluate(1.0), 1e-9)
}
