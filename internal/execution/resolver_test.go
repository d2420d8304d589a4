package execution

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polyoracle/internal/calibration"
	"github.com/alejandrodnm/polyoracle/internal/domain"
)

// fakeForecasts is a minimal in-memory ForecastStore for resolver tests.
type fakeForecasts struct {
	mu   sync.Mutex
	recs []domain.ForecastRecord
}

func (s *fakeForecasts) SaveForecast(_ context.Context, f domain.ForecastRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, f)
	return f.ID, nil
}

func (s *fakeForecasts) GetLatestForecast(_ context.Context, marketID string) (*domain.ForecastRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.recs) - 1; i >= 0; i-- {
		if s.recs[i].MarketID == marketID {
			rec := s.recs[i]
			return &rec, nil
		}
	}
	return nil, nil
}

func (s *fakeForecasts) MarkForecastResolved(_ context.Context, id string, outcome bool, brierRaw, brierCalibrated float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.recs {
		if s.recs[i].ID == id {
			s.recs[i].Resolved = true
			s.recs[i].Outcome = &outcome
			s.recs[i].BrierScoreRaw = &brierRaw
			s.recs[i].BrierScoreCalibrated = &brierCalibrated
		}
	}
	return nil
}

func (s *fakeForecasts) GetResolvedSamples(_ context.Context, _ string) ([]domain.CalibrationSample, error) {
	return nil, nil
}

func (s *fakeForecasts) CountResolvedSamples(_ context.Context, _ string) (int, error) {
	return 0, nil
}

func (s *fakeForecasts) GetUnresolvedMarketIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, r := range s.recs {
		if !r.Resolved && !seen[r.MarketID] {
			seen[r.MarketID] = true
			out = append(out, r.MarketID)
		}
	}
	return out, nil
}

func (s *fakeForecasts) GetResolvedForecasts(_ context.Context) ([]domain.ForecastRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ForecastRecord
	for _, r := range s.recs {
		if r.Resolved {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeForecasts) CountForecasts(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recs), nil
}

type fakeOracle struct {
	outcomes map[string]bool
	err      error
}

func (o *fakeOracle) CheckResolutions(_ context.Context, _ []string) (map[string]bool, error) {
	return o.outcomes, o.err
}

func unresolvedForecast(id, marketID string) domain.ForecastRecord {
	return domain.ForecastRecord{
		ID:                    id,
		MarketID:              marketID,
		Category:              "politics",
		Timestamp:             time.Now().UTC(),
		RawProbability:        0.7,
		CalibratedProbability: 0.65,
	}
}

func newTestResolver(oracle *fakeOracle, ledger *fakeLedger, forecasts *fakeForecasts) *Resolver {
	cal := calibration.NewCalibrator(forecasts, newTestLogger())
	fb := calibration.NewFeedbackLoop(forecasts, cal, newTestLogger())
	return NewResolver(oracle, ledger, forecasts, fb, 50, newTestLogger())
}

func TestRunCycleSettlesPositionAndForecast(t *testing.T) {
	ledger := newFakeLedger()
	ledger.positions["m1"] = domain.Position{
		MarketID:  "m1",
		Direction: domain.BuyYes,
		NumShares: 10,
		AmountUSD: 5,
	}
	forecasts := &fakeForecasts{recs: []domain.ForecastRecord{unresolvedForecast("f1", "m1")}}
	oracle := &fakeOracle{outcomes: map[string]bool{"m1": true}}

	r := newTestResolver(oracle, ledger, forecasts)
	summary, err := r.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Checked)
	assert.Equal(t, 1, summary.Resolved)
	assert.InDelta(t, 5.0, summary.PnL, 1e-9) // 10 shares · $1 − $5

	pos := ledger.positions["m1"]
	assert.False(t, pos.IsOpen())
	assert.Zero(t, pos.AmountUSD)

	rec, err := forecasts.GetLatestForecast(context.Background(), "m1")
	require.NoError(t, err)
	assert.True(t, rec.Resolved)

	// El ledger estaba vacío: las stats arrancan del bankroll inicial.
	stats := ledger.stats[dateKey(time.Now())]
	assert.InDelta(t, 55.0, stats.EndingBankroll, 1e-9)
	assert.Equal(t, 1, stats.TradesWon)
}

func TestRunCycleLosingPosition(t *testing.T) {
	ledger := newFakeLedger()
	ledger.positions["m1"] = domain.Position{
		MarketID:  "m1",
		Direction: domain.BuyYes,
		NumShares: 10,
		AmountUSD: 5,
	}
	forecasts := &fakeForecasts{}
	oracle := &fakeOracle{outcomes: map[string]bool{"m1": false}}

	r := newTestResolver(oracle, ledger, forecasts)
	summary, err := r.RunCycle(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, -5.0, summary.PnL, 1e-9)
	stats := ledger.stats[dateKey(time.Now())]
	assert.InDelta(t, 45.0, stats.EndingBankroll, 1e-9)
	assert.Zero(t, stats.TradesWon)
}

func TestRunCycleIdempotent(t *testing.T) {
	ledger := newFakeLedger()
	ledger.positions["m1"] = domain.Position{
		MarketID:  "m1",
		Direction: domain.BuyNo,
		NumShares: 8,
		AmountUSD: 4,
	}
	forecasts := &fakeForecasts{recs: []domain.ForecastRecord{unresolvedForecast("f1", "m1")}}
	oracle := &fakeOracle{outcomes: map[string]bool{"m1": false}}

	r := newTestResolver(oracle, ledger, forecasts)
	first, err := r.RunCycle(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 4.0, first.PnL, 1e-9)

	// Segunda pasada: la posición está cerrada y el forecast resuelto, no
	// queda nada que comprobar.
	second, err := r.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second.Checked)
	assert.Zero(t, second.PnL)

	stats := ledger.stats[dateKey(time.Now())]
	assert.InDelta(t, 54.0, stats.EndingBankroll, 1e-9)
}

func TestRunCycleForecastWithoutPosition(t *testing.T) {
	ledger := newFakeLedger()
	forecasts := &fakeForecasts{recs: []domain.ForecastRecord{unresolvedForecast("f1", "m1")}}
	oracle := &fakeOracle{outcomes: map[string]bool{"m1": true}}

	r := newTestResolver(oracle, ledger, forecasts)
	summary, err := r.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Resolved)
	assert.Zero(t, summary.PnL)

	rec, err := forecasts.GetLatestForecast(context.Background(), "m1")
	require.NoError(t, err)
	assert.True(t, rec.Resolved)
}

func TestRunCyclePartialOracleResults(t *testing.T) {
	ledger := newFakeLedger()
	forecasts := &fakeForecasts{recs: []domain.ForecastRecord{
		unresolvedForecast("f1", "m1"),
		unresolvedForecast("f2", "m2"),
	}}
	oracle := &fakeOracle{outcomes: map[string]bool{"m2": true}}

	r := newTestResolver(oracle, ledger, forecasts)
	summary, err := r.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Checked)
	assert.Equal(t, 1, summary.Resolved)

	rec, err := forecasts.GetLatestForecast(context.Background(), "m1")
	require.NoError(t, err)
	assert.False(t, rec.Resolved, "el mercado sin resolver debe quedar pendiente")
}

func TestRunCycleOracleFailureLeavesNoState(t *testing.T) {
	ledger := newFakeLedger()
	forecasts := &fakeForecasts{recs: []domain.ForecastRecord{unresolvedForecast("f1", "m1")}}
	oracle := &fakeOracle{err: errors.New("gamma down")}

	r := newTestResolver(oracle, ledger, forecasts)
	summary, err := r.RunCycle(context.Background())
	require.Error(t, err)

	assert.Zero(t, summary.Checked)
	assert.Zero(t, summary.Resolved)

	rec, err := forecasts.GetLatestForecast(context.Background(), "m1")
	require.NoError(t, err)
	assert.False(t, rec.Resolved)
}
