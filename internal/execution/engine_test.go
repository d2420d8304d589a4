package execution

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polyoracle/internal/domain"
)

// fakeLedger is an in-memory LedgerStore mirroring the SQLite adapter's
// settlement semantics.
type fakeLedger struct {
	mu        sync.Mutex
	trades    []domain.Trade
	positions map[string]domain.Position
	stats     map[string]domain.DailyStats
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		positions: make(map[string]domain.Position),
		stats:     make(map[string]domain.DailyStats),
	}
}

func dateKey(t time.Time) string { return t.UTC().Format("2006-01-02") }

func (l *fakeLedger) SaveTrade(_ context.Context, t domain.Trade) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.trades = append(l.trades, t)
	return nil
}

func (l *fakeLedger) GetPosition(_ context.Context, marketID string) (*domain.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.positions[marketID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (l *fakeLedger) GetOpenPositions(_ context.Context) ([]domain.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.Position
	for _, p := range l.positions {
		if p.IsOpen() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (l *fakeLedger) UpsertPosition(_ context.Context, p domain.Position) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.positions[p.MarketID] = p
	return nil
}

func (l *fakeLedger) GetDailyStats(_ context.Context, date time.Time) (*domain.DailyStats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.stats[dateKey(date)]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (l *fakeLedger) UpsertDailyStats(_ context.Context, s domain.DailyStats) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stats[dateKey(s.Date)] = s
	return nil
}

func (l *fakeLedger) ApplySettlement(_ context.Context, marketID string, pnl, fallbackBankroll float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if p, ok := l.positions[marketID]; ok {
		p.NumShares = 0
		p.AmountUSD = 0
		p.UpdatedAt = time.Now().UTC()
		l.positions[marketID] = p
	}

	key := dateKey(time.Now())
	s, ok := l.stats[key]
	if !ok {
		s = domain.DailyStats{
			Date:             time.Now().UTC(),
			StartingBankroll: fallbackBankroll,
			EndingBankroll:   fallbackBankroll,
		}
	}
	s.EndingBankroll += pnl
	s.GrossPnL += pnl
	s.NetPnL += pnl
	if pnl > 0 {
		s.TradesWon++
	}
	l.stats[key] = s
	return nil
}

func (l *fakeLedger) CurrentBankroll(_ context.Context) (float64, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	latest := ""
	for k := range l.stats {
		if k > latest {
			latest = k
		}
	}
	if latest == "" {
		return 0, false, nil
	}
	return l.stats[latest].EndingBankroll, true, nil
}

// fakeSubmitter captura la orden enviada y devuelve lo configurado.
type fakeSubmitter struct {
	mu   sync.Mutex
	reqs []domain.OrderRequest
	err  error
}

func (s *fakeSubmitter) SubmitOrder(_ context.Context, req domain.OrderRequest) (domain.PlacedOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return domain.PlacedOrder{}, s.err
	}
	s.reqs = append(s.reqs, req)
	return domain.PlacedOrder{OrderID: "ord-1", Status: "LIVE"}, nil
}

func newTestPaperEngine(ledger *fakeLedger) *Engine {
	return NewPaperEngine(ledger, testSizer(), testRiskManager(), 50, newTestLogger())
}

func tradableMarket() domain.Market {
	return domain.Market{
		ID:           "mkt-1",
		Question:     "Will it rain tomorrow?",
		Category:     "weather",
		CurrentPrice: 0.40,
		Liquidity:    5000,
		YesTokenID:   "tok-yes",
		NoTokenID:    "tok-no",
		Active:       true,
	}
}

func tradeAnalysis(direction domain.Direction) domain.EdgeAnalysis {
	return domain.EdgeAnalysis{
		Direction:         direction,
		RecommendedAction: domain.ActionTrade,
		HasActionableEdge: true,
	}
}

func TestExecuteSkipRecommendation(t *testing.T) {
	ledger := newFakeLedger()
	e := newTestPaperEngine(ledger)

	analysis := domain.EdgeAnalysis{RecommendedAction: domain.ActionSkip}
	res, err := e.Execute(context.Background(), tradableMarket(), analysis, 0.55)
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Empty(t, ledger.trades)
}

func TestExecuteBelowMinimumSkips(t *testing.T) {
	ledger := newFakeLedger()
	e := newTestPaperEngine(ledger)

	// Edge diminuto: kelly fraccional no llega al min bet con bankroll 50.
	market := tradableMarket()
	market.CurrentPrice = 0.50
	res, err := e.Execute(context.Background(), market, tradeAnalysis(domain.BuyYes), 0.55)
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Empty(t, ledger.trades)
}

func TestExecutePaperTradeFromFreshBankroll(t *testing.T) {
	ledger := newFakeLedger()
	e := newTestPaperEngine(ledger)

	// Bankroll vacío → arranca en el inicial (50). Con forecast 0.55 y
	// precio 0.40: kelly 0.25, apuesta 1.875, 4.6875 shares.
	res, err := e.Execute(context.Background(), tradableMarket(), tradeAnalysis(domain.BuyYes), 0.55)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.TradeID)

	require.Len(t, ledger.trades, 1)
	trade := ledger.trades[0]
	assert.Equal(t, domain.TradeFilled, trade.Status)
	assert.InDelta(t, 1.875, trade.AmountUSD, 1e-9)
	assert.InDelta(t, 4.6875, trade.NumShares, 1e-9)
	assert.InDelta(t, 0.40, trade.EntryPrice, 1e-9)
	assert.Empty(t, trade.OrderID)

	pos := ledger.positions["mkt-1"]
	assert.InDelta(t, 4.6875, pos.NumShares, 1e-9)
	assert.InDelta(t, 0.40, pos.AvgEntryPrice, 1e-9)

	stats := ledger.stats[dateKey(time.Now())]
	assert.Equal(t, 1, stats.TradesExecuted)
	assert.InDelta(t, 50.0, stats.StartingBankroll, 1e-9)
}

func TestExecuteAveragesIntoExistingPosition(t *testing.T) {
	ledger := newFakeLedger()
	ledger.positions["mkt-1"] = domain.Position{
		MarketID:      "mkt-1",
		Direction:     domain.BuyYes,
		NumShares:     10,
		AmountUSD:     4,
		AvgEntryPrice: 0.40,
	}
	e := NewPaperEngine(ledger, testSizer(), testRiskManager(), 100, newTestLogger())

	res, err := e.Execute(context.Background(), tradableMarket(), tradeAnalysis(domain.BuyYes), 0.55)
	require.NoError(t, err)
	require.NotNil(t, res)
	require.True(t, res.Success, res.Message)

	pos := ledger.positions["mkt-1"]
	// 100 de bankroll → apuesta 3.75 (9.375 shares a 0.40).
	assert.InDelta(t, 19.375, pos.NumShares, 1e-9)
	assert.InDelta(t, 7.75, pos.AmountUSD, 1e-9)
	assert.InDelta(t, 0.40, pos.AvgEntryPrice, 1e-9)
}

func TestExecuteRiskRejectionMutatesNothing(t *testing.T) {
	ledger := newFakeLedger()
	for _, p := range openPositions(8) {
		ledger.positions[p.MarketID] = p
	}
	e := newTestPaperEngine(ledger)

	res, err := e.Execute(context.Background(), tradableMarket(), tradeAnalysis(domain.BuyYes), 0.55)
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "Risk check failed")
	assert.Empty(t, ledger.trades)
	assert.NotContains(t, ledger.positions, "mkt-1")
	assert.Empty(t, ledger.stats)
}

func TestLiveEngineSubmitsBeforePersisting(t *testing.T) {
	ledger := newFakeLedger()
	submitter := &fakeSubmitter{err: errors.New("venue rejected order")}
	e := NewLiveEngine(ledger, testSizer(), testRiskManager(), submitter, 50, newTestLogger())

	res, err := e.Execute(context.Background(), tradableMarket(), tradeAnalysis(domain.BuyYes), 0.55)
	require.NoError(t, err)
	require.NotNil(t, res)

	// El rechazo del exchange es un resultado de negocio, no un error.
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "venue rejected order")

	// Si el exchange rechaza, no queda rastro en el ledger.
	assert.Empty(t, ledger.trades)
	assert.Empty(t, ledger.positions)
}

func TestLiveEngineRecordsOrderID(t *testing.T) {
	ledger := newFakeLedger()
	submitter := &fakeSubmitter{}
	e := NewLiveEngine(ledger, testSizer(), testRiskManager(), submitter, 50, newTestLogger())

	res, err := e.Execute(context.Background(), tradableMarket(), tradeAnalysis(domain.BuyNo), 0.30)
	require.NoError(t, err)
	require.NotNil(t, res)
	require.True(t, res.Success, res.Message)

	require.Len(t, submitter.reqs, 1)
	req := submitter.reqs[0]
	assert.Equal(t, "tok-no", req.TokenID)
	// El token NO cotiza al complemento del precio YES.
	assert.InDelta(t, 0.60, req.Price, 1e-9)

	require.Len(t, ledger.trades, 1)
	assert.Equal(t, "ord-1", ledger.trades[0].OrderID)
	// La orden GTC aceptada queda PENDING hasta confirmar el fill.
	assert.Equal(t, domain.TradePending, ledger.trades[0].Status)
}

func TestExecuteDepletedBankrollDoesNotReset(t *testing.T) {
	ledger := newFakeLedger()
	ledger.stats["2026-08-27"] = domain.DailyStats{
		Date:             time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC),
		StartingBankroll: 50,
		EndingBankroll:   2,
		NetPnL:           -48,
	}
	e := NewPaperEngine(ledger, testSizer(), testRiskManager(), 50, newTestLogger())

	// Bankroll casi quebrado: no se resucita el inicial. Con $2 la apuesta
	// cae por debajo del mínimo; con los $50 iniciales se habría operado.
	res, err := e.Execute(context.Background(), tradableMarket(), tradeAnalysis(domain.BuyYes), 0.55)
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Empty(t, ledger.trades)
}
