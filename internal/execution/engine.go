package execution

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/polyoracle/internal/domain"
	"github.com/alejandrodnm/polyoracle/internal/ports"
)

// Engine ejecuta trades a partir de un análisis de edge: dimensiona la
// apuesta, valida riesgo y persiste trade y posición. En modo paper el
// fill es inmediato al precio actual; en modo live el trade solo se
// persiste después de que el exchange acepte la orden.
type Engine struct {
	ledger ports.LedgerStore
	sizer  *Sizer
	risk   *RiskManager
	logger *slog.Logger

	// submitter nil => paper trading.
	submitter ports.OrderSubmitter

	initialBankroll float64

	// Serializa lectura de posiciones + escritura para que dos trades
	// concurrentes no pisen la misma posición.
	mu sync.Mutex
}

func NewPaperEngine(ledger ports.LedgerStore, sizer *Sizer, risk *RiskManager, initialBankroll float64, logger *slog.Logger) *Engine {
	return &Engine{
		ledger:          ledger,
		sizer:           sizer,
		risk:            risk,
		initialBankroll: initialBankroll,
		logger:          logger,
	}
}

func NewLiveEngine(ledger ports.LedgerStore, sizer *Sizer, risk *RiskManager, submitter ports.OrderSubmitter, initialBankroll float64, logger *slog.Logger) *Engine {
	e := NewPaperEngine(ledger, sizer, risk, initialBankroll, logger)
	e.submitter = submitter
	return e
}

// Execute runs the full execution flow for one market. A nil result with
// nil error means the trade was skipped before reaching the venue (SKIP
// recommendation or bet below minimum). A failed risk check returns a
// result with Success=false and mutates nothing.
func (e *Engine) Execute(ctx context.Context, market domain.Market, analysis domain.EdgeAnalysis, calibrated float64) (*domain.ExecutionResult, error) {
	if analysis.RecommendedAction == domain.ActionSkip {
		e.logger.Info("trade omitido, recomendación SKIP", "market_id", market.ID)
		return nil, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	bankroll, err := e.bankroll(ctx)
	if err != nil {
		return nil, fmt.Errorf("execution.Execute: %w", err)
	}

	size, err := e.sizer.Calculate(bankroll, calibrated, market.CurrentPrice, analysis.Direction)
	if err != nil {
		return nil, fmt.Errorf("execution.Execute: %w", err)
	}
	if size.AmountUSD == 0 {
		e.logger.Info("apuesta por debajo del mínimo, trade omitido", "market_id", market.ID)
		return nil, nil
	}

	now := time.Now().UTC()
	trade := domain.Trade{
		ID:         uuid.NewString(),
		MarketID:   market.ID,
		Direction:  analysis.Direction,
		AmountUSD:  size.AmountUSD,
		NumShares:  size.NumShares,
		EntryPrice: market.CurrentPrice,
		Status:     domain.TradePending,
		Timestamp:  now,
	}

	positions, err := e.ledger.GetOpenPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("execution.Execute: %w", err)
	}

	var dailyPnL float64
	stats, err := e.ledger.GetDailyStats(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("execution.Execute: %w", err)
	}
	if stats != nil {
		dailyPnL = stats.NetPnL
	}

	check := e.risk.Check(trade, positions, dailyPnL, bankroll)
	if !check.Passed {
		return &domain.ExecutionResult{
			Success:   false,
			Message:   "Risk check failed: " + strings.Join(check.Violations, "; "),
			RiskCheck: check,
		}, nil
	}

	if e.submitter != nil {
		placed, err := e.submitOrder(ctx, market, analysis.Direction, size)
		if err != nil {
			// El exchange no aceptó nada: no hay mutación local que deshacer.
			e.logger.Error("fallo enviando orden", "market_id", market.ID, "error", err)
			return &domain.ExecutionResult{
				Success:   false,
				Message:   fmt.Sprintf("Order submission failed: %v", err),
				RiskCheck: check,
			}, nil
		}
		// La orden GTC queda trabajando en el book: el trade se registra
		// PENDING con su order ID hasta confirmar el fill.
		trade.OrderID = placed.OrderID
	} else {
		// Paper: fill simulado inmediato al precio actual.
		trade.Status = domain.TradeFilled
	}

	if err := e.ledger.SaveTrade(ctx, trade); err != nil {
		return nil, fmt.Errorf("execution.Execute: %w", err)
	}

	if err := e.applyToPosition(ctx, market, trade, positions, now); err != nil {
		return nil, fmt.Errorf("execution.Execute: %w", err)
	}
	if err := e.bumpDailyStats(ctx, stats, bankroll, now); err != nil {
		return nil, fmt.Errorf("execution.Execute: %w", err)
	}

	e.logger.Info("trade ejecutado",
		"market_id", market.ID,
		"direction", string(trade.Direction),
		"shares", fmt.Sprintf("%.2f", trade.NumShares),
		"amount", fmt.Sprintf("%.2f", trade.AmountUSD),
		"order_id", trade.OrderID)

	return &domain.ExecutionResult{
		Success:   true,
		TradeID:   trade.ID,
		Message:   fmt.Sprintf("Trade executed: %s %.2f shares", trade.Direction, trade.NumShares),
		RiskCheck: check,
	}, nil
}

// Bankroll devuelve el bankroll efectivo actual.
func (e *Engine) Bankroll(ctx context.Context) (float64, error) {
	return e.bankroll(ctx)
}

// bankroll devuelve el ending bankroll más reciente, o el inicial si el
// ledger todavía está vacío. Un bankroll en 0 con historial se respeta.
func (e *Engine) bankroll(ctx context.Context) (float64, error) {
	b, ok, err := e.ledger.CurrentBankroll(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return e.initialBankroll, nil
	}
	return b, nil
}

// submitOrder posts the order to the venue at the traded token's price.
func (e *Engine) submitOrder(ctx context.Context, market domain.Market, direction domain.Direction, size domain.PositionSize) (domain.PlacedOrder, error) {
	price := market.CurrentPrice
	if direction == domain.BuyNo {
		price = 1 - market.CurrentPrice
	}
	req := domain.OrderRequest{
		TokenID: market.TokenIDFor(direction),
		Price:   price,
		Size:    size.NumShares,
	}
	return e.submitter.SubmitOrder(ctx, req)
}

// applyToPosition merges the fill into the market's position, averaging
// the entry price over the combined shares.
func (e *Engine) applyToPosition(ctx context.Context, market domain.Market, trade domain.Trade, positions []domain.Position, now time.Time) error {
	pos := domain.Position{
		MarketID:      market.ID,
		Direction:     trade.Direction,
		NumShares:     trade.NumShares,
		AmountUSD:     trade.AmountUSD,
		AvgEntryPrice: market.CurrentPrice,
		CurrentPrice:  market.CurrentPrice,
		UpdatedAt:     now,
	}

	for _, existing := range positions {
		if existing.MarketID != market.ID {
			continue
		}
		pos.NumShares = existing.NumShares + trade.NumShares
		pos.AmountUSD = existing.AmountUSD + trade.AmountUSD
		if pos.NumShares > 0 {
			pos.AvgEntryPrice = pos.AmountUSD / pos.NumShares
		}
		break
	}

	return e.ledger.UpsertPosition(ctx, pos)
}

// bumpDailyStats cuenta el trade en las estadísticas de hoy, creándolas
// a partir del bankroll actual si es el primer trade del día.
func (e *Engine) bumpDailyStats(ctx context.Context, stats *domain.DailyStats, bankroll float64, now time.Time) error {
	if stats == nil {
		stats = &domain.DailyStats{
			Date:             now,
			StartingBankroll: bankroll,
			EndingBankroll:   bankroll,
		}
	}
	stats.TradesExecuted++
	return e.ledger.UpsertDailyStats(ctx, *stats)
}

// PositionSummary es una posición anotada con su P&L a precio actual.
type PositionSummary struct {
	Position         domain.Position
	UnrealizedPnL    float64
	UnrealizedPnLPct float64
}

// PortfolioSummary es el estado agregado de la cartera.
type PortfolioSummary struct {
	Positions          []PositionSummary
	TotalUnrealizedPnL float64
	RealizedPnLToday   float64
	CurrentBankroll    float64
	TotalValue         float64 // bankroll + P&L no realizado
}

// Portfolio computes the current portfolio state. currentPrices overrides
// the stored price per market where present.
func (e *Engine) Portfolio(ctx context.Context, currentPrices map[string]float64) (PortfolioSummary, error) {
	positions, err := e.ledger.GetOpenPositions(ctx)
	if err != nil {
		return PortfolioSummary{}, fmt.Errorf("execution.Portfolio: %w", err)
	}

	var summary PortfolioSummary
	for _, pos := range positions {
		price := pos.CurrentPrice
		if p, ok := currentPrices[pos.MarketID]; ok {
			price = p
		}

		pnl := pos.UnrealizedPnL(price)
		summary.TotalUnrealizedPnL += pnl

		pct := 0.0
		if pos.AmountUSD > 0 {
			pct = pnl / pos.AmountUSD * 100
		}
		pos.CurrentPrice = price
		summary.Positions = append(summary.Positions, PositionSummary{
			Position:         pos,
			UnrealizedPnL:    pnl,
			UnrealizedPnLPct: pct,
		})
	}

	bankroll, err := e.bankroll(ctx)
	if err != nil {
		return PortfolioSummary{}, fmt.Errorf("execution.Portfolio: %w", err)
	}
	summary.CurrentBankroll = bankroll
	summary.TotalValue = bankroll + summary.TotalUnrealizedPnL

	stats, err := e.ledger.GetDailyStats(ctx, time.Now().UTC())
	if err != nil {
		return PortfolioSummary{}, fmt.Errorf("execution.Portfolio: %w", err)
	}
	if stats != nil {
		summary.RealizedPnLToday = stats.NetPnL
	}
	return summary, nil
}
