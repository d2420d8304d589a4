package domain

import "time"

// Direction es el lado de un trade en un mercado binario.
type Direction string

const (
	BuyYes Direction = "BUY_YES"
	BuyNo  Direction = "BUY_NO"
)

// Wins devuelve true si esta dirección gana con el outcome dado
// (outcome true = el mercado resolvió YES).
func (d Direction) Wins(outcome bool) bool {
	if d == BuyYes {
		return outcome
	}
	return !outcome
}

// TradeStatus representa el ciclo de vida de un trade.
type TradeStatus string

const (
	TradePending   TradeStatus = "PENDING"
	TradeFilled    TradeStatus = "FILLED"
	TradeCancelled TradeStatus = "CANCELLED"
	TradeFailed    TradeStatus = "FAILED"
)

// Trade es una entrada individual en el ledger de trades.
type Trade struct {
	ID         string
	MarketID   string
	Direction  Direction
	AmountUSD  float64
	NumShares  float64
	EntryPrice float64
	Status     TradeStatus
	OrderID    string // order ID del exchange (solo live)
	Timestamp  time.Time
}

// Position es la posición agregada en un mercado. Como máximo existe una
// por market ID. Una posición con NumShares == 0 está cerrada.
type Position struct {
	MarketID      string
	Direction     Direction
	NumShares     float64
	AmountUSD     float64 // cost basis
	AvgEntryPrice float64
	CurrentPrice  float64
	UpdatedAt     time.Time
}

// IsOpen devuelve true si la posición tiene shares sin liquidar.
func (p Position) IsOpen() bool {
	return p.NumShares > 0
}

// UnrealizedPnL calcula el P&L no realizado al precio dado.
// Para BUY_NO la ganancia aparece cuando el precio YES baja.
func (p Position) UnrealizedPnL(currentPrice float64) float64 {
	if p.NumShares == 0 {
		return 0
	}
	if p.Direction == BuyYes {
		return (currentPrice - p.AvgEntryPrice) * p.NumShares
	}
	return (p.AvgEntryPrice - currentPrice) * p.NumShares
}

// DailyStats es el resumen diario del ledger, una fila por fecha UTC.
// EndingBankroll de la fila más reciente es la fuente autoritativa del
// bankroll actual.
type DailyStats struct {
	Date             time.Time
	StartingBankroll float64
	EndingBankroll   float64
	TradesExecuted   int
	TradesWon        int
	GrossPnL         float64
	FeesPaid         float64
	NetPnL           float64
}
