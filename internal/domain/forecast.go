package domain

import "time"

// Action es la recomendación del análisis de edge.
type Action string

const (
	ActionTrade Action = "TRADE"
	ActionSkip  Action = "SKIP"
)

// ForecastRecord es una fila del histórico de forecasts. Se crea cuando el
// debate produce un forecast y se muta exactamente una vez cuando el mercado
// resuelve (Outcome pasa de nil a un valor). Nunca se borra.
type ForecastRecord struct {
	ID                     string
	MarketID               string
	Question               string
	Category               string
	Timestamp              time.Time
	RawProbability         float64
	CalibratedProbability  float64
	Confidence             float64
	Reasoning              string // blob opaco con el razonamiento del debate
	MarketPriceAtForecast  float64
	Edge                   float64
	RecommendedAction      Action
	Resolved               bool
	Outcome                *bool
	BrierScoreRaw          *float64
	BrierScoreCalibrated   *float64
}

// RawForecast es la salida cruda del sistema de debate para un mercado.
type RawForecast struct {
	Probability float64
	Confidence  float64
	Reasoning   string
	CreatedAt   time.Time
}

// CalibrationSample es un par (predicción, outcome) de un forecast resuelto.
type CalibrationSample struct {
	Prediction float64
	Outcome    float64 // 0 o 1
}

// CalibratedForecast is the output of the calibrator for a single forecast.
type CalibratedForecast struct {
	Raw               float64
	Calibrated        float64
	Confidence        float64
	Method            string // "identity" | "isotonic"
	HistoricalSamples int
}

// EdgeAnalysis is the edge computation against the current market price.
type EdgeAnalysis struct {
	OurForecast       float64
	MarketPrice       float64
	RawEdge           float64
	AbsEdge           float64
	WeightedEdge      float64
	Direction         Direction
	HasActionableEdge bool
	RecommendedAction Action
	Reasoning         string
}

// PositionSize is the sizer output. AmountUSD == 0 means the bet is below
// the minimum and should be skipped (not an error).
type PositionSize struct {
	AmountUSD       float64
	NumShares       float64
	KellyFraction   float64 // full Kelly before the conservative multiplier
	AppliedFraction float64 // conservative multiplier actually applied
	Constraints     SizeConstraints
}

// SizeConstraints records the limits in force when a size was computed.
type SizeConstraints struct {
	MinBet         float64
	MaxBet         float64
	MaxBankrollPct float64
}

// RiskCheck is the risk manager verdict for a proposed trade.
type RiskCheck struct {
	Passed                 bool
	Violations             []string
	DailyLossPct           float64
	NumOpenPositions       int
	ProposedMarketExposure float64
}

// ExecutionResult is the outcome of an execution attempt. A nil result from
// the executor means the trade was skipped before reaching the venue.
type ExecutionResult struct {
	Success   bool
	TradeID   string
	Message   string
	RiskCheck RiskCheck
}

// ResolutionSummary aggregates one resolution cycle.
type ResolutionSummary struct {
	Checked  int
	Resolved int
	PnL      float64
}
