package domain

// SettlementPnL calcula el P&L realizado al resolverse un mercado binario.
// El ganador recibe $1 por share, el perdedor $0.
//
// Tabla de payoff:
//
//	BUY_YES + YES → +shares − coste
//	BUY_YES + NO  → −coste
//	BUY_NO  + NO  → +shares − coste
//	BUY_NO  + YES → −coste
func SettlementPnL(d Direction, numShares, amountUSD float64, outcome bool) float64 {
	if numShares <= 0 {
		return 0
	}
	if d.Wins(outcome) {
		return numShares*1.0 - amountUSD
	}
	return -amountUSD
}

// BrierScore calcula el Brier score de un forecast binario.
// 0 es perfecto, 1 es el peor caso posible.
func BrierScore(probability float64, outcome bool) float64 {
	o := 0.0
	if outcome {
		o = 1.0
	}
	diff := probability - o
	return diff * diff
}
