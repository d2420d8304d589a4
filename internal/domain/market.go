package domain

import "time"

// Market representa un mercado de predicción binario en Polymarket.
type Market struct {
	ID           string
	Question     string
	Category     string // tipo de mercado: "crypto", "politics", "sports", ...
	CurrentPrice float64
	Liquidity    float64 // liquidez disponible en USDC
	EndDate      time.Time
	YesTokenID   string
	NoTokenID    string
	Active       bool
	Closed       bool
}

// TokenIDFor devuelve el token ID del lado que compra la dirección dada.
func (m Market) TokenIDFor(d Direction) string {
	if d == BuyNo {
		return m.NoTokenID
	}
	return m.YesTokenID
}

// HoursToResolution devuelve las horas hasta que el mercado se resuelve.
// Devuelve 0 si EndDate no está definido o ya pasó.
func (m Market) HoursToResolution() float64 {
	if m.EndDate.IsZero() {
		return 0
	}
	h := time.Until(m.EndDate).Hours()
	if h < 0 {
		return 0
	}
	return h
}

// TruncateQuestion devuelve la pregunta truncada a maxLen caracteres.
// Si la pregunta está vacía usa los primeros caracteres del market ID como fallback.
func TruncateQuestion(question, marketID string, maxLen int) string {
	q := question
	if q == "" {
		if len(marketID) > 20 {
			q = marketID[:20] + "..."
		} else {
			q = marketID
		}
	}
	if len(q) > maxLen {
		q = q[:maxLen-3] + "..."
	}
	return q
}
