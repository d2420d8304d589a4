package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/polyoracle/internal/domain"
)

// ForecastStore persiste el histórico de forecasts (append-only, con un
// único update por fila cuando el mercado resuelve).
type ForecastStore interface {
	// SaveForecast inserta un ForecastRecord nuevo y devuelve su ID.
	SaveForecast(ctx context.Context, f domain.ForecastRecord) (string, error)

	// GetLatestForecast devuelve el forecast más reciente para un mercado,
	// o nil si no existe ninguno.
	GetLatestForecast(ctx context.Context, marketID string) (*domain.ForecastRecord, error)

	// MarkForecastResolved fija outcome y Brier scores de un forecast.
	// Es la única mutación permitida sobre una fila existente.
	MarkForecastResolved(ctx context.Context, id string, outcome bool, brierRaw, brierCalibrated float64) error

	// GetResolvedSamples devuelve los pares (predicción, outcome) resueltos
	// de una categoría, para ajustar la curva de calibración.
	GetResolvedSamples(ctx context.Context, category string) ([]domain.CalibrationSample, error)

	// CountResolvedSamples devuelve cuántos forecasts resueltos hay para la
	// categoría. Se usa para invalidar la cache de calibración sin refetch.
	CountResolvedSamples(ctx context.Context, category string) (int, error)

	// GetUnresolvedMarketIDs devuelve los market IDs con forecasts pendientes.
	GetUnresolvedMarketIDs(ctx context.Context) ([]string, error)

	// GetResolvedForecasts devuelve todos los forecasts ya resueltos.
	GetResolvedForecasts(ctx context.Context) ([]domain.ForecastRecord, error)

	// CountForecasts devuelve el total de forecasts registrados.
	CountForecasts(ctx context.Context) (int, error)
}

// LedgerStore persiste trades, posiciones y estadísticas diarias.
type LedgerStore interface {
	SaveTrade(ctx context.Context, t domain.Trade) error

	// GetPosition devuelve la posición de un mercado, o nil si nunca hubo una.
	GetPosition(ctx context.Context, marketID string) (*domain.Position, error)

	// GetOpenPositions devuelve las posiciones con shares > 0.
	GetOpenPositions(ctx context.Context) ([]domain.Position, error)

	UpsertPosition(ctx context.Context, p domain.Position) error

	// GetDailyStats devuelve las estadísticas del día (fecha UTC), o nil.
	GetDailyStats(ctx context.Context, date time.Time) (*domain.DailyStats, error)

	UpsertDailyStats(ctx context.Context, s domain.DailyStats) error

	// ApplySettlement cierra la posición de un mercado y actualiza las
	// estadísticas del día en una única transacción. Si no existen stats
	// para hoy, las crea partiendo de fallbackBankroll.
	ApplySettlement(ctx context.Context, marketID string, pnl float64, fallbackBankroll float64) error

	// CurrentBankroll devuelve el ending_bankroll de la fecha más reciente.
	// El segundo valor es false si no hay ninguna fila de stats: un bankroll
	// que llega a 0 de verdad no es lo mismo que un ledger vacío.
	CurrentBankroll(ctx context.Context) (float64, bool, error)
}
