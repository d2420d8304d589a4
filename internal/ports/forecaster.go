package ports

import (
	"context"

	"github.com/alejandrodnm/polyoracle/internal/domain"
)

// ForecastSource produce forecasts crudos para un mercado. La implementación
// real es el servicio externo de debate multi-agente.
type ForecastSource interface {
	Forecast(ctx context.Context, market domain.Market) (domain.RawForecast, error)
}
