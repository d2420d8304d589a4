package ports

import (
	"context"

	"github.com/alejandrodnm/polyoracle/internal/domain"
)

// MarketProvider obtiene mercados binarios activos y su estado actual.
type MarketProvider interface {
	// FetchMarket devuelve el estado actual de un mercado por su ID.
	FetchMarket(ctx context.Context, marketID string) (domain.Market, error)

	// FetchActiveMarkets devuelve los mercados binarios activos candidatos
	// a recibir un forecast en este ciclo.
	FetchActiveMarkets(ctx context.Context) ([]domain.Market, error)
}

// ResolutionOracle consulta qué mercados han resuelto y con qué outcome.
type ResolutionOracle interface {
	// CheckResolutions devuelve el outcome de los mercados ya resueltos del
	// set dado. Puede devolver un subconjunto: los mercados sin resolver
	// simplemente no aparecen en el mapa.
	CheckResolutions(ctx context.Context, marketIDs []string) (map[string]bool, error)
}
