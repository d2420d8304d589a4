package polymarket

// resolution.go — ResolutionOracle sobre la Gamma API.
//
// Un mercado cerrado liquida sus outcomePrices a los valores finales
// (["1","0"] o ["0","1"]); el lado YES ≥ 0.5 marca el ganador.

import (
	"context"
	"log/slog"

	"github.com/alejandrodnm/polyoracle/internal/ports"
)

var _ ports.ResolutionOracle = (*Client)(nil)

// CheckResolutions consulta el estado de cada mercado y devuelve el
// outcome de los ya cerrados. Los mercados abiertos, o los que fallan al
// consultarse, simplemente no aparecen en el mapa: el caller reintenta en
// el siguiente ciclo.
func (c *Client) CheckResolutions(ctx context.Context, marketIDs []string) (map[string]bool, error) {
	resolved := make(map[string]bool)

	for _, id := range marketIDs {
		if err := ctx.Err(); err != nil {
			return resolved, err
		}

		gm, err := c.fetchGammaMarket(ctx, id)
		if err != nil {
			slog.Warn("no se pudo consultar la resolución", "market_id", id, "err", err)
			continue
		}
		if !gm.Closed {
			continue
		}

		yesPrice, err := parseYesPrice(gm.OutcomePrices)
		if err != nil {
			slog.Warn("mercado cerrado sin precios finales", "market_id", id, "err", err)
			continue
		}

		resolved[id] = yesPrice >= 0.5
	}

	slog.Debug("resoluciones comprobadas", "checked", len(marketIDs), "resolved", len(resolved))
	return resolved, nil
}
