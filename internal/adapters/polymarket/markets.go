package polymarket

// markets.go — MarketProvider sobre la Gamma API.
//
// Gamma devuelve varios campos numéricos como strings JSON anidados
// (outcomePrices, clobTokenIds); el mapeo a domain.Market vive aquí.

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/polyoracle/internal/domain"
	"github.com/alejandrodnm/polyoracle/internal/ports"
)

const (
	gammaMarketsPath   = "/markets"
	activeMarketsLimit = 100
)

var _ ports.MarketProvider = (*Client)(nil)

// gammaMarket es el DTO raw de un mercado en Gamma.
type gammaMarket struct {
	ID             string      `json:"id"`
	Question       string      `json:"question"`
	Category       string      `json:"category"`
	OutcomePrices  string      `json:"outcomePrices"` // JSON anidado: ["0.55","0.45"]
	ClobTokenIDs   string      `json:"clobTokenIds"`  // JSON anidado: [yesID, noID]
	LastTradePrice float64     `json:"lastTradePrice"`
	Liquidity      json.Number `json:"liquidityNum"`
	EndDate        string      `json:"endDate"`
	Active         bool        `json:"active"`
	Closed         bool        `json:"closed"`
}

// FetchMarket devuelve el estado actual de un mercado por su ID.
func (c *Client) FetchMarket(ctx context.Context, marketID string) (domain.Market, error) {
	gm, err := c.fetchGammaMarket(ctx, marketID)
	if err != nil {
		return domain.Market{}, err
	}
	return mapMarket(gm)
}

// FetchActiveMarkets devuelve los mercados binarios activos ordenados por
// liquidez descendente. Los mercados que no se pueden parsear se omiten.
func (c *Client) FetchActiveMarkets(ctx context.Context) ([]domain.Market, error) {
	url := fmt.Sprintf("%s%s?active=true&closed=false&order=liquidityNum&ascending=false&limit=%d",
		c.gammaBase, gammaMarketsPath, activeMarketsLimit)

	var resp []gammaMarket
	if err := c.get(ctx, c.gammaLimiter, url, &resp); err != nil {
		return nil, fmt.Errorf("polymarket.FetchActiveMarkets: %w", err)
	}

	markets := make([]domain.Market, 0, len(resp))
	for _, gm := range resp {
		m, err := mapMarket(gm)
		if err != nil {
			slog.Debug("mercado omitido, datos incompletos", "market_id", gm.ID, "err", err)
			continue
		}
		markets = append(markets, m)
	}

	slog.Debug("mercados activos obtenidos", "total", len(resp), "parsed", len(markets))
	return markets, nil
}

func (c *Client) fetchGammaMarket(ctx context.Context, marketID string) (gammaMarket, error) {
	url := fmt.Sprintf("%s%s/%s", c.gammaBase, gammaMarketsPath, marketID)

	var gm gammaMarket
	if err := c.get(ctx, c.gammaLimiter, url, &gm); err != nil {
		return gammaMarket{}, fmt.Errorf("polymarket.fetchGammaMarket %s: %w", marketID, err)
	}
	return gm, nil
}

// mapMarket convierte el DTO de Gamma en un domain.Market.
func mapMarket(gm gammaMarket) (domain.Market, error) {
	if gm.ID == "" {
		return domain.Market{}, fmt.Errorf("market without id")
	}

	yesPrice, err := parseYesPrice(gm.OutcomePrices)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market %s: %w", gm.ID, err)
	}

	// lastTradePrice es más fresco que outcomePrices cuando existe, pero en
	// mercados cerrados outcomePrices refleja la resolución final.
	price := yesPrice
	if !gm.Closed && gm.LastTradePrice > 0 {
		price = gm.LastTradePrice
	}

	yesToken, noToken := parseTokenIDs(gm.ClobTokenIDs)

	liquidity, _ := gm.Liquidity.Float64()

	var endDate time.Time
	if gm.EndDate != "" {
		endDate, _ = time.Parse(time.RFC3339, gm.EndDate)
	}

	category := strings.ToLower(strings.TrimSpace(gm.Category))
	if category == "" {
		category = "binary"
	}

	return domain.Market{
		ID:           gm.ID,
		Question:     gm.Question,
		Category:     category,
		CurrentPrice: price,
		Liquidity:    liquidity,
		EndDate:      endDate,
		YesTokenID:   yesToken,
		NoTokenID:    noToken,
		Active:       gm.Active,
		Closed:       gm.Closed,
	}, nil
}

// parseYesPrice extrae el precio YES del array JSON anidado de Gamma.
func parseYesPrice(outcomePrices string) (float64, error) {
	if outcomePrices == "" {
		return 0, fmt.Errorf("missing outcomePrices")
	}
	var prices []string
	if err := json.Unmarshal([]byte(outcomePrices), &prices); err != nil {
		return 0, fmt.Errorf("parse outcomePrices: %w", err)
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("empty outcomePrices")
	}
	p, err := strconv.ParseFloat(prices[0], 64)
	if err != nil {
		return 0, fmt.Errorf("parse yes price %q: %w", prices[0], err)
	}
	return p, nil
}

func parseTokenIDs(clobTokenIDs string) (yes, no string) {
	if clobTokenIDs == "" {
		return "", ""
	}
	var ids []string
	if err := json.Unmarshal([]byte(clobTokenIDs), &ids); err != nil {
		return "", ""
	}
	if len(ids) > 0 {
		yes = ids[0]
	}
	if len(ids) > 1 {
		no = ids[1]
	}
	return yes, no
}
