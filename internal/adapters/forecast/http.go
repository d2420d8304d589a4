package forecast

// http.go — cliente del servicio externo de debate multi-agente.
//
// El servicio recibe el mercado y devuelve una probabilidad cruda con su
// confianza y el razonamiento del debate. Este adapter no interpreta el
// razonamiento: es un blob opaco que se persiste tal cual.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alejandrodnm/polyoracle/internal/domain"
	"github.com/alejandrodnm/polyoracle/internal/ports"
)

const forecastPath = "/forecast"

var _ ports.ForecastSource = (*Client)(nil)

// Client implementa ports.ForecastSource sobre HTTP.
type Client struct {
	http *http.Client
	base string
}

func NewClient(base string) *Client {
	return &Client{
		// El debate tarda: varios agentes y varias rondas por mercado.
		http: &http.Client{Timeout: 120 * time.Second},
		base: base,
	}
}

type forecastRequest struct {
	MarketID     string  `json:"market_id"`
	Question     string  `json:"question"`
	Category     string  `json:"category"`
	CurrentPrice float64 `json:"current_price"`
	EndDate      string  `json:"end_date,omitempty"`
}

type forecastResponse struct {
	Probability float64 `json:"probability"`
	Confidence  float64 `json:"confidence"`
	Reasoning   string  `json:"reasoning"`
}

// Forecast pide un forecast para el mercado dado.
func (c *Client) Forecast(ctx context.Context, market domain.Market) (domain.RawForecast, error) {
	reqBody := forecastRequest{
		MarketID:     market.ID,
		Question:     market.Question,
		Category:     market.Category,
		CurrentPrice: market.CurrentPrice,
	}
	if !market.EndDate.IsZero() {
		reqBody.EndDate = market.EndDate.UTC().Format(time.RFC3339)
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return domain.RawForecast{}, fmt.Errorf("forecast.Forecast: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+forecastPath, bytes.NewReader(b))
	if err != nil {
		return domain.RawForecast{}, fmt.Errorf("forecast.Forecast: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.RawForecast{}, fmt.Errorf("forecast.Forecast: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return domain.RawForecast{}, fmt.Errorf("forecast.Forecast: status %d: %s", resp.StatusCode, body)
	}

	var out forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.RawForecast{}, fmt.Errorf("forecast.Forecast: decode: %w", err)
	}

	if out.Probability < 0 || out.Probability > 1 {
		return domain.RawForecast{}, fmt.Errorf("forecast.Forecast: probability %.4f out of [0,1]", out.Probability)
	}
	if out.Confidence < 0 || out.Confidence > 1 {
		return domain.RawForecast{}, fmt.Errorf("forecast.Forecast: confidence %.4f out of [0,1]", out.Confidence)
	}

	return domain.RawForecast{
		Probability: out.Probability,
		Confidence:  out.Confidence,
		Reasoning:   out.Reasoning,
		CreatedAt:   time.Now().UTC(),
	}, nil
}
