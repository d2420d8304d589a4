package polymarket

// orders.go — envío de órdenes reales al CLOB.
//
// Cada request autenticada lleva headers L2: HMAC-SHA256 del timestamp,
// método, path y body firmado con el secret de las API credentials. Las
// credenciales se aprovisionan por configuración; no se derivan aquí.

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/polyoracle/internal/domain"
	"github.com/alejandrodnm/polyoracle/internal/ports"
)

const orderPath = "/order"

// Credentials son las API credentials del CLOB y la wallet asociada.
type Credentials struct {
	APIKey     string
	Secret     string
	Passphrase string
	Address    string
}

// AuthClient envuelve el Client base con auth L2 para operar de verdad.
type AuthClient struct {
	*Client
	creds Credentials
}

var _ ports.OrderSubmitter = (*AuthClient)(nil)

// NewAuthClient crea un cliente autenticado. Todas las credenciales son
// obligatorias: operar en live sin ellas es un error de configuración.
func NewAuthClient(clobBase, gammaBase string, creds Credentials) (*AuthClient, error) {
	if creds.APIKey == "" || creds.Secret == "" || creds.Passphrase == "" || creds.Address == "" {
		return nil, fmt.Errorf("polymarket.NewAuthClient: incomplete CLOB credentials")
	}
	return &AuthClient{
		Client: NewClient(clobBase, gammaBase),
		creds:  creds,
	}, nil
}

// orderRequestBody es el JSON enviado a POST /order.
type orderRequestBody struct {
	Order     orderPayload `json:"order"`
	Owner     string       `json:"owner"`
	OrderType string       `json:"orderType"`
}

type orderPayload struct {
	TokenID string  `json:"tokenID"`
	Price   float64 `json:"price"`
	Size    float64 `json:"size"`
	Side    string  `json:"side"`
	Maker   string  `json:"maker"`
}

type orderResponse struct {
	ErrorMsg string `json:"errorMsg"`
	OrderID  string `json:"orderID"`
	Status   string `json:"status"`
	Success  bool   `json:"success"`
}

// SubmitOrder envía una orden límite BUY GTC al CLOB. Devuelve el order
// ID asignado por el exchange; cualquier error significa que no se colocó
// nada.
func (ac *AuthClient) SubmitOrder(ctx context.Context, req domain.OrderRequest) (domain.PlacedOrder, error) {
	if req.TokenID == "" {
		return domain.PlacedOrder{}, fmt.Errorf("polymarket.SubmitOrder: missing token id")
	}
	if req.Price <= 0 || req.Price >= 1 {
		return domain.PlacedOrder{}, fmt.Errorf("polymarket.SubmitOrder: price %.4f out of (0,1)", req.Price)
	}
	if req.Size <= 0 {
		return domain.PlacedOrder{}, fmt.Errorf("polymarket.SubmitOrder: size %.4f must be positive", req.Size)
	}

	body := orderRequestBody{
		Order: orderPayload{
			TokenID: req.TokenID,
			Price:   req.Price,
			Size:    req.Size,
			Side:    "BUY",
			Maker:   ac.creds.Address,
		},
		Owner:     ac.creds.APIKey,
		OrderType: "GTC",
	}

	var resp orderResponse
	if err := ac.doL2(ctx, http.MethodPost, orderPath, body, &resp); err != nil {
		return domain.PlacedOrder{}, fmt.Errorf("polymarket.SubmitOrder: %w", err)
	}
	if !resp.Success {
		return domain.PlacedOrder{}, fmt.Errorf("polymarket.SubmitOrder: rejected: %s", resp.ErrorMsg)
	}

	return domain.PlacedOrder{OrderID: resp.OrderID, Status: resp.Status}, nil
}

// l2Headers construye los headers autenticados de una request L2.
func (ac *AuthClient) l2Headers(method, path, body string) (map[string]string, error) {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	msg := ts + strings.ToUpper(method) + path + body

	secretBytes, err := base64.URLEncoding.DecodeString(ac.creds.Secret)
	if err != nil {
		return nil, fmt.Errorf("decode secret: %w", err)
	}

	mac := hmac.New(sha256.New, secretBytes)
	mac.Write([]byte(msg))
	sig := base64.URLEncoding.EncodeToString(mac.Sum(nil))

	return map[string]string{
		"POLY_ADDRESS":    ac.creds.Address,
		"POLY_SIGNATURE":  sig,
		"POLY_TIMESTAMP":  ts,
		"POLY_API_KEY":    ac.creds.APIKey,
		"POLY_PASSPHRASE": ac.creds.Passphrase,
	}, nil
}

// doL2 ejecuta una request autenticada con rate limiting y retries. Los
// headers HMAC se regeneran en cada intento para que el timestamp no
// caduque.
func (ac *AuthClient) doL2(ctx context.Context, method, path string, reqBody, out any) error {
	var bodyStr string
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
		bodyStr = string(b)
	}

	fullURL := ac.clobBase + path

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ac.clobLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		headers, err := ac.l2Headers(method, path, bodyStr)
		if err != nil {
			return err
		}

		var bodyReader io.Reader
		if bodyStr != "" {
			bodyReader = strings.NewReader(bodyStr)
		}

		req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
		if err != nil {
			return fmt.Errorf("new request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := ac.http.Do(req)
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			ac.sleep(ctx, attempt)
			continue
		}

		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			ac.sleep(ctx, attempt)
			continue
		}
		if resp.StatusCode >= 500 {
			if attempt == maxRetries {
				return fmt.Errorf("server error %d: %s", resp.StatusCode, respBody)
			}
			ac.sleep(ctx, attempt)
			continue
		}
		if resp.StatusCode >= 400 {
			return fmt.Errorf("client error %d: %s", resp.StatusCode, respBody)
		}

		if out != nil {
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}
