package ports

import (
	"context"

	"github.com/alejandrodnm/polyoracle/internal/domain"
)

// OrderSubmitter submits real orders to the exchange.
type OrderSubmitter interface {
	// SubmitOrder posts a limit BUY order to the venue and returns the
	// exchange-assigned order ID. An error means nothing was placed.
	SubmitOrder(ctx context.Context, req domain.OrderRequest) (domain.PlacedOrder, error)
}
