package domain

// OrderRequest is a limit BUY order to be submitted to the exchange.
type OrderRequest struct {
	TokenID string
	Price   float64 // limit price in [0,1]
	Size    float64 // shares
}

// PlacedOrder is the venue acknowledgement for a submitted order.
type PlacedOrder struct {
	OrderID string
	Status  string
}
