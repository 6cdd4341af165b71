package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product mirrors one row of the inventory collaborator's product list.
// Stock is whatever the collaborator reported at fetch time, never authoritative.
type Product struct {
	ProductID   int64           `json:"product_id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
}

type ProductResponse struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"last_known_stock"`
}

type SnapshotResponse struct {
	Products  []ProductResponse `json:"products"`
	FetchedAt time.Time         `json:"fetched_at"`
	Stale     bool              `json:"stale"`
}

func NewProductResponse(p Product) ProductResponse {
	return ProductResponse{
		ProductID: p.ProductID,
		Name:      p.Name,
		Price:     p.Price,
		Stock:     p.Stock,
	}
}
