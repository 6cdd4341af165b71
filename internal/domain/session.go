package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type AddToCartRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity"   binding:"required,min=1"`
}

type SetQuantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

type CartLineView struct {
	CartLine
	Name     string          `json:"name"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

type SessionView struct {
	SessionID  string           `json:"session_id"`
	Lines      []CartLineView   `json:"lines"`
	Total      decimal.Decimal  `json:"total"`
	Patient    *PatientResponse `json:"patient,omitempty"`
	Committing bool             `json:"committing"`
	CreatedAt  time.Time        `json:"created_at"`
}

type CheckoutResponse struct {
	Transaction         TransactionResponse `json:"transaction"`
	ReconciliationError string              `json:"reconciliation_error,omitempty"`
	Session             SessionView         `json:"session"`
}
