package events

import (
	"time"
)

// DefaultSalesTopic carries the POS's own record of a checkout. Stock is
// decremented by the dispensation collaborator, so nothing downstream should
// treat this event as a deduction.
const DefaultSalesTopic = "pos-sales"

// SaleRecordedEvent is published after a checkout that dispensed at least
// one line.
type SaleRecordedEvent struct {
	EventType      string          `json:"event_type"`
	EventID        string          `json:"event_id"`
	SaleID         string          `json:"sale_id"`
	SellerID       string          `json:"seller_id"`
	PatientID      int64           `json:"patient_id"`
	Total          string          `json:"total"`
	FullyCommitted bool            `json:"fully_committed"`
	Lines          []DispensedLine `json:"dispensed_lines"`
	Timestamp      time.Time       `json:"timestamp"`
}

// DispensedLine only carries committed lines.
type DispensedLine struct {
	ProductID      int64 `json:"product_id"`
	Quantity       int   `json:"quantity"`
	DispensationID int64 `json:"dispensation_id"`
}

// InventoryChangedEvent announces a stock or catalog change. Any message on
// the inventory topic triggers a refresh; the fields are for logging.
type InventoryChangedEvent struct {
	EventType string `json:"event_type"`
	ProductID *int64 `json:"producto_id,omitempty"`
	NewStock  *int   `json:"stock,omitempty"`
}
