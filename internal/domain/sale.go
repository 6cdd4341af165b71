package domain

import (
	"time"
)

// Sale is the journal entry written after a commit attempt.
type Sale struct {
	SaleID         string     `dynamodbav:"sale_id"         json:"sale_id"`
	SellerID       string     `dynamodbav:"seller_id"       json:"seller_id"`
	PatientID      int64      `dynamodbav:"patient_id"      json:"patient_id"`
	Total          string     `dynamodbav:"total"           json:"total"`
	FullyCommitted bool       `dynamodbav:"fully_committed" json:"fully_committed"`
	Lines          []SaleLine `dynamodbav:"lines"           json:"lines"`
	FailureReason  string     `dynamodbav:"failure_reason,omitempty" json:"failure_reason,omitempty"`
	CreatedAt      time.Time  `dynamodbav:"created_at"      json:"created_at"`
}

type SaleLine struct {
	ProductID      int64      `dynamodbav:"product_id"      json:"product_id"`
	Quantity       int        `dynamodbav:"quantity"        json:"quantity"`
	UnitPrice      string     `dynamodbav:"unit_price"      json:"unit_price"`
	Subtotal       string     `dynamodbav:"subtotal"        json:"subtotal"`
	Status         LineStatus `dynamodbav:"status"          json:"status"`
	DispensationID int64      `dynamodbav:"dispensation_id,omitempty" json:"dispensation_id,omitempty"`
}

// NewSale builds the journal entry for a transaction. Total counts committed lines only.
func NewSale(r *TransactionResult, sellerID string) *Sale {
	sale := &Sale{
		SaleID:         r.TransactionID,
		SellerID:       sellerID,
		PatientID:      r.PatientID,
		Total:          r.CommittedTotal().StringFixed(2),
		FullyCommitted: r.FullyCommitted,
		Lines:          make([]SaleLine, 0, len(r.Outcomes)),
		CreatedAt:      r.FinishedAt,
	}
	if r.Err != nil {
		sale.FailureReason = r.Err.Error()
	}
	for _, o := range r.Outcomes {
		sl := SaleLine{
			ProductID: o.Line.ProductID,
			Quantity:  o.Line.Quantity,
			UnitPrice: o.Line.UnitPrice.StringFixed(2),
			Subtotal:  o.Line.Subtotal().StringFixed(2),
			Status:    o.Status,
		}
		if o.Record != nil {
			sl.DispensationID = o.Record.DispensationID
		}
		sale.Lines = append(sale.Lines, sl)
	}
	return sale
}
