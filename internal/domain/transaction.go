package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type LineStatus string

const (
	LineCommitted    LineStatus = "committed"
	LineFailed       LineStatus = "failed"
	LineNotAttempted LineStatus = "not_attempted"
)

// LineOutcome is the per-line result of a commit. Record is set only for
// committed lines, Err only for the failed one.
type LineOutcome struct {
	Line     CartLine
	Status   LineStatus
	Record   *DispensationRecord
	Replayed bool
	Err      *LineCommitError
}

// TransactionResult is immutable once returned by the committer.
// Err is nil when every line committed; otherwise it is a *PreconditionError,
// an ErrAuthenticationFailed wrap, or the *LineCommitError of the failed line.
type TransactionResult struct {
	TransactionID  string
	PatientID      int64
	Outcomes       []LineOutcome
	FullyCommitted bool
	Err            error
	StartedAt      time.Time
	FinishedAt     time.Time
}

// Attempted reports whether any dispensation request was issued or replayed.
func (r *TransactionResult) Attempted() bool {
	for _, o := range r.Outcomes {
		if o.Status != LineNotAttempted {
			return true
		}
	}
	return false
}

func (r *TransactionResult) Committed() []LineOutcome {
	var out []LineOutcome
	for _, o := range r.Outcomes {
		if o.Status == LineCommitted {
			out = append(out, o)
		}
	}
	return out
}

func (r *TransactionResult) CommittedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, o := range r.Committed() {
		total = total.Add(o.Line.Subtotal())
	}
	return total
}

type LineOutcomeResponse struct {
	ProductID      int64           `json:"product_id"`
	Quantity       int             `json:"quantity"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Status         LineStatus      `json:"status"`
	DispensationID int64           `json:"dispensation_id,omitempty"`
	DispensedAt    *time.Time      `json:"dispensed_at,omitempty"`
	Replayed       bool            `json:"replayed,omitempty"`
	FailureKind    RejectionKind   `json:"failure_kind,omitempty"`
	FailureReason  string          `json:"failure_reason,omitempty"`
}

type TransactionResponse struct {
	TransactionID  string                `json:"transaction_id"`
	PatientID      int64                 `json:"patient_id,omitempty"`
	FullyCommitted bool                  `json:"fully_committed"`
	CommittedTotal decimal.Decimal       `json:"committed_total"`
	Outcomes       []LineOutcomeResponse `json:"outcomes"`
	Error          string                `json:"error,omitempty"`
}

func NewTransactionResponse(r *TransactionResult) TransactionResponse {
	resp := TransactionResponse{
		TransactionID:  r.TransactionID,
		PatientID:      r.PatientID,
		FullyCommitted: r.FullyCommitted,
		CommittedTotal: r.CommittedTotal(),
		Outcomes:       make([]LineOutcomeResponse, 0, len(r.Outcomes)),
	}
	if r.Err != nil {
		resp.Error = r.Err.Error()
	}
	for _, o := range r.Outcomes {
		lr := LineOutcomeResponse{
			ProductID: o.Line.ProductID,
			Quantity:  o.Line.Quantity,
			Subtotal:  o.Line.Subtotal(),
			Status:    o.Status,
			Replayed:  o.Replayed,
		}
		if o.Record != nil {
			lr.DispensationID = o.Record.DispensationID
			at := o.Record.DispensedAt
			lr.DispensedAt = &at
		}
		if o.Err != nil {
			lr.FailureKind = o.Err.Kind
			lr.FailureReason = o.Err.Reason
		}
		resp.Outcomes = append(resp.Outcomes, lr)
	}
	return resp
}
