package domain

import "time"

// DispensationRequest is what the committer sends for one cart line.
type DispensationRequest struct {
	PatientID      int64
	ProductID      int64
	Quantity       int
	IdempotencyKey string
}

// DispensationRecord is owned by the patients collaborator; we only keep references.
type DispensationRecord struct {
	DispensationID int64     `json:"dispensation_id"`
	PatientID      int64     `json:"patient_id"`
	ProductID      int64     `json:"product_id"`
	Quantity       int       `json:"quantity"`
	DispensedAt    time.Time `json:"dispensed_at"`
}

type RecentWithdrawal struct {
	DispensationID int64     `json:"dispensation_id"`
	DispensedAt    time.Time `json:"dispensed_at"`
}

// DispensationAlert reports recent withdrawals of one product by one patient.
type DispensationAlert struct {
	Alert       bool               `json:"alert"`
	Message     string             `json:"message"`
	Withdrawals []RecentWithdrawal `json:"withdrawals,omitempty"`
}

// CommitMark is what the commit ledger knows about one idempotency key.
// Record is set once the line committed. PendingSince is set when an earlier
// attempt was issued but never reported an outcome. Both zero means the key
// was just reserved.
type CommitMark struct {
	Record       *DispensationRecord
	PendingSince time.Time
}

func (m CommitMark) Fresh() bool {
	return m.Record == nil && m.PendingSince.IsZero()
}
