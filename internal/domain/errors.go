package domain

import (
	"errors"
	"fmt"
)

var (
	ErrPreconditionFailed   = errors.New("precondition failed")
	ErrStockExceeded        = errors.New("stock exceeded")
	ErrSnapshotUnavailable  = errors.New("snapshot unavailable")
	ErrLineCommitFailed     = errors.New("line commit failed")
	ErrAuthenticationFailed = errors.New("could not authenticate")

	ErrPatientNotFound  = errors.New("patient not found")
	ErrProductNotFound  = errors.New("product not found")
	ErrLineNotFound     = errors.New("cart line not found")
	ErrInvalidQuantity  = errors.New("quantity must be greater than zero")
	ErrSessionNotFound  = errors.New("session not found")
	ErrCommitInProgress = errors.New("commit in progress")
	ErrSaleNotFound     = errors.New("sale not found")
)

type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition failed: %s", e.Reason)
}

func (e *PreconditionError) Is(target error) bool {
	return target == ErrPreconditionFailed
}

// StockExceededError rejects a cart mutation. MaxAddition is how many more
// units the line could take against its ceiling.
type StockExceededError struct {
	ProductID   int64
	Requested   int
	Current     int
	Ceiling     int
	MaxAddition int
}

func (e *StockExceededError) Error() string {
	return fmt.Sprintf("stock exceeded for product %d: requested %d, in cart %d, ceiling %d, at most %d more",
		e.ProductID, e.Requested, e.Current, e.Ceiling, e.MaxAddition)
}

func (e *StockExceededError) Is(target error) bool {
	return target == ErrStockExceeded
}

type SnapshotError struct {
	Cause error
}

func (e *SnapshotError) Error() string {
	return fmt.Sprintf("snapshot unavailable: %v", e.Cause)
}

func (e *SnapshotError) Is(target error) bool {
	return target == ErrSnapshotUnavailable
}

func (e *SnapshotError) Unwrap() error {
	return e.Cause
}

type RejectionKind string

const (
	RejectionInsufficientStock RejectionKind = "insufficient_stock"
	RejectionValidation        RejectionKind = "validation"
	RejectionAuthorization     RejectionKind = "authorization"
	RejectionNotFound          RejectionKind = "not_found"
	RejectionServer            RejectionKind = "server"
	RejectionNetwork           RejectionKind = "network"
)

// RejectionError is returned by collaborator adapters when a request was refused
// or never got an answer.
type RejectionError struct {
	Kind       RejectionKind
	StatusCode int
	Detail     string
	Cause      error
}

func (e *RejectionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *RejectionError) Unwrap() error {
	return e.Cause
}

// Definitive reports whether the collaborator answered and refused. Server
// and network failures leave the outcome unknown.
func (e *RejectionError) Definitive() bool {
	return e.Kind != RejectionServer && e.Kind != RejectionNetwork
}

// LineCommitError names the cart line whose dispensation was rejected.
type LineCommitError struct {
	ProductID int64
	Quantity  int
	Kind      RejectionKind
	Reason    string
	Cause     error
}

func NewLineCommitError(line CartLine, err error) *LineCommitError {
	lce := &LineCommitError{
		ProductID: line.ProductID,
		Quantity:  line.Quantity,
		Kind:      RejectionNetwork,
		Reason:    err.Error(),
		Cause:     err,
	}
	var rej *RejectionError
	if errors.As(err, &rej) {
		lce.Kind = rej.Kind
		lce.Reason = rej.Detail
	} else if errors.Is(err, ErrAuthenticationFailed) {
		lce.Kind = RejectionAuthorization
	}
	return lce
}

func (e *LineCommitError) Error() string {
	return fmt.Sprintf("dispensation of product %d (qty %d) failed: %s: %s", e.ProductID, e.Quantity, e.Kind, e.Reason)
}

func (e *LineCommitError) Is(target error) bool {
	return target == ErrLineCommitFailed
}

func (e *LineCommitError) Unwrap() error {
	return e.Cause
}
