package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloud-wave-best-zizon/pharmacy-pos/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Committer drains a cart into dispensation records, one line at a time.
// The dispensing collaborator has no multi-line transaction, so lines that
// committed before a failure stay committed.
type Committer struct {
	dispenser   Dispenser
	lister      DispensationLister
	credentials CredentialSource
	ledger      CommitLedger
	logger      *zap.Logger

	newID func() string
	now   func() time.Time
}

// NewCommitter wires the dispensing collaborator. lister is consulted when an
// earlier attempt of a line never reported back; it and ledger may be nil.
func NewCommitter(dispenser Dispenser, lister DispensationLister, credentials CredentialSource, ledger CommitLedger, logger *zap.Logger) *Committer {
	return &Committer{
		dispenser:   dispenser,
		lister:      lister,
		credentials: credentials,
		ledger:      ledger,
		logger:      logger,
		newID:       uuid.NewString,
		now:         time.Now,
	}
}

// Commit submits every line of cart for patient in cart order. Committed lines
// are removed from the cart as they succeed; the failed line and everything
// after it stay for a retry. patient == nil means nothing is bound.
func (c *Committer) Commit(ctx context.Context, cart *domain.Cart, patient *domain.Patient) *domain.TransactionResult {
	// once a line is issued it runs to completion
	ctx = context.WithoutCancel(ctx)

	result := &domain.TransactionResult{
		TransactionID: c.newID(),
		StartedAt:     c.now(),
	}
	defer func() { result.FinishedAt = c.now() }()

	if patient == nil {
		result.Err = &domain.PreconditionError{Reason: "no patient bound"}
		return result
	}
	result.PatientID = patient.PatientID

	if cart == nil || cart.IsEmpty() {
		result.Err = &domain.PreconditionError{Reason: "cart is empty"}
		return result
	}

	lines := cart.Lines()
	result.Outcomes = make([]domain.LineOutcome, len(lines))
	for i, line := range lines {
		result.Outcomes[i] = domain.LineOutcome{Line: line, Status: domain.LineNotAttempted}
	}

	if c.credentials != nil {
		if _, err := c.credentials.Token(ctx); err != nil {
			if !errors.Is(err, domain.ErrAuthenticationFailed) {
				err = fmt.Errorf("%w: %v", domain.ErrAuthenticationFailed, err)
			}
			c.logger.Error("Failed to acquire credential for commit",
				zap.String("transaction_id", result.TransactionID),
				zap.Error(err))
			result.Err = err
			return result
		}
	}

	c.logger.Info("Committing cart",
		zap.String("transaction_id", result.TransactionID),
		zap.Int64("patient_id", patient.PatientID),
		zap.Int("lines", len(lines)))

	for i, line := range lines {
		record, replayed, err := c.commitLine(ctx, patient.PatientID, line)
		if err != nil {
			lce := domain.NewLineCommitError(line, err)
			result.Outcomes[i].Status = domain.LineFailed
			result.Outcomes[i].Err = lce
			result.Err = lce

			c.logger.Error("Dispensation failed, stopping commit",
				zap.String("transaction_id", result.TransactionID),
				zap.Int64("product_id", line.ProductID),
				zap.Int("quantity", line.Quantity),
				zap.String("kind", string(lce.Kind)),
				zap.Int("committed", i),
				zap.Int("not_attempted", len(lines)-i-1),
				zap.Error(err))
			return result
		}

		result.Outcomes[i].Status = domain.LineCommitted
		result.Outcomes[i].Record = record
		result.Outcomes[i].Replayed = replayed
		cart.Remove(line.ProductID)

		c.logger.Info("Dispensation committed",
			zap.String("transaction_id", result.TransactionID),
			zap.Int64("product_id", line.ProductID),
			zap.Int("quantity", line.Quantity),
			zap.Int64("dispensation_id", record.DispensationID),
			zap.Bool("replayed", replayed))
	}

	cart.Clear()
	result.FullyCommitted = true

	c.logger.Info("Cart fully committed",
		zap.String("transaction_id", result.TransactionID),
		zap.Int64("patient_id", patient.PatientID))

	return result
}

func (c *Committer) commitLine(ctx context.Context, patientID int64, line domain.CartLine) (*domain.DispensationRecord, bool, error) {
	if c.ledger != nil {
		mark, err := c.ledger.Reserve(ctx, line.IdempotencyKey, c.now())
		switch {
		case err != nil:
			c.logger.Warn("Commit ledger unavailable, relying on idempotency header",
				zap.Int64("product_id", line.ProductID),
				zap.Error(err))
		case mark.Record != nil:
			return mark.Record, true, nil
		case !mark.PendingSince.IsZero():
			record, err := c.resolvePending(ctx, patientID, line, mark.PendingSince)
			if err != nil {
				return nil, false, err
			}
			if record != nil {
				c.remember(ctx, line, record)
				return record, true, nil
			}
		}
	}

	record, err := c.dispenser.CreateDispensation(ctx, domain.DispensationRequest{
		PatientID:      patientID,
		ProductID:      line.ProductID,
		Quantity:       line.Quantity,
		IdempotencyKey: line.IdempotencyKey,
	})
	if err != nil {
		c.release(ctx, line, err)
		return nil, false, err
	}
	if record == nil {
		return nil, false, &domain.RejectionError{Kind: domain.RejectionServer, Detail: "empty dispensation response"}
	}

	c.remember(ctx, line, record)
	return record, false, nil
}

// pendingSkew tolerates clock drift between this process and the collaborator
// when matching a record to the attempt that created it.
const pendingSkew = time.Minute

// resolvePending looks for the record an unanswered attempt may have created.
// It returns nil, nil when the collaborator has no such record.
func (c *Committer) resolvePending(ctx context.Context, patientID int64, line domain.CartLine, since time.Time) (*domain.DispensationRecord, error) {
	if c.lister == nil {
		return nil, nil
	}

	records, err := c.lister.ListDispensations(ctx, patientID)
	if err != nil {
		c.logger.Error("Failed to resolve unanswered dispensation",
			zap.Int64("product_id", line.ProductID),
			zap.Time("pending_since", since),
			zap.Error(err))
		return nil, fmt.Errorf("outcome of earlier attempt unknown: %w", err)
	}

	cutoff := since.Add(-pendingSkew)
	var match *domain.DispensationRecord
	for i := range records {
		r := records[i]
		if r.ProductID != line.ProductID || r.Quantity != line.Quantity || r.DispensedAt.Before(cutoff) {
			continue
		}
		if match == nil || r.DispensedAt.Before(match.DispensedAt) {
			match = &r
		}
	}

	if match != nil {
		c.logger.Info("Recovered dispensation from unanswered attempt",
			zap.Int64("product_id", line.ProductID),
			zap.Int64("dispensation_id", match.DispensationID))
	}
	return match, nil
}

func (c *Committer) remember(ctx context.Context, line domain.CartLine, record *domain.DispensationRecord) {
	if c.ledger == nil {
		return
	}
	if err := c.ledger.Remember(ctx, line.IdempotencyKey, record); err != nil {
		c.logger.Warn("Failed to remember committed line",
			zap.Int64("product_id", line.ProductID),
			zap.Int64("dispensation_id", record.DispensationID),
			zap.Error(err))
	}
}

// release forgets the pending marker only when the collaborator answered with
// a refusal. Anything else may have committed server-side.
func (c *Committer) release(ctx context.Context, line domain.CartLine, cause error) {
	if c.ledger == nil {
		return
	}
	var rej *domain.RejectionError
	if !errors.As(cause, &rej) || !rej.Definitive() {
		return
	}
	if err := c.ledger.Release(ctx, line.IdempotencyKey); err != nil {
		c.logger.Warn("Failed to release ledger entry",
			zap.Int64("product_id", line.ProductID),
			zap.Error(err))
	}
}
