package service

import (
	"context"

	"go.uber.org/zap"
)

// Reconciler refreshes the snapshot after every commit attempt. Its error is
// reported on its own and never replaces a transaction result.
type Reconciler struct {
	cache  *SnapshotCache
	logger *zap.Logger
}

func NewReconciler(cache *SnapshotCache, logger *zap.Logger) *Reconciler {
	return &Reconciler{cache: cache, logger: logger}
}

func (r *Reconciler) Reconcile(ctx context.Context, transactionID string) error {
	products, err := r.cache.Refresh(ctx)
	if err != nil {
		r.logger.Warn("Reconciliation failed",
			zap.String("transaction_id", transactionID),
			zap.Error(err))
		return err
	}
	r.logger.Debug("Reconciled stock snapshot",
		zap.String("transaction_id", transactionID),
		zap.Int("products", len(products)))
	return nil
}
