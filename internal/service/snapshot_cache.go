package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cloud-wave-best-zizon/pharmacy-pos/internal/domain"
	"go.uber.org/zap"
)

type snapshot struct {
	products  map[int64]domain.Product
	order     []int64
	fetchedAt time.Time
}

// SnapshotCache holds the last fetched product list. Readers always see one
// complete snapshot; a refresh swaps the whole thing.
type SnapshotCache struct {
	catalog ProductCatalog
	logger  *zap.Logger
	current atomic.Pointer[snapshot]
	stale   atomic.Bool

	refreshMu sync.Mutex
	now       func() time.Time
}

func NewSnapshotCache(catalog ProductCatalog, logger *zap.Logger) *SnapshotCache {
	c := &SnapshotCache{
		catalog: catalog,
		logger:  logger,
		now:     time.Now,
	}
	c.current.Store(&snapshot{products: map[int64]domain.Product{}})
	c.stale.Store(true)
	return c
}

// Refresh fetches the product list and replaces the cached set. On failure the
// previous snapshot stays in place and is flagged stale.
func (c *SnapshotCache) Refresh(ctx context.Context) ([]domain.Product, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	products, err := c.catalog.ListProducts(ctx)
	if err != nil {
		c.stale.Store(true)
		c.logger.Warn("Snapshot refresh failed, keeping last known stock",
			zap.Time("fetched_at", c.current.Load().fetchedAt),
			zap.Error(err))
		return nil, &domain.SnapshotError{Cause: err}
	}

	next := &snapshot{
		products:  make(map[int64]domain.Product, len(products)),
		order:     make([]int64, 0, len(products)),
		fetchedAt: c.now(),
	}
	for _, p := range products {
		if _, dup := next.products[p.ProductID]; !dup {
			next.order = append(next.order, p.ProductID)
		}
		next.products[p.ProductID] = p
	}
	c.current.Store(next)
	c.stale.Store(false)

	c.logger.Debug("Snapshot refreshed", zap.Int("products", len(next.order)))

	return snapshotProducts(next), nil
}

func (c *SnapshotCache) Lookup(productID int64) (domain.Product, bool) {
	p, ok := c.current.Load().products[productID]
	return p, ok
}

func (c *SnapshotCache) Products() []domain.Product {
	return snapshotProducts(c.current.Load())
}

func (c *SnapshotCache) FetchedAt() time.Time {
	return c.current.Load().fetchedAt
}

// Stale is true before the first successful refresh and after a failed one.
func (c *SnapshotCache) Stale() bool {
	return c.stale.Load()
}

func snapshotProducts(s *snapshot) []domain.Product {
	out := make([]domain.Product, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.products[id])
	}
	return out
}
