package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cloud-wave-best-zizon/pharmacy-pos/internal/domain"
	"go.uber.org/zap"
)

type InventoryClient struct {
	rest restClient
}

func NewInventoryClient(baseURL string, httpClient *http.Client, tokens TokenSource, logger *zap.Logger) *InventoryClient {
	return &InventoryClient{rest: newRESTClient(baseURL, httpClient, tokens, logger)}
}

// ListProducts returns the full catalog in the collaborator's order.
func (c *InventoryClient) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var items []productWire
	if err := c.rest.do(ctx, http.MethodGet, "/", nil, nil, &items); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	products := make([]domain.Product, 0, len(items))
	for _, it := range items {
		products = append(products, it.toDomain())
	}
	return products, nil
}
