package warehouse

import (
	"context"
	"sync"

	"storefront/internal/purchase"
)

// MemoryClient serves inventory checks from an in-memory stock table.
type MemoryClient struct {
	mu    sync.RWMutex
	stock map[string]int
}

// NewMemoryClient constructs an in-memory inventory client.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{stock: make(map[string]int)}
}

// SetStock sets the available quantity for a sku.
func (c *MemoryClient) SetStock(sku string, quantity int) {
	c.mu.Lock()
	c.stock[sku] = quantity
	c.mu.Unlock()
}

// CheckInventory verifies every ordered line can be covered by available
// stock. A sku the warehouse has never heard of counts as out of stock.
func (c *MemoryClient) CheckInventory(ctx context.Context, products []purchase.Product) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var short []string
	for _, product := range products {
		if c.stock[product.Sku] < product.Quantity {
			short = append(short, product.Sku)
		}
	}
	if len(short) > 0 {
		return outOfStockError(short)
	}
	return nil
}
