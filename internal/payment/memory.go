package payment

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"storefront/internal/purchase"
)

type charge struct {
	authorizationCode uuid.UUID
	amount            float64
	reversed          bool
}

// MemoryClient records charges and reversals in memory.
type MemoryClient struct {
	mu           sync.Mutex
	charges      map[uuid.UUID][]charge
	declineLimit float64
}

// NewMemoryClient constructs an in-memory payment client.
func NewMemoryClient(declineLimit float64) *MemoryClient {
	return &MemoryClient{
		charges:      make(map[uuid.UUID][]charge),
		declineLimit: declineLimit,
	}
}

// DebitCreditCard records a charge against the transaction.
func (c *MemoryClient) DebitCreditCard(ctx context.Context, req purchase.DebitRequest) (purchase.DebitResult, error) {
	if err := checkDebit(req, c.declineLimit); err != nil {
		return purchase.DebitResult{}, err
	}

	entry := charge{authorizationCode: uuid.New(), amount: req.Amount}
	c.mu.Lock()
	c.charges[req.TransactionID] = append(c.charges[req.TransactionID], entry)
	c.mu.Unlock()

	return purchase.DebitResult{
		AuthorizationCode: entry.authorizationCode,
		ChargedAmount:     entry.amount,
	}, nil
}

// ReversePaymentTransactions reverses every charge recorded for the
// transaction. Reversing a transaction with no charges is a no-op.
func (c *MemoryClient) ReversePaymentTransactions(ctx context.Context, req purchase.ReverseRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.charges[req.TransactionID]
	for i := range entries {
		entries[i].reversed = true
	}
	return nil
}

// ChargeCount reports recorded charges for inspection in tests.
func (c *MemoryClient) ChargeCount(transactionID uuid.UUID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.charges[transactionID])
}

// ReversedCount reports reversed charges for inspection in tests.
func (c *MemoryClient) ReversedCount(transactionID uuid.UUID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for _, entry := range c.charges[transactionID] {
		if entry.reversed {
			count++
		}
	}
	return count
}
