// Package ledger owns the order record of truth. It implements the
// idempotent order-creation contract the purchase saga depends on: one
// transaction id maps to at most one order, replays observe the same order
// number, and finalized orders can never be recreated.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"storefront/internal/purchase"
)

// Record is one order row.
type Record struct {
	TransactionID   uuid.UUID
	OrderNumber     string
	Status          purchase.OrderStatus
	FailureReason   purchase.FailureReason
	CustomerEmail   string
	OrderDate       time.Time
	RequestedByUser string
	RequestedByHost string
	OrderTotal      float64
	LineItems       []purchase.Product
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Store is the full order-ledger surface: the saga-facing contract plus the
// read side used by the HTTP API.
type Store interface {
	purchase.OrderLedgerClient
	GetOrderByTransactionID(ctx context.Context, transactionID uuid.UUID) (Record, error)
}

// NewOrderNumber generates a globally unique order number. Randomness lives
// here, on the ledger side, so saga replays observe a stable number.
func NewOrderNumber() string {
	hex := strings.ReplaceAll(uuid.New().String(), "-", "")
	return fmt.Sprintf("ORD-%s-%s-%s", hex[:8], hex[8:12], hex[12:16])
}

func conflictErr(transactionID uuid.UUID, orderNumber string) error {
	return purchase.NewError(purchase.KindConflict, "createOrder",
		fmt.Sprintf("order %s for transaction %s is already finalized", orderNumber, transactionID))
}

func notFoundErr(op string, transactionID uuid.UUID) error {
	return purchase.NewError(purchase.KindNotFound, op,
		fmt.Sprintf("no order found for transaction %s", transactionID))
}
