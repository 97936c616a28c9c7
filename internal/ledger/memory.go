package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"storefront/internal/purchase"
)

// MemoryStore keeps order records in memory. Used when no database is
// configured, and as the ledger double in tests.
type MemoryStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*Record
	now     func() time.Time
}

// NewMemoryStore constructs an empty in-memory ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[uuid.UUID]*Record),
		now:     time.Now,
	}
}

// CreateOrder opens a PENDING order for the transaction, or returns the
// existing one unchanged when the saga is being replayed. Terminal records
// reject the attempt with a conflict.
func (s *MemoryStore) CreateOrder(ctx context.Context, req purchase.CreateOrderRequest) (purchase.CreateOrderResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.records[req.TransactionID]; ok {
		if existing.Status == purchase.StatusPending {
			return purchase.CreateOrderResult{OrderNumber: existing.OrderNumber, Status: existing.Status}, nil
		}
		return purchase.CreateOrderResult{}, conflictErr(req.TransactionID, existing.OrderNumber)
	}

	now := s.now()
	record := &Record{
		TransactionID:   req.TransactionID,
		OrderNumber:     NewOrderNumber(),
		Status:          purchase.StatusPending,
		FailureReason:   purchase.ReasonNone,
		CustomerEmail:   req.CustomerEmail,
		OrderDate:       req.OrderDate,
		RequestedByUser: req.RequestedByUser,
		RequestedByHost: req.RequestedByHost,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.records[req.TransactionID] = record

	return purchase.CreateOrderResult{OrderNumber: record.OrderNumber, Status: record.Status}, nil
}

// MarkOrderAsComplete finalizes the order with its definitive line items and
// total. The record is looked up by transaction id and order number.
func (s *MemoryStore) MarkOrderAsComplete(ctx context.Context, req purchase.CompleteOrderRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[req.TransactionID]
	if !ok || record.OrderNumber != req.OrderNumber {
		return notFoundErr("markOrderAsComplete", req.TransactionID)
	}
	if record.Status.Terminal() {
		return conflictErr(req.TransactionID, record.OrderNumber)
	}

	record.OrderTotal = req.OrderTotal
	record.LineItems = append([]purchase.Product(nil), req.Products...)
	record.Status = purchase.StatusCompleted
	record.UpdatedAt = s.now()
	return nil
}

// MarkOrderAsFailed records the classified failure reason. When the order
// number is absent (failure before creation finished) lookup falls back to
// the transaction id.
func (s *MemoryStore) MarkOrderAsFailed(ctx context.Context, req purchase.FailOrderRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[req.TransactionID]
	if !ok {
		return notFoundErr("markOrderAsFailed", req.TransactionID)
	}
	if req.OrderNumber != "" && record.OrderNumber != req.OrderNumber {
		return notFoundErr("markOrderAsFailed", req.TransactionID)
	}
	if record.Status.Terminal() {
		return conflictErr(req.TransactionID, record.OrderNumber)
	}

	record.Status = purchase.StatusFailed
	record.FailureReason = req.Reason
	record.UpdatedAt = s.now()
	return nil
}

// GetOrderByTransactionID returns a copy of the stored record.
func (s *MemoryStore) GetOrderByTransactionID(ctx context.Context, transactionID uuid.UUID) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[transactionID]
	if !ok {
		return Record{}, notFoundErr("getOrder", transactionID)
	}
	copied := *record
	copied.LineItems = append([]purchase.Product(nil), record.LineItems...)
	return copied, nil
}
