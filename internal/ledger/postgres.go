package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"storefront/internal/purchase"
)

// PostgresStore persists order records in Postgres. Conflicting writes to
// the same order are serialized with a row-level exclusive lock.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a Store backed by Postgres.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresStoreWithSchema initializes the schema then returns the store.
func NewPostgresStoreWithSchema(ctx context.Context, db *sql.DB) (*PostgresStore, error) {
	store := NewPostgresStore(db)
	if err := store.InitSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// InitSchema creates the order tables if they do not exist.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			transaction_id UUID PRIMARY KEY,
			order_number TEXT UNIQUE NOT NULL,
			status TEXT NOT NULL,
			failure_reason TEXT NOT NULL DEFAULT 'NONE',
			customer_email TEXT NOT NULL,
			order_date TIMESTAMPTZ NOT NULL,
			requested_by_user TEXT,
			requested_by_host TEXT,
			order_total DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS order_line_items (
			id BIGSERIAL PRIMARY KEY,
			transaction_id UUID NOT NULL,
			product_sku TEXT NOT NULL,
			quantity INT NOT NULL,
			unit_price DOUBLE PRECISION NOT NULL,
			FOREIGN KEY (transaction_id) REFERENCES orders(transaction_id) ON DELETE CASCADE
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	return nil
}

// CreateOrder opens a PENDING order, or returns the existing one when the
// saga replays. A terminal record rejects the attempt with a conflict.
func (s *PostgresStore) CreateOrder(ctx context.Context, req purchase.CreateOrderRequest) (purchase.CreateOrderResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return purchase.CreateOrderResult{}, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		SELECT order_number, status
		FROM orders
		WHERE transaction_id = $1
		FOR UPDATE`,
		req.TransactionID,
	)

	var orderNumber, status string
	switch scanErr := row.Scan(&orderNumber, &status); {
	case scanErr == nil:
		existing := purchase.OrderStatus(status)
		if existing != purchase.StatusPending {
			return purchase.CreateOrderResult{}, conflictErr(req.TransactionID, orderNumber)
		}
		// Replay path: same order number as the first attempt.
		if err := tx.Commit(); err != nil {
			return purchase.CreateOrderResult{}, err
		}
		return purchase.CreateOrderResult{OrderNumber: orderNumber, Status: existing}, nil
	case errors.Is(scanErr, sql.ErrNoRows):
	default:
		return purchase.CreateOrderResult{}, scanErr
	}

	orderNumber = NewOrderNumber()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO orders (transaction_id, order_number, status, customer_email, order_date, requested_by_user, requested_by_host)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		req.TransactionID, orderNumber, string(purchase.StatusPending),
		req.CustomerEmail, req.OrderDate, req.RequestedByUser, req.RequestedByHost,
	); err != nil {
		return purchase.CreateOrderResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return purchase.CreateOrderResult{}, err
	}

	return purchase.CreateOrderResult{OrderNumber: orderNumber, Status: purchase.StatusPending}, nil
}

// MarkOrderAsComplete replaces the line items and total and moves the order
// to COMPLETED, under a row lock held for the whole write.
func (s *PostgresStore) MarkOrderAsComplete(ctx context.Context, req purchase.CompleteOrderRequest) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		SELECT status
		FROM orders
		WHERE transaction_id = $1 AND order_number = $2
		FOR UPDATE`,
		req.TransactionID, req.OrderNumber,
	)

	var status string
	switch scanErr := row.Scan(&status); {
	case errors.Is(scanErr, sql.ErrNoRows):
		return notFoundErr("markOrderAsComplete", req.TransactionID)
	case scanErr != nil:
		return scanErr
	}
	if purchase.OrderStatus(status).Terminal() {
		return conflictErr(req.TransactionID, req.OrderNumber)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM order_line_items WHERE transaction_id = $1`,
		req.TransactionID,
	); err != nil {
		return err
	}
	for _, p := range req.Products {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_line_items (transaction_id, product_sku, quantity, unit_price)
			VALUES ($1, $2, $3, $4)`,
			req.TransactionID, p.Sku, p.Quantity, p.Price,
		); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, order_total = $3, updated_at = NOW()
		WHERE transaction_id = $1`,
		req.TransactionID, string(purchase.StatusCompleted), req.OrderTotal,
	); err != nil {
		return err
	}

	return tx.Commit()
}

// MarkOrderAsFailed records the failure reason. Lookup is by order number
// when present, otherwise by transaction id.
func (s *PostgresStore) MarkOrderAsFailed(ctx context.Context, req purchase.FailOrderRequest) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var row *sql.Row
	if req.OrderNumber != "" {
		row = tx.QueryRowContext(ctx, `
			SELECT transaction_id, status FROM orders WHERE order_number = $1 FOR UPDATE`,
			req.OrderNumber,
		)
	} else {
		row = tx.QueryRowContext(ctx, `
			SELECT transaction_id, status FROM orders WHERE transaction_id = $1 FOR UPDATE`,
			req.TransactionID,
		)
	}

	var transactionID uuid.UUID
	var status string
	switch scanErr := row.Scan(&transactionID, &status); {
	case errors.Is(scanErr, sql.ErrNoRows):
		return notFoundErr("markOrderAsFailed", req.TransactionID)
	case scanErr != nil:
		return scanErr
	}
	if purchase.OrderStatus(status).Terminal() {
		return conflictErr(transactionID, req.OrderNumber)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, failure_reason = $3, updated_at = NOW()
		WHERE transaction_id = $1`,
		transactionID, string(purchase.StatusFailed), string(req.Reason),
	); err != nil {
		return err
	}

	return tx.Commit()
}

// GetOrderByTransactionID loads one order with its line items.
func (s *PostgresStore) GetOrderByTransactionID(ctx context.Context, transactionID uuid.UUID) (Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT transaction_id, order_number, status, failure_reason, customer_email,
		       order_date, requested_by_user, requested_by_host, order_total, created_at, updated_at
		FROM orders
		WHERE transaction_id = $1`,
		transactionID,
	)

	var record Record
	var status, reason string
	err := row.Scan(
		&record.TransactionID, &record.OrderNumber, &status, &reason, &record.CustomerEmail,
		&record.OrderDate, &record.RequestedByUser, &record.RequestedByHost,
		&record.OrderTotal, &record.CreatedAt, &record.UpdatedAt,
	)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return Record{}, notFoundErr("getOrder", transactionID)
	case err != nil:
		return Record{}, err
	}
	record.Status = purchase.OrderStatus(status)
	record.FailureReason = purchase.FailureReason(reason)

	rows, err := s.db.QueryContext(ctx, `
		SELECT product_sku, quantity, unit_price
		FROM order_line_items
		WHERE transaction_id = $1
		ORDER BY id`,
		transactionID,
	)
	if err != nil {
		return Record{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var p purchase.Product
		if err := rows.Scan(&p.Sku, &p.Quantity, &p.Price); err != nil {
			return Record{}, err
		}
		record.LineItems = append(record.LineItems, p)
	}
	if err := rows.Err(); err != nil {
		return Record{}, fmt.Errorf("scan line items: %w", err)
	}

	return record, nil
}
