package payment

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"storefront/internal/purchase"
)

// PostgresClient persists payment transactions in Postgres.
type PostgresClient struct {
	db           *sql.DB
	declineLimit float64
}

// NewPostgresClient constructs a payment client backed by Postgres.
func NewPostgresClient(db *sql.DB, declineLimit float64) *PostgresClient {
	return &PostgresClient{db: db, declineLimit: declineLimit}
}

// NewPostgresClientWithSchema initializes the schema then returns the client.
func NewPostgresClientWithSchema(ctx context.Context, db *sql.DB, declineLimit float64) (*PostgresClient, error) {
	client := NewPostgresClient(db, declineLimit)
	if err := client.InitSchema(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

// InitSchema creates the payment transactions table if it does not exist.
func (c *PostgresClient) InitSchema(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS payment_transactions (
			authorization_code UUID PRIMARY KEY,
			transaction_id UUID NOT NULL,
			amount DOUBLE PRECISION NOT NULL,
			customer_email TEXT NOT NULL,
			charged_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			reversed_at TIMESTAMPTZ
		)
	`)
	return err
}

// DebitCreditCard applies the processor rules and records the charge.
func (c *PostgresClient) DebitCreditCard(ctx context.Context, req purchase.DebitRequest) (purchase.DebitResult, error) {
	if err := checkDebit(req, c.declineLimit); err != nil {
		return purchase.DebitResult{}, err
	}

	authorizationCode := uuid.New()
	if _, err := c.db.ExecContext(ctx, `
		INSERT INTO payment_transactions (authorization_code, transaction_id, amount, customer_email)
		VALUES ($1, $2, $3, $4)`,
		authorizationCode, req.TransactionID, req.Amount, req.CustomerEmail,
	); err != nil {
		return purchase.DebitResult{}, err
	}

	return purchase.DebitResult{
		AuthorizationCode: authorizationCode,
		ChargedAmount:     req.Amount,
	}, nil
}

// ReversePaymentTransactions marks every un-reversed charge for the
// transaction as reversed. Zero affected rows is not an error.
func (c *PostgresClient) ReversePaymentTransactions(ctx context.Context, req purchase.ReverseRequest) error {
	_, err := c.db.ExecContext(ctx, `
		UPDATE payment_transactions
		SET reversed_at = NOW()
		WHERE transaction_id = $1 AND reversed_at IS NULL`,
		req.TransactionID,
	)
	return err
}
