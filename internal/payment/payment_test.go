package payment

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"storefront/internal/purchase"
)

func TestMemoryClient_DebitRecordsCharge(t *testing.T) {
	client := NewMemoryClient(DefaultDeclineLimit)
	transactionID := uuid.New()

	result, err := client.DebitCreditCard(context.Background(), purchase.DebitRequest{
		TransactionID: transactionID,
		CustomerEmail: "customer@example.com",
		Amount:        19.99,
	})
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if result.AuthorizationCode == uuid.Nil {
		t.Fatalf("expected authorization code")
	}
	if result.ChargedAmount != 19.99 {
		t.Fatalf("expected charged amount 19.99, got %.2f", result.ChargedAmount)
	}
	if client.ChargeCount(transactionID) != 1 {
		t.Fatalf("expected one recorded charge")
	}
}

func TestMemoryClient_DebitAboveLimitIsDeclined(t *testing.T) {
	client := NewMemoryClient(DefaultDeclineLimit)
	transactionID := uuid.New()

	_, err := client.DebitCreditCard(context.Background(), purchase.DebitRequest{
		TransactionID: transactionID,
		CustomerEmail: "customer@example.com",
		Amount:        20.01,
	})
	if purchase.KindOf(err) != purchase.KindPaymentDeclined {
		t.Fatalf("expected declined, got %v", err)
	}
	if client.ChargeCount(transactionID) != 0 {
		t.Fatalf("declined debit must not record a charge")
	}
}

func TestMemoryClient_DebitBadCustomerEmail(t *testing.T) {
	client := NewMemoryClient(DefaultDeclineLimit)

	_, err := client.DebitCreditCard(context.Background(), purchase.DebitRequest{
		TransactionID: uuid.New(),
		CustomerEmail: "BAD_customer@example.com",
		Amount:        5.0,
	})
	if purchase.KindOf(err) != purchase.KindBadPaymentInfo {
		t.Fatalf("expected bad payment info, got %v", err)
	}
}

func TestMemoryClient_ReverseMarksAllCharges(t *testing.T) {
	client := NewMemoryClient(100.0)
	transactionID := uuid.New()

	for i := 0; i < 3; i++ {
		if _, err := client.DebitCreditCard(context.Background(), purchase.DebitRequest{
			TransactionID: transactionID,
			CustomerEmail: "customer@example.com",
			Amount:        10.0,
		}); err != nil {
			t.Fatalf("debit %d: %v", i, err)
		}
	}

	if err := client.ReversePaymentTransactions(context.Background(), purchase.ReverseRequest{
		TransactionID: transactionID,
	}); err != nil {
		t.Fatalf("reverse: %v", err)
	}
	if client.ReversedCount(transactionID) != 3 {
		t.Fatalf("expected all charges reversed, got %d", client.ReversedCount(transactionID))
	}
}

func TestMemoryClient_ReverseWithoutChargesIsNoop(t *testing.T) {
	client := NewMemoryClient(DefaultDeclineLimit)

	if err := client.ReversePaymentTransactions(context.Background(), purchase.ReverseRequest{
		TransactionID: uuid.New(),
	}); err != nil {
		t.Fatalf("reverse without charges must succeed, got %v", err)
	}
}
