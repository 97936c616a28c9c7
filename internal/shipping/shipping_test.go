package shipping

import (
	"context"
	"strings"
	"testing"

	"storefront/internal/purchase"
)

func TestClient_CreateTrackingNumber(t *testing.T) {
	client := NewClient()

	products := []purchase.Product{{Sku: "A", Quantity: 1, Price: 5.0}}
	first, err := client.CreateTrackingNumber(context.Background(), products)
	if err != nil {
		t.Fatalf("CreateTrackingNumber: %v", err)
	}
	if !strings.HasPrefix(first, "TRK-") {
		t.Fatalf("unexpected tracking number: %s", first)
	}

	second, err := client.CreateTrackingNumber(context.Background(), products)
	if err != nil {
		t.Fatalf("CreateTrackingNumber: %v", err)
	}
	if first == second {
		t.Fatalf("tracking numbers must be unique, both %s", first)
	}
}

func TestClient_CreateTrackingNumberEmptyOrder(t *testing.T) {
	client := NewClient()

	_, err := client.CreateTrackingNumber(context.Background(), nil)
	if purchase.KindOf(err) != purchase.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
