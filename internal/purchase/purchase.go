package purchase

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus captures the ledger state of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusCompleted OrderStatus = "COMPLETED"
	StatusFailed    OrderStatus = "FAILED"
	StatusCancelled OrderStatus = "CANCELLED"
)

// Terminal reports whether no further status transition is allowed.
func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// FailureReason classifies why an order ended FAILED. Never free text.
type FailureReason string

const (
	ReasonNone                 FailureReason = "NONE"
	ReasonInsufficientFunds    FailureReason = "INSUFFICIENT_FUNDS"
	ReasonInvalidPaymentMethod FailureReason = "INVALID_PAYMENT_METHOD"
	ReasonSystemError          FailureReason = "SYSTEM_ERROR"
	ReasonOutOfStockItems      FailureReason = "OUT_OF_STOCK_ITEMS"
	ReasonPaymentDeclined      FailureReason = "PAYMENT_DECLINED"
	ReasonUnknown              FailureReason = "UNKNOWN"
)

// MinUnitPrice is the smallest unit price accepted for a product line.
const MinUnitPrice = 1.0

// Product is one ordered line: sku, quantity and unit price.
type Product struct {
	Sku      string  `json:"sku"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// CreditCardInfo is the payment instrument submitted with a purchase.
type CreditCardInfo struct {
	CardNumber string `json:"cardNumber"`
	Expiration string `json:"expiration"`
	CardType   string `json:"cardType,omitempty"`
}

// TransactionContext carries one purchase attempt through the saga.
// It is immutable-with-revision: derived fields are bound by the With*
// methods, which return an updated copy and bump Revision. Nothing is
// mutated in place after being set.
type TransactionContext struct {
	TransactionID   uuid.UUID
	RequestDate     time.Time
	CustomerEmail   string
	CreditCard      CreditCardInfo
	Products        []Product
	RequestedByUser string
	RequestedByHost string

	// Derived as the saga progresses.
	OrderNumber    string
	OrderTotal     float64
	TrackingNumber string
	Status         OrderStatus
	Revision       int
}

// WithOrder binds the ledger-assigned order number and status.
func (t TransactionContext) WithOrder(orderNumber string, status OrderStatus) TransactionContext {
	t.OrderNumber = orderNumber
	t.Status = status
	t.Revision++
	return t
}

// WithTotal binds the computed order total.
func (t TransactionContext) WithTotal(total float64) TransactionContext {
	t.OrderTotal = total
	t.Revision++
	return t
}

// WithTrackingNumber binds the shipper-issued tracking number.
func (t TransactionContext) WithTrackingNumber(trackingNumber string) TransactionContext {
	t.TrackingNumber = trackingNumber
	t.Revision++
	return t
}

// Validate checks the context is internally consistent before the saga runs.
// Violations are fatal and never retried.
func (t TransactionContext) Validate() error {
	if t.TransactionID == uuid.Nil {
		return NewError(KindValidation, "validate", "transaction id is required")
	}
	if t.CustomerEmail == "" {
		return NewError(KindValidation, "validate", "customer email is required")
	}
	if t.CreditCard.CardNumber == "" {
		return NewError(KindValidation, "validate", "credit card number is required")
	}
	if len(t.Products) == 0 {
		return NewError(KindValidation, "validate", "at least one product is required")
	}
	for _, p := range t.Products {
		if p.Sku == "" {
			return NewError(KindValidation, "validate", "product sku is required")
		}
		if p.Quantity < 1 {
			return NewError(KindValidation, "validate", "product quantity must be >= 1")
		}
		if p.Price < MinUnitPrice {
			return NewError(KindValidation, "validate", "product unit price is below the minimum")
		}
	}
	return nil
}

// TotalPrice is the order total over all product lines.
func TotalPrice(products []Product) float64 {
	total := 0.0
	for _, p := range products {
		total += float64(p.Quantity) * p.Price
	}
	return total
}
