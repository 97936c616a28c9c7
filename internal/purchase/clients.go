package purchase

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Capability names one independently-owned collaborator. Each capability is
// routed through its own gateway queue so an outage in one cannot starve
// the others.
type Capability string

const (
	CapabilityNotification Capability = "notification"
	CapabilityOrderLedger  Capability = "order-ledger"
	CapabilityPayment      Capability = "payment"
	CapabilityInventory    Capability = "inventory"
	CapabilityShipping     Capability = "shipping"
)

// CreateOrderRequest asks the order ledger to open a PENDING order.
type CreateOrderRequest struct {
	TransactionID   uuid.UUID
	CustomerEmail   string
	OrderDate       time.Time
	Products        []Product
	RequestedByUser string
	RequestedByHost string
}

// CreateOrderResult is the ledger's idempotent answer: the same transaction
// id observes the same order number on every call while the order is open.
type CreateOrderResult struct {
	OrderNumber string
	Status      OrderStatus
}

// CompleteOrderRequest finalizes an order with its definitive lines and total.
type CompleteOrderRequest struct {
	TransactionID uuid.UUID
	OrderNumber   string
	OrderTotal    float64
	Products      []Product
}

// FailOrderRequest marks an order FAILED with a classified reason.
// OrderNumber may be empty when the saga failed before order creation
// finished; the ledger then falls back to lookup by transaction id.
type FailOrderRequest struct {
	TransactionID uuid.UUID
	OrderNumber   string
	Reason        FailureReason
}

// OrderLedgerClient is the order-ledger collaborator contract.
type OrderLedgerClient interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (CreateOrderResult, error)
	MarkOrderAsComplete(ctx context.Context, req CompleteOrderRequest) error
	MarkOrderAsFailed(ctx context.Context, req FailOrderRequest) error
}

// DebitRequest charges a payment instrument for the computed order total.
type DebitRequest struct {
	TransactionID   uuid.UUID
	CreditCard      CreditCardInfo
	Amount          float64
	CustomerEmail   string
	RequestedByUser string
	RequestedByHost string
}

// DebitResult reports a successful charge.
type DebitResult struct {
	AuthorizationCode uuid.UUID
	ChargedAmount     float64
}

// ReverseRequest undoes every payment transaction recorded for one
// transaction id. Best-effort, non-fatal.
type ReverseRequest struct {
	TransactionID   uuid.UUID
	RequestedByUser string
	RequestedByHost string
}

// PaymentClient is the payment collaborator contract.
type PaymentClient interface {
	DebitCreditCard(ctx context.Context, req DebitRequest) (DebitResult, error)
	ReversePaymentTransactions(ctx context.Context, req ReverseRequest) error
}

// InventoryClient checks (does not consume) stock for the ordered lines.
type InventoryClient interface {
	CheckInventory(ctx context.Context, products []Product) error
}

// ShippingClient issues tracking numbers.
type ShippingClient interface {
	CreateTrackingNumber(ctx context.Context, products []Product) (string, error)
}

// ReceivedNotification acknowledges that the purchase request was accepted.
type ReceivedNotification struct {
	TransactionID uuid.UUID
	CustomerEmail string
	OrderDate     time.Time
	Products      []Product
}

// SuccessNotification reports a completed order.
type SuccessNotification struct {
	TransactionID  uuid.UUID
	CustomerEmail  string
	OrderNumber    string
	OrderDate      time.Time
	Products       []Product
	OrderTotal     float64
	TrackingNumber string
}

// ErrorNotification reports a failed order.
type ErrorNotification struct {
	TransactionID uuid.UUID
	CustomerEmail string
	OrderNumber   string
	OrderDate     time.Time
}

// NotificationClient is the notification collaborator contract.
type NotificationClient interface {
	SendOrderReceived(ctx context.Context, req ReceivedNotification) error
	SendOrderSuccess(ctx context.Context, req SuccessNotification) error
	SendOrderError(ctx context.Context, req ErrorNotification) error
}

// StatusPublisher receives order status transitions for observers, e.g. a
// realtime feed. Implementations must not block the saga.
type StatusPublisher interface {
	PublishStatus(transactionID uuid.UUID, orderNumber string, status OrderStatus, reason FailureReason)
}
