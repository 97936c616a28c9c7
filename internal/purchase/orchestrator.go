package purchase

import (
	"context"
	"log/slog"
)

// Invoker dispatches a collaborator call onto its capability queue.
type Invoker interface {
	Invoke(ctx context.Context, capability Capability, op string, fn func(context.Context) error) error
}

// Orchestrator runs the purchase saga: the ordered step sequence, the
// compensation stack, and the terminal COMPLETED/FAILED decision.
//
// Steps, in order:
//  1. validate the transaction context
//  2. send the order-received acknowledgement
//  3. create the order record (idempotent, see the ledger contract)
//  4. compute the order total
//  5. debit the credit card, registering the payment reversal first
//  6. check inventory (checking, not consuming: no compensation)
//  7. request a tracking number
//  8. finalize the order and send the success notification
//
// Any failure from step 2 onward is caught once at the top: compensations
// unwind on a context detached from cancellation, the failure is classified
// and written to the ledger (unless the failure is a cancellation), and the
// original error is re-raised to the caller.
type Orchestrator struct {
	invoker       Invoker
	ledger        OrderLedgerClient
	payments      PaymentClient
	inventory     InventoryClient
	shipping      ShippingClient
	notifications NotificationClient
	status        StatusPublisher
	log           *slog.Logger
}

// NewOrchestrator constructs an Orchestrator. status may be nil.
func NewOrchestrator(
	invoker Invoker,
	ledger OrderLedgerClient,
	payments PaymentClient,
	inventory InventoryClient,
	shipping ShippingClient,
	notifications NotificationClient,
	status StatusPublisher,
	log *slog.Logger,
) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		invoker:       invoker,
		ledger:        ledger,
		payments:      payments,
		inventory:     inventory,
		shipping:      shipping,
		notifications: notifications,
		status:        status,
		log:           log,
	}
}

// PlaceOrder executes the purchase saga for one transaction. The returned
// error is always the original triggering failure; cleanup failures are
// logged, never propagated in its place.
func (o *Orchestrator) PlaceOrder(ctx context.Context, txCtx TransactionContext) error {
	if err := txCtx.Validate(); err != nil {
		return err
	}

	saga := NewSaga(o.log)

	if err := o.run(ctx, &txCtx, saga); err != nil {
		o.log.ErrorContext(ctx, "purchase saga failed",
			"transaction_id", txCtx.TransactionID, "error", err)

		// Cleanup must finish even when the trigger was a cancellation.
		cleanupCtx := context.WithoutCancel(ctx)
		o.cleanup(cleanupCtx, err, saga, txCtx)
		return err
	}

	o.log.InfoContext(ctx, "purchase saga completed",
		"transaction_id", txCtx.TransactionID, "order_number", txCtx.OrderNumber)
	return nil
}

func (o *Orchestrator) run(ctx context.Context, tx *TransactionContext, saga *Saga) error {
	if err := o.sendOrderReceived(ctx, *tx); err != nil {
		return err
	}

	created, err := o.createOrder(ctx, *tx)
	if err != nil {
		return err
	}
	*tx = tx.WithOrder(created.OrderNumber, created.Status)
	o.publishStatus(*tx, created.Status, ReasonNone)

	*tx = tx.WithTotal(TotalPrice(tx.Products))

	if err := o.debitCreditCard(ctx, saga, *tx); err != nil {
		return err
	}

	if err := o.checkInventory(ctx, *tx); err != nil {
		return err
	}

	trackingNumber, err := o.createTrackingNumber(ctx, *tx)
	if err != nil {
		return err
	}
	*tx = tx.WithTrackingNumber(trackingNumber)

	return o.completeOrder(ctx, *tx)
}

func (o *Orchestrator) sendOrderReceived(ctx context.Context, tx TransactionContext) error {
	o.log.InfoContext(ctx, "sending order received notification", "transaction_id", tx.TransactionID)
	req := ReceivedNotification{
		TransactionID: tx.TransactionID,
		CustomerEmail: tx.CustomerEmail,
		OrderDate:     tx.RequestDate,
		Products:      tx.Products,
	}
	return o.invoker.Invoke(ctx, CapabilityNotification, "sendOrderReceived", func(ctx context.Context) error {
		return o.notifications.SendOrderReceived(ctx, req)
	})
}

func (o *Orchestrator) createOrder(ctx context.Context, tx TransactionContext) (CreateOrderResult, error) {
	o.log.InfoContext(ctx, "creating order record", "transaction_id", tx.TransactionID)
	req := CreateOrderRequest{
		TransactionID:   tx.TransactionID,
		CustomerEmail:   tx.CustomerEmail,
		OrderDate:       tx.RequestDate,
		Products:        tx.Products,
		RequestedByUser: tx.RequestedByUser,
		RequestedByHost: tx.RequestedByHost,
	}
	var result CreateOrderResult
	err := o.invoker.Invoke(ctx, CapabilityOrderLedger, "createOrder", func(ctx context.Context) error {
		var callErr error
		result, callErr = o.ledger.CreateOrder(ctx, req)
		return callErr
	})
	return result, err
}

func (o *Orchestrator) debitCreditCard(ctx context.Context, saga *Saga, tx TransactionContext) error {
	// The reversal is registered before the debit is attempted, so any
	// failure past this point is guaranteed compensable.
	reverseReq := ReverseRequest{
		TransactionID:   tx.TransactionID,
		RequestedByUser: tx.RequestedByUser,
		RequestedByHost: tx.RequestedByHost,
	}
	saga.Register("reverse-payment-transactions", func(ctx context.Context) error {
		return o.invoker.Invoke(ctx, CapabilityPayment, "reversePaymentTransactions", func(ctx context.Context) error {
			return o.payments.ReversePaymentTransactions(ctx, reverseReq)
		})
	})

	o.log.InfoContext(ctx, "debiting credit card",
		"transaction_id", tx.TransactionID, "amount", tx.OrderTotal)
	debitReq := DebitRequest{
		TransactionID:   tx.TransactionID,
		CreditCard:      tx.CreditCard,
		Amount:          tx.OrderTotal,
		CustomerEmail:   tx.CustomerEmail,
		RequestedByUser: tx.RequestedByUser,
		RequestedByHost: tx.RequestedByHost,
	}
	err := o.invoker.Invoke(ctx, CapabilityPayment, "debitCreditCard", func(ctx context.Context) error {
		_, callErr := o.payments.DebitCreditCard(ctx, debitReq)
		return callErr
	})
	if err != nil {
		switch KindOf(err) {
		case KindPaymentDeclined, KindBadPaymentInfo:
			// The processor definitively refused this charge, so there is
			// nothing to reverse. Transient or unknown debit failures keep
			// the reversal registered because the outcome is unknown.
			saga.Pop()
		}
	}
	return err
}

func (o *Orchestrator) checkInventory(ctx context.Context, tx TransactionContext) error {
	o.log.InfoContext(ctx, "checking inventory",
		"transaction_id", tx.TransactionID, "products", len(tx.Products))
	return o.invoker.Invoke(ctx, CapabilityInventory, "checkInventory", func(ctx context.Context) error {
		return o.inventory.CheckInventory(ctx, tx.Products)
	})
}

func (o *Orchestrator) createTrackingNumber(ctx context.Context, tx TransactionContext) (string, error) {
	o.log.InfoContext(ctx, "requesting tracking number", "transaction_id", tx.TransactionID)
	var trackingNumber string
	err := o.invoker.Invoke(ctx, CapabilityShipping, "createTrackingNumber", func(ctx context.Context) error {
		var callErr error
		trackingNumber, callErr = o.shipping.CreateTrackingNumber(ctx, tx.Products)
		return callErr
	})
	return trackingNumber, err
}

func (o *Orchestrator) completeOrder(ctx context.Context, tx TransactionContext) error {
	o.log.InfoContext(ctx, "marking order as complete",
		"transaction_id", tx.TransactionID, "order_number", tx.OrderNumber)
	completeReq := CompleteOrderRequest{
		TransactionID: tx.TransactionID,
		OrderNumber:   tx.OrderNumber,
		OrderTotal:    tx.OrderTotal,
		Products:      tx.Products,
	}
	err := o.invoker.Invoke(ctx, CapabilityOrderLedger, "markOrderAsComplete", func(ctx context.Context) error {
		return o.ledger.MarkOrderAsComplete(ctx, completeReq)
	})
	if err != nil {
		return err
	}
	o.publishStatus(tx, StatusCompleted, ReasonNone)

	successReq := SuccessNotification{
		TransactionID:  tx.TransactionID,
		CustomerEmail:  tx.CustomerEmail,
		OrderNumber:    tx.OrderNumber,
		OrderDate:      tx.RequestDate,
		Products:       tx.Products,
		OrderTotal:     tx.OrderTotal,
		TrackingNumber: tx.TrackingNumber,
	}
	return o.invoker.Invoke(ctx, CapabilityNotification, "sendOrderSuccess", func(ctx context.Context) error {
		return o.notifications.SendOrderSuccess(ctx, successReq)
	})
}

// cleanup unwinds compensations and, unless the saga was cancelled, records
// the classified failure on the order and notifies the customer.
func (o *Orchestrator) cleanup(ctx context.Context, cause error, saga *Saga, tx TransactionContext) {
	o.log.InfoContext(ctx, "performing cleanup", "transaction_id", tx.TransactionID)

	saga.Compensate(ctx)

	// A cancellation is an operator-initiated abort, not a business
	// failure: no failure record, no error notification.
	if IsCancellation(cause) {
		o.log.InfoContext(ctx, "saga cancelled, skipping failure record",
			"transaction_id", tx.TransactionID)
		return
	}

	o.failOrder(ctx, cause, tx)
	o.log.InfoContext(ctx, "finished cleanup", "transaction_id", tx.TransactionID)
}

func (o *Orchestrator) failOrder(ctx context.Context, cause error, tx TransactionContext) {
	reason := Classify(cause)
	o.log.InfoContext(ctx, "marking order as failed",
		"transaction_id", tx.TransactionID, "order_number", tx.OrderNumber, "reason", string(reason))

	failReq := FailOrderRequest{
		TransactionID: tx.TransactionID,
		OrderNumber:   tx.OrderNumber,
		Reason:        reason,
	}
	err := o.invoker.Invoke(ctx, CapabilityOrderLedger, "markOrderAsFailed", func(ctx context.Context) error {
		return o.ledger.MarkOrderAsFailed(ctx, failReq)
	})
	if err != nil {
		// Failures before order creation leave nothing to mark; anything
		// else is logged and suppressed so the original failure survives.
		o.log.ErrorContext(ctx, "could not mark order as failed",
			"transaction_id", tx.TransactionID, "error", err)
	} else {
		o.publishStatus(tx, StatusFailed, reason)
	}

	errReq := ErrorNotification{
		TransactionID: tx.TransactionID,
		CustomerEmail: tx.CustomerEmail,
		OrderNumber:   tx.OrderNumber,
		OrderDate:     tx.RequestDate,
	}
	err = o.invoker.Invoke(ctx, CapabilityNotification, "sendOrderError", func(ctx context.Context) error {
		return o.notifications.SendOrderError(ctx, errReq)
	})
	if err != nil {
		o.log.ErrorContext(ctx, "could not send order error notification",
			"transaction_id", tx.TransactionID, "error", err)
	}
}

func (o *Orchestrator) publishStatus(tx TransactionContext, status OrderStatus, reason FailureReason) {
	if o.status == nil {
		return
	}
	o.status.PublishStatus(tx.TransactionID, tx.OrderNumber, status, reason)
}
