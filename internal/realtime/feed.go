package realtime

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"storefront/internal/purchase"
)

// StatusEvent is the JSON document pushed to observers on every order
// status transition.
type StatusEvent struct {
	TransactionID string `json:"transactionId"`
	OrderNumber   string `json:"orderNumber,omitempty"`
	Status        string `json:"status"`
	FailureReason string `json:"failureReason,omitempty"`
	At            string `json:"at"`
}

// StatusFeed publishes order status transitions to a Hub. Publishing never
// blocks the caller: when the hub's buffer is full the event is dropped
// and logged.
type StatusFeed struct {
	hub *Hub
	log *slog.Logger
	now func() time.Time
}

// NewStatusFeed constructs a feed publishing to hub.
func NewStatusFeed(hub *Hub, log *slog.Logger) *StatusFeed {
	return &StatusFeed{hub: hub, log: log, now: time.Now}
}

// PublishStatus marshals the transition and hands it to the hub.
func (f *StatusFeed) PublishStatus(transactionID uuid.UUID, orderNumber string, status purchase.OrderStatus, reason purchase.FailureReason) {
	event := StatusEvent{
		TransactionID: transactionID.String(),
		OrderNumber:   orderNumber,
		Status:        string(status),
		At:            f.now().UTC().Format(time.RFC3339),
	}
	if reason != purchase.ReasonNone {
		event.FailureReason = string(reason)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		f.log.Error("marshal status event", "error", err)
		return
	}

	select {
	case f.hub.Broadcast <- payload:
	default:
		f.log.Warn("status feed full, event dropped",
			"transaction_id", event.TransactionID,
			"status", event.Status,
		)
	}
}
