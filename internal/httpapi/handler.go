// Package httpapi is the HTTP ingress: it accepts purchase requests, hands
// them to the saga, and serves order lookups and the realtime status feed.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"storefront/internal/correlation"
	"storefront/internal/ledger"
	"storefront/internal/purchase"
	"storefront/internal/realtime"
)

// PurchasePlacer runs the purchase saga for one transaction.
type PurchasePlacer interface {
	PlaceOrder(ctx context.Context, txCtx purchase.TransactionContext) error
}

// Handler serves the purchase API.
type Handler struct {
	placer   PurchasePlacer
	store    ledger.Store
	hub      *realtime.Hub
	upgrader websocket.Upgrader
	log      *slog.Logger
	now      func() time.Time
}

// NewHandler constructs a Handler. hub may be nil to disable the feed.
func NewHandler(placer PurchasePlacer, store ledger.Store, hub *realtime.Hub, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		placer: placer,
		store:  store,
		hub:    hub,
		log:    log,
		now:    time.Now,
	}
}

// PlacePurchase accepts a purchase request, validates it, and runs the saga
// detached from the request lifetime. The caller gets 202 with the
// transaction id and polls /orders/{transactionId} for the outcome.
func (h *Handler) PlacePurchase(w http.ResponseWriter, r *http.Request) {
	var req PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	keys, _ := correlation.FromContext(r.Context())
	txCtx := purchase.TransactionContext{
		TransactionID:   uuid.New(),
		RequestDate:     h.now(),
		CustomerEmail:   req.CustomerEmail,
		CreditCard:      req.CreditCard,
		Products:        req.Products,
		RequestedByUser: keys.OriginUser,
		RequestedByHost: keys.OriginHost,
		Status:          purchase.StatusPending,
	}
	if err := txCtx.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	h.log.InfoContext(r.Context(), "purchase accepted",
		"transaction_id", txCtx.TransactionID, "customer_email", txCtx.CustomerEmail)

	// Detach from the request so sending the 202 does not cancel the saga.
	// Correlation keys survive the detach.
	sagaCtx := context.WithoutCancel(r.Context())
	go func() {
		if err := h.placer.PlaceOrder(sagaCtx, txCtx); err != nil {
			h.log.ErrorContext(sagaCtx, "purchase failed",
				"transaction_id", txCtx.TransactionID, "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, PurchaseAccepted{
		TransactionID: txCtx.TransactionID.String(),
		Status:        string(purchase.StatusPending),
	})
}

// GetOrder returns the ledger record for one transaction.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	transactionID, err := uuid.Parse(chi.URLParam(r, "transactionId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_transaction_id", err.Error())
		return
	}

	record, err := h.store.GetOrderByTransactionID(r.Context(), transactionID)
	if err != nil {
		if purchase.KindOf(err) == purchase.KindNotFound {
			writeError(w, http.StatusNotFound, "order_not_found", "")
			return
		}
		h.log.ErrorContext(r.Context(), "order lookup failed",
			"transaction_id", transactionID, "error", err)
		writeError(w, http.StatusInternalServerError, "lookup_failed", "")
		return
	}

	writeJSON(w, http.StatusOK, mapRecord(record))
}

// Health is the liveness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// OrdersFeed upgrades to WebSocket and streams order status transitions.
func (h *Handler) OrdersFeed(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		writeError(w, http.StatusNotFound, "feed_disabled", "")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	h.hub.Register <- conn

	// Drain inbound frames so close handshakes are noticed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.hub.Unregister <- conn
				return
			}
		}
	}()
}

func mapRecord(record ledger.Record) OrderResponse {
	resp := OrderResponse{
		TransactionID: record.TransactionID.String(),
		OrderNumber:   record.OrderNumber,
		Status:        string(record.Status),
		CustomerEmail: record.CustomerEmail,
		OrderDate:     record.OrderDate.UTC().Format(time.RFC3339),
		OrderTotal:    record.OrderTotal,
		LineItems:     record.LineItems,
	}
	if record.FailureReason != "" && record.FailureReason != purchase.ReasonNone {
		resp.FailureReason = string(record.FailureReason)
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: msg,
	})
}
