package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"storefront/internal/correlation"
	"storefront/internal/ledger"
	"storefront/internal/purchase"
)

type placerSpy struct {
	mu     sync.Mutex
	placed []purchase.TransactionContext
	done   chan struct{}
	err    error
}

func newPlacerSpy() *placerSpy {
	return &placerSpy{done: make(chan struct{}, 8)}
}

func (p *placerSpy) PlaceOrder(ctx context.Context, txCtx purchase.TransactionContext) error {
	p.mu.Lock()
	p.placed = append(p.placed, txCtx)
	p.mu.Unlock()
	p.done <- struct{}{}
	return p.err
}

func (p *placerSpy) wait(t *testing.T) purchase.TransactionContext {
	t.Helper()
	select {
	case <-p.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("saga never started")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.placed[len(p.placed)-1]
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func validBody() string {
	return `{
		"customerEmail": "customer@example.com",
		"creditCard": {"cardNumber": "4111111111111111", "expiration": "12/30"},
		"products": [{"sku": "A", "quantity": 2, "price": 10.0}]
	}`
}

func TestPlacePurchase_Accepted(t *testing.T) {
	placer := newPlacerSpy()
	handler := NewHandler(placer, ledger.NewMemoryStore(), nil, discardLogger())
	router := NewRouter(handler, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/purchase", strings.NewReader(validBody()))
	req.Header.Set(correlation.HeaderOriginUser, "alice")
	req.Header.Set(correlation.HeaderOriginHost, "host-1")
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp PurchaseAccepted
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, err := uuid.Parse(resp.TransactionID); err != nil {
		t.Fatalf("expected a transaction id, got %q", resp.TransactionID)
	}
	if resp.Status != "PENDING" {
		t.Fatalf("expected PENDING, got %s", resp.Status)
	}

	txCtx := placer.wait(t)
	if txCtx.TransactionID.String() != resp.TransactionID {
		t.Fatalf("saga must run the accepted transaction")
	}
	if txCtx.RequestedByUser != "alice" || txCtx.RequestedByHost != "host-1" {
		t.Fatalf("correlation keys must reach the saga: %+v", txCtx)
	}
}

func TestPlacePurchase_SagaOutlivesRequest(t *testing.T) {
	placer := newPlacerSpy()
	handler := NewHandler(placer, ledger.NewMemoryStore(), nil, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodPost, "/purchase", strings.NewReader(validBody())).WithContext(ctx)
	rr := httptest.NewRecorder()

	Correlation(http.HandlerFunc(handler.PlacePurchase)).ServeHTTP(rr, req)
	cancel() // request context ends once the response is written

	txCtx := placer.wait(t)
	_ = txCtx

	placer.mu.Lock()
	sagaStarted := len(placer.placed) == 1
	placer.mu.Unlock()
	if !sagaStarted {
		t.Fatalf("saga must have started exactly once")
	}
}

func TestPlacePurchase_InvalidJSON(t *testing.T) {
	placer := newPlacerSpy()
	handler := NewHandler(placer, ledger.NewMemoryStore(), nil, discardLogger())
	router := NewRouter(handler, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/purchase", strings.NewReader("{"))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestPlacePurchase_ValidationFailureNeverStartsSaga(t *testing.T) {
	placer := newPlacerSpy()
	handler := NewHandler(placer, ledger.NewMemoryStore(), nil, discardLogger())
	router := NewRouter(handler, nil, nil)

	body := `{"customerEmail": "customer@example.com", "creditCard": {"cardNumber": "4111"}, "products": []}`
	req := httptest.NewRequest(http.MethodPost, "/purchase", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
	select {
	case <-placer.done:
		t.Fatalf("saga must not start for an invalid request")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestGetOrder(t *testing.T) {
	store := ledger.NewMemoryStore()
	transactionID := uuid.New()
	created, err := store.CreateOrder(context.Background(), purchase.CreateOrderRequest{
		TransactionID: transactionID,
		CustomerEmail: "customer@example.com",
		OrderDate:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Products:      []purchase.Product{{Sku: "A", Quantity: 2, Price: 10.0}},
	})
	if err != nil {
		t.Fatalf("seed order: %v", err)
	}

	handler := NewHandler(newPlacerSpy(), store, nil, discardLogger())
	router := NewRouter(handler, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/orders/"+transactionID.String(), nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp OrderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.OrderNumber != created.OrderNumber || resp.Status != "PENDING" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.FailureReason != "" {
		t.Fatalf("pending order must not expose a failure reason")
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	handler := NewHandler(newPlacerSpy(), ledger.NewMemoryStore(), nil, discardLogger())
	router := NewRouter(handler, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/orders/"+uuid.NewString(), nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestGetOrder_BadTransactionID(t *testing.T) {
	handler := NewHandler(newPlacerSpy(), ledger.NewMemoryStore(), nil, discardLogger())
	router := NewRouter(handler, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/orders/not-a-uuid", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestHealthz(t *testing.T) {
	handler := NewHandler(newPlacerSpy(), ledger.NewMemoryStore(), nil, discardLogger())
	router := NewRouter(handler, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestCorrelation_GeneratesRequestID(t *testing.T) {
	var got correlation.Keys
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = correlation.FromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	Correlation(next).ServeHTTP(rr, req)

	if got.RequestID == "" {
		t.Fatalf("request id must be generated when missing")
	}
	if rr.Header().Get(correlation.HeaderRequestID) != got.RequestID {
		t.Fatalf("effective request id must be echoed to the caller")
	}
}

func TestCorrelation_KeepsCallerRequestID(t *testing.T) {
	var got correlation.Keys
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = correlation.FromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(correlation.HeaderRequestID, "req-42")
	rr := httptest.NewRecorder()
	Correlation(next).ServeHTTP(rr, req)

	if got.RequestID != "req-42" {
		t.Fatalf("caller-supplied request id must survive, got %q", got.RequestID)
	}
}

func TestRateLimit_RejectsWhenWaitAborts(t *testing.T) {
	limiter := NewLimiter(time.Minute, 1, nil)
	limiter.sleep = func(context.Context, time.Duration) error {
		return errors.New("context done")
	}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	gated := RateLimit(limiter)(next)

	rr := httptest.NewRecorder()
	gated.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/purchase", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("first request must pass, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	gated.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/purchase", nil))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 once the bucket is empty, got %d", rr.Code)
	}
}

func TestLimiter_RefillsOverTime(t *testing.T) {
	current := time.Now()
	limiter := NewLimiter(time.Second, 1, nil)
	limiter.now = func() time.Time { return current }
	limiter.tokens = 0
	limiter.last = current

	waits := 0
	limiter.sleep = func(ctx context.Context, d time.Duration) error {
		waits++
		current = current.Add(d)
		return nil
	}

	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if waits == 0 {
		t.Fatalf("expected the limiter to wait for a refill")
	}
}

func TestLimiter_DisabledAdmitsEverything(t *testing.T) {
	var limiter *Limiter
	for i := 0; i < 100; i++ {
		if err := limiter.Wait(context.Background()); err != nil {
			t.Fatalf("nil limiter must admit all requests: %v", err)
		}
	}
}
