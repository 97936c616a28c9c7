package purchase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func testGateway(retry RetryPolicy) *Gateway {
	return NewGateway(GatewayConfig{
		CallTimeout: time.Second,
		QueueDepth:  4,
		Workers:     2,
		Retry:       retry,
	}, discardLogger(), nil)
}

func immediateRetry(maxAttempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Millisecond,
		Jitter:      func(d time.Duration) time.Duration { return d },
		Sleep:       func(context.Context, time.Duration) error { return nil },
	}
}

func TestGateway_InvokeSuccess(t *testing.T) {
	g := testGateway(immediateRetry(1))
	defer g.Close()

	calls := 0
	err := g.Invoke(context.Background(), CapabilityShipping, "createTrackingNumber", func(context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestGateway_RetriesTransientFailures(t *testing.T) {
	g := testGateway(immediateRetry(3))
	defer g.Close()

	calls := 0
	err := g.Invoke(context.Background(), CapabilityInventory, "checkInventory", func(context.Context) error {
		calls++
		if calls < 3 {
			return NewError(KindTransient, "checkInventory", "flaky")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestGateway_BusinessFailureSurfacesImmediately(t *testing.T) {
	g := testGateway(immediateRetry(5))
	defer g.Close()

	calls := 0
	declined := NewError(KindPaymentDeclined, "debitCreditCard", "over limit")
	err := g.Invoke(context.Background(), CapabilityPayment, "debitCreditCard", func(context.Context) error {
		calls++
		return declined
	})
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}

	var call *CallError
	if !errors.As(err, &call) {
		t.Fatalf("expected CallError wrapping, got %v", err)
	}
	if call.Capability != CapabilityPayment || call.Attempts != 1 {
		t.Fatalf("unexpected call error: %+v", call)
	}
	if KindOf(err) != KindPaymentDeclined {
		t.Fatalf("kind lost through wrapping: %v", err)
	}
}

func TestGateway_ExhaustedRetriesKeepTransientKind(t *testing.T) {
	g := testGateway(immediateRetry(3))
	defer g.Close()

	calls := 0
	err := g.Invoke(context.Background(), CapabilityOrderLedger, "createOrder", func(context.Context) error {
		calls++
		return NewError(KindTransient, "createOrder", "unavailable")
	})
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if Classify(err) != ReasonSystemError {
		t.Fatalf("expected SYSTEM_ERROR classification, got %s", Classify(err))
	}
}

func TestGateway_PerCallTimeoutIsRetried(t *testing.T) {
	g := NewGateway(GatewayConfig{
		CallTimeout: 5 * time.Millisecond,
		QueueDepth:  1,
		Workers:     1,
		Retry:       immediateRetry(2),
	}, discardLogger(), nil)
	defer g.Close()

	calls := 0
	err := g.Invoke(context.Background(), CapabilityShipping, "createTrackingNumber", func(ctx context.Context) error {
		calls++
		if calls == 1 {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success on second attempt, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestGateway_CancellationPropagates(t *testing.T) {
	g := testGateway(immediateRetry(3))
	defer g.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := g.Invoke(ctx, CapabilityNotification, "sendOrderReceived", func(context.Context) error {
		return nil
	})
	if !IsCancellation(err) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestGateway_CapabilitiesAreIsolated(t *testing.T) {
	g := NewGateway(GatewayConfig{
		CallTimeout: time.Second,
		QueueDepth:  1,
		Workers:     1,
		Retry:       immediateRetry(1),
	}, discardLogger(), nil)
	defer g.Close()

	// Occupy the payment queue's only worker.
	block := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = g.Invoke(context.Background(), CapabilityPayment, "debitCreditCard", func(context.Context) error {
			<-block
			return nil
		})
	}()

	// A different capability must still make progress.
	done := make(chan error, 1)
	go func() {
		done <- g.Invoke(context.Background(), CapabilityShipping, "createTrackingNumber", func(context.Context) error {
			return nil
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("shipping call starved by payment backlog")
	}

	close(block)
	wg.Wait()
}

func TestGateway_ObserverSeesOutcome(t *testing.T) {
	var observed []string
	var outcomes []error
	observe := func(capability Capability, op string) func(error) {
		observed = append(observed, string(capability)+"/"+op)
		return func(err error) { outcomes = append(outcomes, err) }
	}

	g := NewGateway(GatewayConfig{
		CallTimeout: time.Second,
		QueueDepth:  1,
		Workers:     1,
		Retry:       immediateRetry(1),
	}, discardLogger(), observe)
	defer g.Close()

	_ = g.Invoke(context.Background(), CapabilityInventory, "checkInventory", func(context.Context) error {
		return nil
	})

	if len(observed) != 1 || observed[0] != "inventory/checkInventory" {
		t.Fatalf("unexpected observations: %v", observed)
	}
	if len(outcomes) != 1 || outcomes[0] != nil {
		t.Fatalf("unexpected outcomes: %v", outcomes)
	}
}

func TestGateway_ClosedGatewayFailsFast(t *testing.T) {
	g := testGateway(immediateRetry(1))
	g.Close()

	err := g.Invoke(context.Background(), CapabilityPayment, "debitCreditCard", func(context.Context) error {
		return nil
	})
	if err == nil {
		t.Fatalf("expected error from closed gateway")
	}
}
