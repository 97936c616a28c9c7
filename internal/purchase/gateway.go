package purchase

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ObserveFunc starts a call observation and returns the completion callback.
// A nil ObserveFunc disables observation.
type ObserveFunc func(capability Capability, op string) func(err error)

// GatewayConfig tunes the per-capability invocation wrapper.
type GatewayConfig struct {
	// CallTimeout bounds each individual invocation attempt, not the whole
	// retry sequence.
	CallTimeout time.Duration
	// QueueDepth is the buffered backlog per capability queue.
	QueueDepth int
	// Workers is the number of concurrent executors per capability queue.
	Workers int
	// Retry applies to every invocation; non-retryable kinds bypass it.
	Retry RetryPolicy
}

// Gateway routes collaborator invocations onto isolated per-capability
// queues and wraps each with a per-call timeout and the retry policy.
// Backpressure or outage in one capability cannot starve the others.
type Gateway struct {
	cfg     GatewayConfig
	log     *slog.Logger
	observe ObserveFunc

	mu     sync.Mutex
	queues map[Capability]*capabilityQueue
	closed bool
}

// NewGateway constructs a Gateway. Queues are created lazily per capability.
func NewGateway(cfg GatewayConfig, log *slog.Logger, observe ObserveFunc) *Gateway {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 30 * time.Second
	}
	if cfg.QueueDepth < 1 {
		cfg.QueueDepth = 64
	}
	if cfg.Workers < 1 {
		cfg.Workers = 4
	}
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{
		cfg:     cfg,
		log:     log,
		observe: observe,
		queues:  make(map[Capability]*capabilityQueue),
	}
}

// Invoke runs fn on the capability's queue. On failure the original error is
// preserved under exactly one layer of CallError wrapping, so callers can
// still inspect its kind.
func (g *Gateway) Invoke(ctx context.Context, capability Capability, op string, fn func(context.Context) error) error {
	finish := func(error) {}
	if g.observe != nil {
		finish = g.observe(capability, op)
	}

	queue, err := g.queue(capability)
	if err != nil {
		finish(err)
		return err
	}

	attempts := 0
	invokeErr := g.cfg.Retry.Do(ctx, func() error {
		attempts++
		return queue.submit(ctx, g.cfg.CallTimeout, fn)
	})
	finish(invokeErr)

	if invokeErr == nil {
		return nil
	}
	g.log.WarnContext(ctx, "gateway call failed",
		"capability", string(capability), "op", op, "attempts", attempts, "error", invokeErr)
	return &CallError{Capability: capability, Op: op, Attempts: attempts, Err: invokeErr}
}

// Close stops all capability workers. Pending submissions fail.
func (g *Gateway) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.closed = true
	for _, q := range g.queues {
		close(q.tasks)
	}
}

func (g *Gateway) queue(capability Capability) (*capabilityQueue, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil, NewError(KindTransient, "gateway", "gateway is closed")
	}
	q, ok := g.queues[capability]
	if !ok {
		q = newCapabilityQueue(g.cfg.QueueDepth, g.cfg.Workers)
		g.queues[capability] = q
	}
	return q, nil
}

type queuedCall struct {
	ctx     context.Context
	timeout time.Duration
	fn      func(context.Context) error
	done    chan error
}

// capabilityQueue is one isolated logical work queue: a bounded backlog
// drained by a fixed set of workers.
type capabilityQueue struct {
	tasks chan queuedCall
}

func newCapabilityQueue(depth, workers int) *capabilityQueue {
	q := &capabilityQueue{tasks: make(chan queuedCall, depth)}
	for i := 0; i < workers; i++ {
		go q.work()
	}
	return q
}

func (q *capabilityQueue) submit(ctx context.Context, timeout time.Duration, fn func(context.Context) error) (err error) {
	defer func() {
		if recover() != nil {
			// Submitting to a closed gateway.
			err = NewError(KindTransient, "gateway", "gateway is closed")
		}
	}()

	call := queuedCall{ctx: ctx, timeout: timeout, fn: fn, done: make(chan error, 1)}
	select {
	case q.tasks <- call:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-call.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *capabilityQueue) work() {
	for call := range q.tasks {
		if err := call.ctx.Err(); err != nil {
			call.done <- err
			continue
		}

		callCtx, cancel := context.WithTimeout(call.ctx, call.timeout)
		err := call.fn(callCtx)
		if err != nil && callCtx.Err() == context.DeadlineExceeded && call.ctx.Err() == nil {
			// Per-call timeout, not caller cancellation: retryable.
			err = WrapError(KindTransient, "gateway", err)
		}
		cancel()
		call.done <- err
	}
}
