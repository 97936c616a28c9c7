package purchase

import (
	"context"
	"log/slog"
	"sync"
)

// CompensationFunc is a deferred undo operation. Everything it needs to run
// must be bound at registration time.
type CompensationFunc func(ctx context.Context) error

type compensation struct {
	name string
	fn   CompensationFunc
}

// Saga is an ordered stack of compensations. Register pushes an undo action
// before the corresponding risk is taken; Compensate unwinds the stack in
// reverse registration order, best-effort.
type Saga struct {
	mu    sync.Mutex
	stack []compensation
	log   *slog.Logger
}

// NewSaga constructs an empty compensation stack.
func NewSaga(log *slog.Logger) *Saga {
	if log == nil {
		log = slog.Default()
	}
	return &Saga{log: log}
}

// Register pushes an undo action onto the stack.
func (s *Saga) Register(name string, fn CompensationFunc) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.stack = append(s.stack, compensation{name: name, fn: fn})
	s.mu.Unlock()
}

// Pop removes and discards the most recently registered action. Used when
// the step the action was guarding is known to have definitively not taken
// effect, so there is nothing to undo.
func (s *Saga) Pop() {
	s.mu.Lock()
	if n := len(s.stack); n > 0 {
		s.stack = s.stack[:n-1]
	}
	s.mu.Unlock()
}

// Len reports the number of registered, not-yet-executed compensations.
func (s *Saga) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stack)
}

// Compensate pops and executes every registered action in reverse order.
// A failing compensation is logged and swallowed so it can neither stop the
// remaining actions nor mask the failure that triggered the unwind. Calling
// Compensate with an empty stack is a no-op.
func (s *Saga) Compensate(ctx context.Context) {
	s.mu.Lock()
	stack := s.stack
	s.stack = nil
	s.mu.Unlock()

	for i := len(stack) - 1; i >= 0; i-- {
		action := stack[i]
		s.log.InfoContext(ctx, "running compensation", "action", action.name)
		if err := action.fn(ctx); err != nil {
			s.log.ErrorContext(ctx, "compensation failed", "action", action.name, "error", err)
		}
	}
}
