package httpapi

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// Limiter is a token bucket gating the purchase route.
type Limiter struct {
	mu     sync.Mutex
	rate   time.Duration
	burst  int
	now    func() time.Time
	sleep  func(context.Context, time.Duration) error
	onWait func(time.Duration)

	tokens int
	last   time.Time
}

// NewLimiter constructs a Limiter refilling one token per rate interval up
// to burst. onWait observes time spent waiting; may be nil.
func NewLimiter(rate time.Duration, burst int, onWait func(time.Duration)) *Limiter {
	now := time.Now
	limiter := &Limiter{
		rate:   rate,
		burst:  burst,
		now:    now,
		sleep:  sleepWithContext,
		onWait: onWait,
	}
	limiter.tokens = burst
	limiter.last = now()
	return limiter
}

// Wait blocks until a token is available or ctx is done. A nil or disabled
// limiter admits everything.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.rate <= 0 || l.burst <= 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.mu.Lock()
		now := l.now()
		l.refill(now)
		if l.tokens > 0 {
			l.tokens--
			l.mu.Unlock()
			return nil
		}
		wait := l.rate - now.Sub(l.last)
		l.mu.Unlock()
		if wait <= 0 {
			continue
		}
		if l.onWait != nil {
			l.onWait(wait)
		}
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (l *Limiter) refill(now time.Time) {
	if l.rate <= 0 {
		l.tokens = l.burst
		l.last = now
		return
	}
	elapsed := now.Sub(l.last)
	if elapsed < l.rate {
		return
	}
	add := int(elapsed / l.rate)
	if add <= 0 {
		return
	}
	l.tokens += add
	if l.tokens > l.burst {
		l.tokens = l.burst
	}
	l.last = l.last.Add(time.Duration(add) * l.rate)
}

// RateLimit gates requests behind the limiter. A request whose context ends
// while waiting gets 429.
func RateLimit(limiter *Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := limiter.Wait(r.Context()); err != nil {
				writeError(w, http.StatusTooManyRequests, "rate_limited", "request dropped while waiting for admission")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
