// Package ratelimit provides per-service token bucket limiters with FIFO
// waiter queues. Each external service gets its own limiter instance,
// constructed once at process start and passed by reference to the
// components that call the service.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/repolens/repolens/pkg/domain/types"
)

// Status is a read-only snapshot of a limiter. Reading it never mutates
// limiter state.
type Status struct {
	Service      types.ServiceName `json:"service"`
	Available    int               `json:"available"`
	Max          int               `json:"max"`
	NextRefillAt time.Time         `json:"next_refill_at"`
	Waiting      int               `json:"waiting"`
}

type waiter struct {
	ready chan struct{}
}

// Limiter is a token bucket for one external service. Callers that cannot
// obtain a token are queued and resumed in arrival order; there is no
// busy-waiting.
type Limiter struct {
	service        types.ServiceName
	maxTokens      int
	refillAmount   int
	refillInterval time.Duration

	mu         sync.Mutex
	available  int
	nextRefill time.Time
	waiters    []*waiter
	timer      *time.Timer
	now        func() time.Time
}

type Option func(*Limiter)

// WithClock injects a time source, used by tests to simulate elapsed time
func WithClock(now func() time.Time) Option {
	return func(x *Limiter) {
		x.now = now
	}
}

func New(service types.ServiceName, maxTokens, refillAmount int, refillInterval time.Duration, options ...Option) *Limiter {
	if maxTokens <= 0 {
		maxTokens = 1
	}
	if refillAmount <= 0 {
		refillAmount = 1
	}
	if refillInterval <= 0 {
		refillInterval = time.Second
	}

	x := &Limiter{
		service:        service,
		maxTokens:      maxTokens,
		refillAmount:   refillAmount,
		refillInterval: refillInterval,
		available:      maxTokens,
		now:            time.Now,
	}
	for _, opt := range options {
		opt(x)
	}
	x.nextRefill = x.now().Add(refillInterval)

	return x
}

// Acquire obtains one token, blocking in FIFO order until one is available
// or the context is done.
func (x *Limiter) Acquire(ctx context.Context) error {
	x.mu.Lock()
	x.refillLocked()
	if len(x.waiters) == 0 && x.available > 0 {
		x.available--
		x.mu.Unlock()
		return nil
	}

	w := &waiter{ready: make(chan struct{})}
	x.waiters = append(x.waiters, w)
	x.scheduleWakeLocked()
	x.mu.Unlock()

	select {
	case <-w.ready:
		return nil

	case <-ctx.Done():
		x.abandon(w)
		return goerr.Wrap(ctx.Err(), "canceled while waiting for token",
			goerr.V("service", x.service),
		)
	}
}

// TryAcquire obtains a token without blocking. Returns false if no token is
// available or other callers are already queued.
func (x *Limiter) TryAcquire() bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.refillLocked()
	if len(x.waiters) == 0 && x.available > 0 {
		x.available--
		return true
	}
	return false
}

// Backoff handles an upstream rate-limit signal: all tokens are dropped and
// the next refill is pinned to now+retryAfter, overriding the normal refill
// schedule.
func (x *Limiter) Backoff(retryAfter time.Duration) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if retryAfter <= 0 {
		retryAfter = x.refillInterval
	}
	x.available = 0
	x.nextRefill = x.now().Add(retryAfter)
	if len(x.waiters) > 0 {
		x.scheduleWakeLocked()
	}
}

// Status returns a snapshot for observability
func (x *Limiter) Status() Status {
	x.mu.Lock()
	defer x.mu.Unlock()

	return Status{
		Service:      x.service,
		Available:    x.available,
		Max:          x.maxTokens,
		NextRefillAt: x.nextRefill,
		Waiting:      len(x.waiters),
	}
}

// refillLocked credits tokens for every elapsed refill interval, capped at
// maxTokens, then grants queued waiters in arrival order.
func (x *Limiter) refillLocked() {
	now := x.now()
	for !now.Before(x.nextRefill) {
		x.available += x.refillAmount
		x.nextRefill = x.nextRefill.Add(x.refillInterval)
		if x.available >= x.maxTokens {
			x.available = x.maxTokens
			x.nextRefill = now.Add(x.refillInterval)
			break
		}
	}
	x.grantLocked()
}

// grantLocked hands tokens to the head of the queue while any are available.
// Each grant consumes the token at hand-off time so the bucket invariant
// holds at every observation point.
func (x *Limiter) grantLocked() {
	for x.available > 0 && len(x.waiters) > 0 {
		w := x.waiters[0]
		x.waiters = x.waiters[1:]
		x.available--
		close(w.ready)
	}
	if len(x.waiters) > 0 {
		x.scheduleWakeLocked()
	}
}

func (x *Limiter) scheduleWakeLocked() {
	d := x.nextRefill.Sub(x.now())
	if d < 0 {
		d = 0
	}
	if x.timer == nil {
		x.timer = time.AfterFunc(d, x.wake)
	} else {
		x.timer.Reset(d)
	}
}

func (x *Limiter) wake() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.refillLocked()
}

// abandon removes a canceled waiter. If the waiter was granted a token in
// the meantime, the token is returned to the bucket and passed on.
func (x *Limiter) abandon(w *waiter) {
	x.mu.Lock()
	defer x.mu.Unlock()

	for i, queued := range x.waiters {
		if queued == w {
			x.waiters = append(x.waiters[:i], x.waiters[i+1:]...)
			return
		}
	}

	// Not queued anymore: the grant raced the cancellation
	if x.available < x.maxTokens {
		x.available++
	}
	x.grantLocked()
}
