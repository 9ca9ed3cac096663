package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/alejandrodnm/polycopy/internal/domain"
	"github.com/alejandrodnm/polycopy/internal/ports"
)

// DefaultResultTTL is how long a terminal result is kept for deduplication.
const DefaultResultTTL = 24 * time.Hour

// Live submits accepted signals through an OrderPlacer. Repeated calls for
// the same signal ID within the result TTL return the first result without
// resubmitting.
type Live struct {
	placer   ports.OrderPlacer
	reporter Reporter
	now      func() time.Time
	ttl      time.Duration

	group singleflight.Group

	mu      sync.Mutex
	results map[string]cachedResult
}

type cachedResult struct {
	res domain.ExecutionResult
	at  time.Time
}

// LiveOption configura el executor live.
type LiveOption func(*Live)

// WithResultTTL sets how long results are remembered. d <= 0 keeps the default.
func WithResultTTL(d time.Duration) LiveOption {
	return func(e *Live) {
		if d > 0 {
			e.ttl = d
		}
	}
}

// WithLiveClock replaces time.Now.
func WithLiveClock(now func() time.Time) LiveOption {
	return func(e *Live) { e.now = now }
}

// NewLive creates a live executor.
func NewLive(placer ports.OrderPlacer, reporter Reporter, opts ...LiveOption) *Live {
	e := &Live{
		placer:   placer,
		reporter: reporter,
		now:      time.Now,
		ttl:      DefaultResultTTL,
		results:  make(map[string]cachedResult),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Mode implements engine.Executor.
func (e *Live) Mode() string { return "live" }

// Execute places the order for s. Transport and venue errors come back as a
// FAILED result, never as a panic or error.
func (e *Live) Execute(ctx context.Context, s domain.CopySignal) domain.ExecutionResult {
	if res, ok := e.cached(s.ID); ok {
		slog.Debug("executor: duplicate execute ignored", "signal", s.ID)
		return res
	}

	v, _, _ := e.group.Do(s.ID, func() (any, error) {
		if res, ok := e.cached(s.ID); ok {
			return res, nil
		}
		res := e.place(ctx, s)

		e.mu.Lock()
		now := e.now()
		e.evictLocked(now)
		e.results[s.ID] = cachedResult{res: res, at: now}
		e.mu.Unlock()

		report(e.reporter, s, res)
		return res, nil
	})
	return v.(domain.ExecutionResult)
}

func (e *Live) place(ctx context.Context, s domain.CopySignal) (res domain.ExecutionResult) {
	defer func() {
		if r := recover(); r != nil {
			res = failed(s, fmt.Sprintf("order placer panic: %v", r), e.now())
		}
	}()

	ack, err := e.placer.PlaceOrder(ctx, domain.IntentFor(s))
	if err != nil {
		slog.Warn("executor: order failed", "signal", s.ID, "market", s.MarketID, "err", err)
		return failed(s, err.Error(), e.now())
	}

	price := ack.FilledPrice
	if price <= 0 {
		price = s.CurrentPrice
	}
	shares := ack.FilledShares
	if shares <= 0 {
		shares = s.Shares()
	}
	slog.Info("executor: order filled",
		"signal", s.ID,
		"order_id", ack.OrderID,
		"market", s.MarketID,
		"price", price,
		"shares", shares,
	)
	return domain.ExecutionResult{
		SignalID:     s.ID,
		Status:       domain.ExecutionFilled,
		OrderID:      ack.OrderID,
		FilledPrice:  price,
		FilledShares: shares,
		At:           e.now(),
	}
}

// Cached returns the number of results currently remembered.
func (e *Live) Cached() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.results)
}

func (e *Live) cached(id string) (domain.ExecutionResult, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.results[id]
	if !ok || e.now().Sub(c.at) >= e.ttl {
		return domain.ExecutionResult{}, false
	}
	return c.res, true
}

func (e *Live) evictLocked(now time.Time) {
	for id, c := range e.results {
		if now.Sub(c.at) >= e.ttl {
			delete(e.results, id)
		}
	}
}
