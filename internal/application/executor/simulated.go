package executor

import (
	"context"
	"log/slog"
	"time"

	"github.com/alejandrodnm/polycopy/internal/domain"
)

// Simulated fills every accepted signal at its current price without
// contacting any venue.
type Simulated struct {
	reporter Reporter
	now      func() time.Time
}

// NewSimulated creates a simulated executor.
func NewSimulated(reporter Reporter) *Simulated {
	return &Simulated{reporter: reporter, now: time.Now}
}

// Mode implements engine.Executor.
func (e *Simulated) Mode() string { return "simulation" }

// Execute always returns SIMULATED.
func (e *Simulated) Execute(_ context.Context, s domain.CopySignal) domain.ExecutionResult {
	res := domain.ExecutionResult{
		SignalID:     s.ID,
		Status:       domain.ExecutionSimulated,
		FilledPrice:  s.CurrentPrice,
		FilledShares: s.Shares(),
		At:           e.now(),
	}
	slog.Info("executor: simulated fill",
		"signal", s.ID,
		"market", s.MarketID,
		"side", s.Side,
		"capital", s.Capital(),
		"shares", s.Shares(),
		"price", s.CurrentPrice,
	)
	report(e.reporter, s, res)
	return res
}
