// Package executor turns accepted signals into execution results and reports
// each terminal outcome to the risk gate exactly once.
package executor

import (
	"time"

	"github.com/alejandrodnm/polycopy/internal/domain"
)

// Reporter receives the terminal outcome of every execution.
// *risk.Gate satisfies it.
type Reporter interface {
	RecordSuccess(key domain.PositionKey, filledPrice float64)
	RecordFailure(key domain.PositionKey)
}

func report(r Reporter, s domain.CopySignal, res domain.ExecutionResult) {
	if r == nil {
		return
	}
	if res.Succeeded() {
		r.RecordSuccess(s.Key(), res.FilledPrice)
		return
	}
	r.RecordFailure(s.Key())
}

func failed(s domain.CopySignal, msg string, at time.Time) domain.ExecutionResult {
	return domain.ExecutionResult{
		SignalID: s.ID,
		Status:   domain.ExecutionFailed,
		Error:    msg,
		At:       at,
	}
}
