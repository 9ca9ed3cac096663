package domain

import (
	"fmt"
	"time"
)

// Disposition is the lifecycle state of a CopySignal.
type Disposition string

const (
	DispositionPending              Disposition = "PENDING"
	DispositionAccepted             Disposition = "ACCEPTED"
	DispositionSkippedLowConfidence Disposition = "SKIPPED_LOW_CONFIDENCE"
	DispositionRejectedRisk         Disposition = "REJECTED_RISK"
	DispositionExecuted             Disposition = "EXECUTED"
	DispositionFailed               Disposition = "FAILED"
)

// Terminal reports whether no further disposition change is allowed.
func (d Disposition) Terminal() bool {
	switch d {
	case DispositionSkippedLowConfidence, DispositionRejectedRisk, DispositionExecuted, DispositionFailed:
		return true
	}
	return false
}

// ExecutionStatus is the outcome reported by an executor.
type ExecutionStatus string

const (
	ExecutionSimulated ExecutionStatus = "SIMULATED"
	ExecutionFilled    ExecutionStatus = "FILLED"
	ExecutionFailed    ExecutionStatus = "FAILED"
)

// ExecutionResult is what an executor returns for an accepted signal.
type ExecutionResult struct {
	SignalID     string
	Status       ExecutionStatus
	OrderID      string
	FilledPrice  float64 // 0 when not filled
	FilledShares float64
	Error        string
	At           time.Time
}

// Succeeded reports whether the signal now holds a position.
func (r ExecutionResult) Succeeded() bool {
	return r.Status == ExecutionSimulated || r.Status == ExecutionFilled
}

// CopySignal is a sized, risk-checked trade recommendation derived from one
// PositionDelta. Transitions return a new value; the receiver is left untouched.
type CopySignal struct {
	ID          string
	Source      string
	SourceName  string
	MarketID    string
	MarketTitle string
	Outcome     string
	Side        Side

	WhaleShares  float64
	WhalePrice   float64
	CurrentPrice float64

	Confidence  Confidence
	Allocation  Allocation
	GeneratedAt time.Time

	Disposition  Disposition
	RejectReason RejectReason
	Error        string
	Execution    *ExecutionResult
}

// NewCopySignal creates a PENDING signal from a delta.
func NewCopySignal(id string, src TrackedSource, delta PositionDelta, at time.Time) CopySignal {
	return CopySignal{
		ID:           id,
		Source:       src.Address,
		SourceName:   src.Label(),
		MarketID:     delta.Entry.MarketID,
		MarketTitle:  delta.Entry.Title,
		Outcome:      delta.Entry.Outcome,
		Side:         delta.Entry.Side,
		WhaleShares:  delta.Entry.Shares,
		WhalePrice:   delta.Entry.EntryPrice,
		CurrentPrice: delta.Entry.CurrentPrice,
		GeneratedAt:  at,
		Disposition:  DispositionPending,
	}
}

// Key returns the market+side key of the signal.
func (s CopySignal) Key() PositionKey {
	return PositionKey{MarketID: s.MarketID, Side: s.Side}
}

// Capital is the recommended capital, 0 until sized.
func (s CopySignal) Capital() float64 { return s.Allocation.Capital }

// Shares is the recommended share count, 0 until sized.
func (s CopySignal) Shares() float64 { return s.Allocation.Shares }

// Scored attaches the confidence breakdown to a pending signal.
func (s CopySignal) Scored(c Confidence) (CopySignal, error) {
	if err := s.expect(DispositionPending); err != nil {
		return s, err
	}
	s.Confidence = c
	return s, nil
}

// Sized attaches the allocation to a pending signal.
func (s CopySignal) Sized(a Allocation) (CopySignal, error) {
	if err := s.expect(DispositionPending); err != nil {
		return s, err
	}
	s.Allocation = a
	return s, nil
}

// Decided applies a risk decision. A confidence rejection maps to
// SKIPPED_LOW_CONFIDENCE; every other rejection to REJECTED_RISK.
func (s CopySignal) Decided(d Decision) (CopySignal, error) {
	if err := s.expect(DispositionPending); err != nil {
		return s, err
	}
	switch {
	case d.Accepted:
		s.Disposition = DispositionAccepted
	case d.Reason == ReasonConfidenceBelowThreshold:
		s.Disposition = DispositionSkippedLowConfidence
	default:
		s.Disposition = DispositionRejectedRisk
	}
	s.RejectReason = d.Reason
	return s, nil
}

// Completed attaches the execution result to an accepted signal.
func (s CopySignal) Completed(r ExecutionResult) (CopySignal, error) {
	if err := s.expect(DispositionAccepted); err != nil {
		return s, err
	}
	s.Execution = &r
	if r.Succeeded() {
		s.Disposition = DispositionExecuted
	} else {
		s.Disposition = DispositionFailed
		s.Error = r.Error
	}
	return s, nil
}

// Failed marks a non-terminal signal FAILED with the raw cause.
func (s CopySignal) Failed(cause error) (CopySignal, error) {
	if s.Disposition.Terminal() {
		return s, fmt.Errorf("%w: %s is %s", ErrSignalFinalized, s.ID, s.Disposition)
	}
	s.Disposition = DispositionFailed
	if cause != nil {
		s.Error = cause.Error()
	}
	return s, nil
}

func (s CopySignal) expect(d Disposition) error {
	if s.Disposition.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrSignalFinalized, s.ID, s.Disposition)
	}
	if s.Disposition != d {
		return fmt.Errorf("%w: %s is %s, want %s", ErrInvalidTransition, s.ID, s.Disposition, d)
	}
	return nil
}

// SignalEvent is the notification payload emitted per terminal signal.
type SignalEvent struct {
	SignalID           string      `json:"signal_id"`
	Source             string      `json:"source"`
	SourceName         string      `json:"source_name"`
	Market             string      `json:"market"`
	MarketTitle        string      `json:"market_title,omitempty"`
	Side               Side        `json:"side"`
	Confidence         int         `json:"confidence"`
	RecommendedCapital float64     `json:"recommended_capital"`
	RecommendedShares  float64     `json:"recommended_shares"`
	Disposition        Disposition `json:"disposition"`
	Reason             string      `json:"reason,omitempty"`
	At                 time.Time   `json:"at"`
}

// Event builds the notification payload for the signal.
func (s CopySignal) Event() SignalEvent {
	reason := string(s.RejectReason)
	if s.Error != "" {
		reason = s.Error
	}
	return SignalEvent{
		SignalID:           s.ID,
		Source:             s.Source,
		SourceName:         s.SourceName,
		Market:             s.MarketID,
		MarketTitle:        s.MarketTitle,
		Side:               s.Side,
		Confidence:         s.Confidence.Total,
		RecommendedCapital: s.Capital(),
		RecommendedShares:  s.Shares(),
		Disposition:        s.Disposition,
		Reason:             reason,
		At:                 s.GeneratedAt,
	}
}

// SignalStage names a persisted signal transition.
type SignalStage string

const (
	StageCreated  SignalStage = "created"
	StageScored   SignalStage = "scored"
	StageSized    SignalStage = "sized"
	StageDecided  SignalStage = "risk_decision"
	StageExecuted SignalStage = "execution"
	StageFailed   SignalStage = "failed"
	StageClosed   SignalStage = "position_closed"
)

// SignalRecord is one append-only ledger row.
type SignalRecord struct {
	SignalID    string
	Stage       SignalStage
	Disposition Disposition
	Source      string
	MarketID    string
	Side        Side
	Confidence  int
	Capital     float64
	Shares      float64
	Reason      string
	ExecStatus  ExecutionStatus
	FilledPrice float64
	At          time.Time
}

// Record builds the ledger row for the signal's current state.
func (s CopySignal) Record(stage SignalStage, at time.Time) SignalRecord {
	r := SignalRecord{
		SignalID:    s.ID,
		Stage:       stage,
		Disposition: s.Disposition,
		Source:      s.Source,
		MarketID:    s.MarketID,
		Side:        s.Side,
		Confidence:  s.Confidence.Total,
		Capital:     s.Capital(),
		Shares:      s.Shares(),
		Reason:      string(s.RejectReason),
		At:          at,
	}
	if s.Error != "" {
		r.Reason = s.Error
	}
	if s.Execution != nil {
		r.ExecStatus = s.Execution.Status
		r.FilledPrice = s.Execution.FilledPrice
	}
	return r
}
