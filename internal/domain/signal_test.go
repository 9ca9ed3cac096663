package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingSignal() CopySignal {
	src := TrackedSource{Address: "0xabc", Name: "whale"}
	return NewCopySignal("sig-1", src, makeDelta(100, 0.4, 0.5), time.Unix(1700000000, 0))
}

func TestCopySignal_HappyPath(t *testing.T) {
	s := pendingSignal()
	assert.Equal(t, DispositionPending, s.Disposition)
	assert.Equal(t, "whale", s.SourceName)

	s, err := s.Scored(Confidence{Total: 80})
	require.NoError(t, err)
	s, err = s.Sized(Allocation{Capital: 40, Shares: 80})
	require.NoError(t, err)
	s, err = s.Decided(Accept())
	require.NoError(t, err)
	assert.Equal(t, DispositionAccepted, s.Disposition)

	s, err = s.Completed(ExecutionResult{SignalID: s.ID, Status: ExecutionSimulated, FilledPrice: 0.5})
	require.NoError(t, err)
	assert.Equal(t, DispositionExecuted, s.Disposition)
	require.NotNil(t, s.Execution)
	assert.Equal(t, ExecutionSimulated, s.Execution.Status)
}

func TestCopySignal_TransitionsDoNotMutateReceiver(t *testing.T) {
	s := pendingSignal()
	scored, err := s.Scored(Confidence{Total: 90})
	require.NoError(t, err)

	assert.Equal(t, 0, s.Confidence.Total)
	assert.Equal(t, 90, scored.Confidence.Total)
}

func TestCopySignal_ConfidenceRejectionIsSkip(t *testing.T) {
	s, err := pendingSignal().Decided(Reject(ReasonConfidenceBelowThreshold))
	require.NoError(t, err)
	assert.Equal(t, DispositionSkippedLowConfidence, s.Disposition)
	assert.Equal(t, ReasonConfidenceBelowThreshold, s.RejectReason)
}

func TestCopySignal_RiskRejection(t *testing.T) {
	s, err := pendingSignal().Decided(Reject(ReasonDailyLossLimit))
	require.NoError(t, err)
	assert.Equal(t, DispositionRejectedRisk, s.Disposition)
}

func TestCopySignal_ImmutableAfterTerminal(t *testing.T) {
	s, err := pendingSignal().Decided(Reject(ReasonKillSwitchActive))
	require.NoError(t, err)

	_, err = s.Scored(Confidence{Total: 10})
	assert.ErrorIs(t, err, ErrSignalFinalized)
	_, err = s.Decided(Accept())
	assert.ErrorIs(t, err, ErrSignalFinalized)
	_, err = s.Failed(errors.New("boom"))
	assert.ErrorIs(t, err, ErrSignalFinalized)
}

func TestCopySignal_CompleteRequiresAccepted(t *testing.T) {
	_, err := pendingSignal().Completed(ExecutionResult{Status: ExecutionFilled})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCopySignal_FailedExecutionKeepsResult(t *testing.T) {
	s, err := pendingSignal().Decided(Accept())
	require.NoError(t, err)
	s, err = s.Completed(ExecutionResult{Status: ExecutionFailed, Error: "gateway timeout"})
	require.NoError(t, err)

	assert.Equal(t, DispositionFailed, s.Disposition)
	assert.Equal(t, "gateway timeout", s.Error)
	require.NotNil(t, s.Execution)
}

func TestCopySignal_EventAndRecord(t *testing.T) {
	s := pendingSignal()
	s, _ = s.Scored(Confidence{Total: 77})
	s, _ = s.Sized(Allocation{Capital: 25, Shares: 50})
	s, _ = s.Decided(Reject(ReasonMaxOpenPositions))

	ev := s.Event()
	assert.Equal(t, "0xmarket", ev.Market)
	assert.Equal(t, 77, ev.Confidence)
	assert.InDelta(t, 25.0, ev.RecommendedCapital, 1e-9)
	assert.Equal(t, DispositionRejectedRisk, ev.Disposition)
	assert.Equal(t, string(ReasonMaxOpenPositions), ev.Reason)

	rec := s.Record(StageDecided, time.Now())
	assert.Equal(t, StageDecided, rec.Stage)
	assert.Equal(t, string(ReasonMaxOpenPositions), rec.Reason)
}

func TestNewTrackedSource(t *testing.T) {
	src, err := NewTrackedSource(" 0x56687BF447DB6FFA42FFE2204A05EDAA20F55839 ", "ilovecircle", Reputation{})
	require.NoError(t, err)
	assert.Equal(t, "0x56687bf447db6ffa42ffe2204a05edaa20f55839", src.Address)
	assert.Equal(t, "ilovecircle", src.Label())

	_, err = NewTrackedSource("not-an-address", "", Reputation{})
	assert.ErrorIs(t, err, ErrInvalidSource)
}

func TestPositionSnapshotEntry_Validate(t *testing.T) {
	ok := PositionSnapshotEntry{MarketID: "0x1", Side: SideB, Shares: 0}
	assert.NoError(t, ok.Validate())

	assert.ErrorIs(t, PositionSnapshotEntry{Side: SideA}.Validate(), ErrMalformedEntry)
	assert.ErrorIs(t, PositionSnapshotEntry{MarketID: "0x1", Side: "YES"}.Validate(), ErrMalformedEntry)
	assert.ErrorIs(t, PositionSnapshotEntry{MarketID: "0x1", Side: SideA, Shares: -1}.Validate(), ErrMalformedEntry)
}
