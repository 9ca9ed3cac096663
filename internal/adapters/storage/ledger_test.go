package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polycopy/internal/adapters/storage"
	"github.com/alejandrodnm/polycopy/internal/domain"
)

func newLedger(t *testing.T) *storage.SQLiteLedger {
	t.Helper()
	l, err := storage.NewSQLiteLedger(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func makePosition(signalID, market string, at time.Time) domain.OpenPosition {
	return domain.OpenPosition{
		Key:        domain.PositionKey{MarketID: market, Side: domain.SideA},
		SignalID:   signalID,
		Source:     "0xsrc",
		Capital:    44.5,
		Shares:     89,
		EntryPrice: 0.5,
		OpenedAt:   at,
		Confirmed:  true,
	}
}

func TestSQLiteLedger_AppendAndRecent(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	for i, stage := range []domain.SignalStage{domain.StageCreated, domain.StageScored, domain.StageDecided} {
		require.NoError(t, l.Append(ctx, domain.SignalRecord{
			SignalID:    "sig-1",
			Stage:       stage,
			Disposition: domain.DispositionPending,
			Source:      "0xsrc",
			MarketID:    "m1",
			Side:        domain.SideA,
			Confidence:  89,
			Capital:     44.5,
			Shares:      89,
			At:          now.Add(time.Duration(i) * time.Second),
		}))
	}

	recs, err := l.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, domain.StageDecided, recs[0].Stage)
	assert.Equal(t, domain.StageScored, recs[1].Stage)
	assert.Equal(t, 89, recs[0].Confidence)
	assert.Equal(t, 44.5, recs[0].Capital)
	assert.True(t, recs[0].At.Equal(now.Add(2*time.Second)))
}

func TestSQLiteLedger_OpenPositionsRestored(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, l.SavePosition(ctx, makePosition("sig-1", "m1", now)))
	require.NoError(t, l.SavePosition(ctx, makePosition("sig-2", "m2", now.Add(time.Second))))
	// idempotent per signal
	require.NoError(t, l.SavePosition(ctx, makePosition("sig-1", "m1", now)))

	open, pnl, err := l.LoadRiskSnapshot(ctx, domain.StartOfDay(now))
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, 0.0, pnl)
	assert.Equal(t, "m1", open[0].Key.MarketID)
	assert.Equal(t, domain.SideA, open[0].Key.Side)
	assert.Equal(t, 89.0, open[0].Shares)
	assert.Equal(t, "sig-1", open[0].SignalID)
	assert.True(t, open[0].Confirmed)
}

func TestSQLiteLedger_CloseBooksDailyPnL(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	day := domain.StartOfDay(time.Now().UTC())

	require.NoError(t, l.SavePosition(ctx, makePosition("a", "m1", day.Add(time.Hour))))
	require.NoError(t, l.SavePosition(ctx, makePosition("b", "m2", day.Add(time.Hour))))
	require.NoError(t, l.SavePosition(ctx, makePosition("c", "m3", day.Add(-48*time.Hour))))

	require.NoError(t, l.ClosePosition(ctx, domain.PositionKey{MarketID: "m1", Side: domain.SideA}, 0.4, -0.1, day.Add(2*time.Hour)))
	require.NoError(t, l.ClosePosition(ctx, domain.PositionKey{MarketID: "m2", Side: domain.SideA}, 0.7, 0.3, day.Add(3*time.Hour)))
	// closed yesterday: not part of today's budget
	require.NoError(t, l.ClosePosition(ctx, domain.PositionKey{MarketID: "m3", Side: domain.SideA}, 0.1, -50, day.Add(-time.Hour)))

	open, pnl, err := l.LoadRiskSnapshot(ctx, day)
	require.NoError(t, err)
	assert.Empty(t, open)
	// decimal sum: exactly 0.2, not 0.19999999999999998
	assert.Equal(t, 0.2, pnl)
}

func TestSQLiteLedger_CloseUnknownPosition(t *testing.T) {
	l := newLedger(t)
	err := l.ClosePosition(context.Background(), domain.PositionKey{MarketID: "nope", Side: domain.SideB}, 0.5, 0, time.Now())
	assert.ErrorIs(t, err, storage.ErrPositionNotFound)
}

func TestSQLiteLedger_ReopenAfterClose(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	now := time.Now().UTC()
	key := domain.PositionKey{MarketID: "m1", Side: domain.SideA}

	require.NoError(t, l.SavePosition(ctx, makePosition("a", "m1", now)))
	require.NoError(t, l.ClosePosition(ctx, key, 0.6, 8.9, now.Add(time.Minute)))
	require.NoError(t, l.SavePosition(ctx, makePosition("b", "m1", now.Add(2*time.Minute))))

	open, pnl, err := l.LoadRiskSnapshot(ctx, domain.StartOfDay(now))
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "b", open[0].SignalID)
	assert.InDelta(t, 8.9, pnl, 1e-9)
}

func TestSQLiteLedger_PruneIsOptIn(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i, at := range []time.Time{now.Add(-60 * 24 * time.Hour), now.Add(-time.Hour)} {
		require.NoError(t, l.Append(ctx, domain.SignalRecord{
			SignalID:    "sig-" + string(rune('a'+i)),
			Stage:       domain.StageCreated,
			Disposition: domain.DispositionPending,
			MarketID:    "m1",
			Side:        domain.SideA,
			At:          at,
		}))
	}
	old := makePosition("sig-a", "m1", now.Add(-100*24*time.Hour))
	require.NoError(t, l.SavePosition(ctx, old))
	require.NoError(t, l.ClosePosition(ctx, old.Key, 0.6, 8.9, now.Add(-95*24*time.Hour)))
	require.NoError(t, l.SavePosition(ctx, makePosition("sig-b", "m2", now.Add(-100*24*time.Hour))))

	n, err := l.Prune(ctx, 0, 0)
	require.NoError(t, err)
	assert.Zero(t, n)
	recs, err := l.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	n, err = l.Prune(ctx, 30*24*time.Hour, 90*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	recs, err = l.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "sig-b", recs[0].SignalID)

	// the open position survives any retention
	open, _, err := l.LoadRiskSnapshot(ctx, domain.StartOfDay(now))
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "m2", open[0].Key.MarketID)
}
