package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreConfidence_AllTermsSaturated(t *testing.T) {
	rep := Reputation{AccuracyPct: 100, TotalTrades: 500, NetProfit: 50_000}
	c := ScoreConfidence(rep, PositionDelta{}, MarketQuote{Volume: 1_000_000})

	assert.Equal(t, 100, c.Total)
	assert.InDelta(t, 40.0, c.Accuracy, 1e-9)
	assert.InDelta(t, 20.0, c.TrackRecord, 1e-9)
	assert.InDelta(t, 20.0, c.Profitability, 1e-9)
	assert.InDelta(t, 20.0, c.Liquidity, 1e-9)
}

func TestScoreConfidence_ZeroInputs(t *testing.T) {
	c := ScoreConfidence(Reputation{}, PositionDelta{}, MarketQuote{})
	assert.Equal(t, 0, c.Total)
}

func TestScoreConfidence_PartialTerms(t *testing.T) {
	// 50% accuracy → 20, 50 trades → 10, $500 → 10, $5k volume → 10
	rep := Reputation{AccuracyPct: 50, TotalTrades: 50, NetProfit: 500}
	c := ScoreConfidence(rep, PositionDelta{}, MarketQuote{Volume: 5000})

	assert.Equal(t, 50, c.Total)
	assert.InDelta(t, 20.0, c.Accuracy, 1e-9)
	assert.InDelta(t, 10.0, c.TrackRecord, 1e-9)
	assert.InDelta(t, 10.0, c.Profitability, 1e-9)
	assert.InDelta(t, 10.0, c.Liquidity, 1e-9)
}

func TestScoreConfidence_NegativeProfitFloorsAtZero(t *testing.T) {
	rep := Reputation{AccuracyPct: 50, NetProfit: -25_000}
	c := ScoreConfidence(rep, PositionDelta{}, MarketQuote{})

	assert.Equal(t, 0.0, c.Profitability)
	assert.Equal(t, 20, c.Total)
}

func TestScoreConfidence_TruncatesFraction(t *testing.T) {
	// 74% → 29.6 + 20 + 20 + 20 = 89.6 → 89
	rep := Reputation{AccuracyPct: 74, TotalTrades: 1347, NetProfit: 2_200_000}
	c := ScoreConfidence(rep, PositionDelta{}, MarketQuote{Volume: 500_000})

	assert.Equal(t, 89, c.Total)
	assert.InDelta(t, 29.6, c.Accuracy, 1e-9)
}

func TestScoreConfidence_AccuracyAboveHundredClamped(t *testing.T) {
	c := ScoreConfidence(Reputation{AccuracyPct: 250}, PositionDelta{}, MarketQuote{})
	assert.InDelta(t, 40.0, c.Accuracy, 1e-9)
	assert.Equal(t, 40, c.Total)
}

func TestScoreConfidence_NaNCountsAsZero(t *testing.T) {
	c := ScoreConfidence(Reputation{AccuracyPct: math.NaN()}, PositionDelta{}, MarketQuote{Volume: math.NaN()})
	assert.Equal(t, 0, c.Total)
}

func TestScoreConfidence_Deterministic(t *testing.T) {
	rep := Reputation{AccuracyPct: 67.3, TotalTrades: 42, NetProfit: 812.5}
	q := MarketQuote{Volume: 7321}
	first := ScoreConfidence(rep, PositionDelta{}, q)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ScoreConfidence(rep, PositionDelta{}, q))
	}
}

func TestScoreConfidence_MonotonicInEachInput(t *testing.T) {
	base := Reputation{AccuracyPct: 30, TotalTrades: 20, NetProfit: 100}
	quote := MarketQuote{Volume: 1000}

	steps := []float64{0, 1, 5, 10, 50, 99, 100, 150, 1e3, 1e4, 1e5, 1e7}

	check := func(name string, build func(v float64) (Reputation, MarketQuote)) {
		prev := -1
		for _, v := range steps {
			rep, q := build(v)
			got := ScoreConfidence(rep, PositionDelta{}, q).Total
			assert.GreaterOrEqual(t, got, prev, "%s not monotonic at %v", name, v)
			assert.GreaterOrEqual(t, got, 0)
			assert.LessOrEqual(t, got, 100)
			prev = got
		}
	}

	check("accuracy", func(v float64) (Reputation, MarketQuote) {
		r := base
		r.AccuracyPct = v
		return r, quote
	})
	check("trades", func(v float64) (Reputation, MarketQuote) {
		r := base
		r.TotalTrades = int(v)
		return r, quote
	})
	check("profit", func(v float64) (Reputation, MarketQuote) {
		r := base
		r.NetProfit = v
		return r, quote
	})
	check("volume", func(v float64) (Reputation, MarketQuote) {
		q := quote
		q.Volume = v
		return base, q
	})
}
