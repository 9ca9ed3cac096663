package domain

import "math"

// Caps of each confidence term. They sum to 100.
const (
	accuracyWeight      = 40.0
	trackRecordWeight   = 20.0
	profitabilityWeight = 20.0
	liquidityWeight     = 20.0

	tradesForFullTrack  = 100.0   // trades needed to saturate the track-record term
	profitForFullProfit = 1000.0  // USDC profit needed to saturate the profitability term
	volumeForFullLiq    = 10000.0 // USDC market volume needed to saturate the liquidity term
)

// Confidence is the scored breakdown of a copy candidate.
type Confidence struct {
	Accuracy      float64
	TrackRecord   float64
	Profitability float64
	Liquidity     float64
	Total         int // 0-100
}

// ScoreConfidence scores (0-100) how trustworthy a detected position is as a
// copy candidate.
//
// Additive rubric, each term capped before summing:
//
//	accuracy      = min(40, accuracy_pct/100 × 40)
//	track record  = min(20, trades/100 × 20)
//	profitability = min(20, net_profit/1000 × 20), 0 when profit <= 0
//	liquidity     = min(20, volume/10000 × 20)
//
// The total is clamped to [0, 100] and truncated to an integer.
func ScoreConfidence(rep Reputation, _ PositionDelta, quote MarketQuote) Confidence {
	c := Confidence{
		Accuracy:      term(rep.AccuracyPct/100*accuracyWeight, accuracyWeight),
		TrackRecord:   term(float64(rep.TotalTrades)/tradesForFullTrack*trackRecordWeight, trackRecordWeight),
		Profitability: term(rep.NetProfit/profitForFullProfit*profitabilityWeight, profitabilityWeight),
		Liquidity:     term(quote.Volume/volumeForFullLiq*liquidityWeight, liquidityWeight),
	}
	total := c.Accuracy + c.TrackRecord + c.Profitability + c.Liquidity
	c.Total = int(math.Trunc(math.Min(100, math.Max(0, total))))
	return c
}

// term clamps a rubric term to [0, limit]. NaN counts as 0.
func term(v, limit float64) float64 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	return math.Min(limit, v)
}
