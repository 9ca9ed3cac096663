package domain

import "time"

// MarketQuote holds the market conditions used to score a copy candidate.
type MarketQuote struct {
	MarketID  string
	Question  string
	Volume    float64 // total traded volume, USDC
	Liquidity float64
	BestAsk   float64
	FetchedAt time.Time
}
