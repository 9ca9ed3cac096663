package ports

import (
	"context"

	"github.com/alejandrodnm/polycopy/internal/domain"
)

// QuoteProvider returns volume, liquidity and best ask for a market.
type QuoteProvider interface {
	FetchQuote(ctx context.Context, marketID string) (domain.MarketQuote, error)
}
