package polymarket

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/alejandrodnm/polycopy/internal/domain"
)

const (
	gammaMarketsPath = "/markets"
	gammaUsersPath   = "/users/"
)

// ErrMarketNotFound is returned when Gamma has no market for a condition id.
var ErrMarketNotFound = errors.New("market not found")

// FetchReputation obtiene accuracy, trades y P&L del perfil público de address.
func (c *Client) FetchReputation(ctx context.Context, address string) (domain.Reputation, error) {
	u := c.gammaBase + gammaUsersPath + url.PathEscape(address)

	var raw gammaUser
	if err := c.get(ctx, c.gammaLimiter, u, &raw); err != nil {
		return domain.Reputation{}, fmt.Errorf("polymarket.FetchReputation: %w", err)
	}
	rep, err := mapReputation(raw)
	if err != nil {
		return domain.Reputation{}, fmt.Errorf("polymarket.FetchReputation: %w", err)
	}
	return rep, nil
}

// FetchQuote obtiene volumen, liquidez y best ask de un mercado por condition id.
func (c *Client) FetchQuote(ctx context.Context, marketID string) (domain.MarketQuote, error) {
	q := url.Values{}
	q.Set("condition_ids", marketID)
	u := fmt.Sprintf("%s%s?%s", c.gammaBase, gammaMarketsPath, q.Encode())

	var resp gammaMarketsResponse
	if err := c.get(ctx, c.gammaLimiter, u, &resp); err != nil {
		return domain.MarketQuote{}, fmt.Errorf("polymarket.FetchQuote: %w", err)
	}

	for _, gm := range resp {
		if !strings.EqualFold(gm.ConditionID, marketID) {
			continue
		}
		quote, err := mapQuote(gm, time.Now())
		if err != nil {
			return domain.MarketQuote{}, fmt.Errorf("polymarket.FetchQuote: %w", err)
		}
		return quote, nil
	}
	return domain.MarketQuote{}, fmt.Errorf("polymarket.FetchQuote: %s: %w", marketID, ErrMarketNotFound)
}
