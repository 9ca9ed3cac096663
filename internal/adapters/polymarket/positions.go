package polymarket

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/alejandrodnm/polycopy/internal/domain"
)

const (
	dataPositionsPath = "/positions"
	positionsLimit    = 500
)

// FetchPositions devuelve el snapshot de posiciones abiertas de address.
// sizeThreshold=0 para no perder posiciones pequeñas.
func (c *Client) FetchPositions(ctx context.Context, address string) ([]domain.PositionSnapshotEntry, error) {
	q := url.Values{}
	q.Set("user", address)
	q.Set("sizeThreshold", "0")
	q.Set("limit", fmt.Sprint(positionsLimit))
	u := fmt.Sprintf("%s%s?%s", c.dataBase, dataPositionsPath, q.Encode())

	var raw []dataPosition
	if err := c.get(ctx, c.dataLimiter, u, &raw); err != nil {
		return nil, fmt.Errorf("polymarket.FetchPositions: %w", err)
	}

	entries, err := mapPositions(raw)
	if err != nil {
		return nil, fmt.Errorf("polymarket.FetchPositions: %w", err)
	}

	slog.Debug("polymarket: positions fetched", "address", address, "positions", len(entries))
	return entries, nil
}
