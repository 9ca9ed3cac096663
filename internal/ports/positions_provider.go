package ports

import (
	"context"

	"github.com/alejandrodnm/polycopy/internal/domain"
)

// PositionSource returns the current open positions of a tracked account.
type PositionSource interface {
	// FetchPositions devuelve el snapshot completo de posiciones abiertas del
	// address. Un error significa "sin snapshot": nunca un snapshot vacío.
	FetchPositions(ctx context.Context, address string) ([]domain.PositionSnapshotEntry, error)
}
