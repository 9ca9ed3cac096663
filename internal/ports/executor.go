package ports

import (
	"context"

	"github.com/alejandrodnm/polycopy/internal/domain"
)

// OrderPlacer submits copy orders to an execution venue.
type OrderPlacer interface {
	// PlaceOrder submits the intent. Implementations must treat
	// intent.SignalID as an idempotency key.
	PlaceOrder(ctx context.Context, intent domain.OrderIntent) (domain.OrderAck, error)
}
