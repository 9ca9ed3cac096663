package ports

import (
	"context"

	"github.com/alejandrodnm/polycopy/internal/domain"
)

// ReputationProvider obtiene las métricas históricas de un address.
type ReputationProvider interface {
	FetchReputation(ctx context.Context, address string) (domain.Reputation, error)
}
