package ports

import (
	"context"

	"github.com/alejandrodnm/polycopy/internal/domain"
)

// Notifier publica cada señal una vez alcanza su estado final.
type Notifier interface {
	// Notify es best-effort: un error se loguea y no afecta a la señal.
	Notify(ctx context.Context, event domain.SignalEvent) error
}
