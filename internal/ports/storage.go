package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/polycopy/internal/domain"
)

// SignalLedger persists signal transitions and the positions they opened.
type SignalLedger interface {
	// Append writes one transition row. Rows are never updated.
	Append(ctx context.Context, rec domain.SignalRecord) error

	// SavePosition records a confirmed copied position.
	SavePosition(ctx context.Context, pos domain.OpenPosition) error

	// ClosePosition marks the open position for key as closed with its realized P&L.
	ClosePosition(ctx context.Context, key domain.PositionKey, exitPrice, pnl float64, at time.Time) error

	// LoadRiskSnapshot returns the still-open positions and the realized P&L
	// accumulated since dayStart, used to rebuild risk state after a restart.
	LoadRiskSnapshot(ctx context.Context, dayStart time.Time) ([]domain.OpenPosition, float64, error)

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
