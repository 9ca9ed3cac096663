package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/alejandrodnm/polycopy/internal/domain"
	"github.com/alejandrodnm/polycopy/internal/ports"
)

// Multi envía cada señal a todos los sinks. Un sink que falla no impide el
// envío a los demás.
type Multi struct {
	sinks []ports.Notifier
}

// NewMulti crea un fan-out. Los nil se ignoran.
func NewMulti(sinks ...ports.Notifier) *Multi {
	m := &Multi{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Len returns the number of sinks.
func (m *Multi) Len() int { return len(m.sinks) }

// Notify implementa ports.Notifier.
func (m *Multi) Notify(ctx context.Context, ev domain.SignalEvent) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Notify(ctx, ev); err != nil {
			slog.Debug("notify: sink failed", "signal", ev.SignalID, "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
