// Package engine runs the copy-trading poll loop: fetch snapshots, detect new
// positions, and drain each one through scoring, sizing, risk and execution.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/polycopy/internal/application/risk"
	"github.com/alejandrodnm/polycopy/internal/application/tracker"
	"github.com/alejandrodnm/polycopy/internal/domain"
	"github.com/alejandrodnm/polycopy/internal/ports"
)

// Executor executes accepted signals. Implementations report the outcome to
// the risk gate themselves.
type Executor interface {
	Mode() string
	Execute(ctx context.Context, s domain.CopySignal) domain.ExecutionResult
}

// Config contiene la configuración del loop.
type Config struct {
	PollInterval           time.Duration
	MaxIterations          int    // 0 = sin límite
	StopFile               string // si existe, el loop termina antes de la siguiente iteración
	ReputationRefreshEvery int    // iteraciones entre refrescos (0 = solo al arrancar)
	PollWorkers            int    // fetches en paralelo (0 = NumCPU*2)
	Sizing                 domain.SizingConfig
}

// Deps agrupa los colaboradores del engine. Ledger, Notifier y Reputation
// son opcionales.
type Deps struct {
	Positions  ports.PositionSource
	Quotes     ports.QuoteProvider
	Reputation ports.ReputationProvider
	Gate       *risk.Gate
	Executor   Executor
	Ledger     ports.SignalLedger
	Notifier   ports.Notifier
	Tracker    *tracker.Tracker

	NewID func() string
	Now   func() time.Time
}

// IterationStats summarises one RunOnce.
type IterationStats struct {
	Sources     int
	FetchErrors int
	Deltas      int
	Closures    int
	QuoteErrors int
	Signals     int
	Executed    int
	Skipped     int
	Rejected    int
	Failed      int
}

func (s *IterationStats) count(sig domain.CopySignal) {
	s.Signals++
	switch sig.Disposition {
	case domain.DispositionExecuted:
		s.Executed++
	case domain.DispositionSkippedLowConfidence:
		s.Skipped++
	case domain.DispositionRejectedRisk:
		s.Rejected++
	case domain.DispositionFailed:
		s.Failed++
	}
}

// Status is the operational view of a running engine.
type Status struct {
	Mode          string            `json:"mode"`
	Iterations    int               `json:"iterations"`
	Sources       int               `json:"sources"`
	LastIteration *time.Time        `json:"last_iteration,omitempty"`
	LastStats     IterationStats    `json:"last_stats"`
	Risk          domain.RiskStatus `json:"risk"`
}

// Engine es el orquestador del loop de copy-trading.
type Engine struct {
	cfg  Config
	deps Deps

	mu         sync.RWMutex
	sources    []domain.TrackedSource
	iterations int
	lastAt     time.Time
	lastStats  IterationStats
}

// New validates the configuration and creates an Engine. Sizing errors are
// reported here, before any poll.
func New(cfg Config, sources []domain.TrackedSource, deps Deps) (*Engine, error) {
	if err := cfg.Sizing.Validate(); err != nil {
		return nil, fmt.Errorf("engine.New: sizing: %w", err)
	}
	if deps.Positions == nil || deps.Quotes == nil || deps.Gate == nil || deps.Executor == nil {
		return nil, errors.New("engine.New: positions, quotes, gate and executor are required")
	}
	if deps.Tracker == nil {
		deps.Tracker = tracker.New()
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}

	seen := make(map[string]bool, len(sources))
	list := make([]domain.TrackedSource, 0, len(sources))
	for _, s := range sources {
		if seen[s.Address] {
			slog.Warn("engine: duplicate source ignored", "address", s.Address)
			continue
		}
		seen[s.Address] = true
		list = append(list, s)
	}

	return &Engine{cfg: cfg, deps: deps, sources: list}, nil
}

// Restore rebuilds the gate's open positions and today's P&L from the ledger.
func (e *Engine) Restore(ctx context.Context) error {
	if e.deps.Ledger == nil {
		return nil
	}
	open, pnl, err := e.deps.Ledger.LoadRiskSnapshot(ctx, domain.StartOfDay(e.deps.Now()))
	if err != nil {
		return fmt.Errorf("engine.Restore: %w", err)
	}
	e.deps.Gate.Restore(open, pnl)
	slog.Info("engine: risk state restored", "open_positions", len(open), "daily_pnl", pnl)
	return nil
}

// Run ejecuta el loop hasta que el contexto se cancele, se alcance
// MaxIterations o aparezca el StopFile. Una iteración en curso siempre
// termina: la cancelación solo se observa entre iteraciones.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting",
		"mode", e.deps.Executor.Mode(),
		"sources", len(e.Sources()),
		"interval", e.cfg.PollInterval,
		"max_iterations", e.cfg.MaxIterations,
		"sizing", e.cfg.Sizing.Policy,
	)

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if e.stopRequested() {
			slog.Info("engine: stop file found", "path", e.cfg.StopFile)
			return nil
		}

		if _, err := e.RunOnce(context.WithoutCancel(ctx)); err != nil {
			slog.Error("engine: iteration failed", "err", err)
		}

		if e.cfg.MaxIterations > 0 && e.Iterations() >= e.cfg.MaxIterations {
			slog.Info("engine: iteration limit reached", "iterations", e.cfg.MaxIterations)
			return nil
		}

		if ctx.Err() != nil {
			slog.Info("engine stopped")
			return nil
		}
		select {
		case <-ctx.Done():
			slog.Info("engine stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce ejecuta exactamente una iteración: fetch paralelo, ingesta en serie
// y pipeline de cada delta. Solo devuelve error si no se pudo leer ningún source.
func (e *Engine) RunOnce(ctx context.Context) (IterationStats, error) {
	start := e.deps.Now()
	began := time.Now()
	e.deps.Gate.MaybeAdvanceDay()

	if e.shouldRefreshReputation() {
		e.refreshReputations(ctx)
	}

	sources := e.Sources()
	results := fetchSnapshots(ctx, e.deps.Positions, sources, e.cfg.PollWorkers)

	var stats IterationStats
	var errs []error
	for i, src := range sources {
		if src.Disabled {
			continue
		}
		stats.Sources++

		if err := results[i].err; err != nil {
			stats.FetchErrors++
			errs = append(errs, fmt.Errorf("%s: %w", src.Label(), err))
			slog.Warn("engine: snapshot fetch failed, treating as no change",
				"source", src.Label(),
				"err", err,
			)
			continue
		}

		at := e.deps.Now()
		res := e.deps.Tracker.Ingest(src.Address, results[i].entries, at)
		e.markPolled(src.Address, at)

		if res.FirstObservation {
			slog.Info("engine: baseline stored", "source", src.Label(), "positions", len(results[i].entries)-res.Dropped)
			stats.Closures += e.reconcile(ctx, src)
			continue
		}
		if res.Unchanged {
			slog.Warn("engine: empty snapshot treated as no change", "source", src.Label(), "dropped", res.Dropped)
			continue
		}

		stats.Closures += len(res.Closures)
		for _, c := range res.Closures {
			e.handleClosure(ctx, c)
		}

		stats.Deltas += len(res.Deltas)
		for _, d := range res.Deltas {
			sig, ok := e.process(ctx, src, d)
			if !ok {
				stats.QuoteErrors++
				continue
			}
			stats.count(sig)
		}
	}

	e.mu.Lock()
	e.iterations++
	e.lastAt = start
	e.lastStats = stats
	e.mu.Unlock()

	slog.Info("engine: iteration complete",
		"sources", stats.Sources,
		"deltas", stats.Deltas,
		"signals", stats.Signals,
		"executed", stats.Executed,
		"skipped", stats.Skipped,
		"rejected", stats.Rejected,
		"failed", stats.Failed,
		"duration", time.Since(began).Round(time.Millisecond),
	)

	if stats.Sources > 0 && stats.FetchErrors == stats.Sources {
		return stats, fmt.Errorf("engine.RunOnce: all sources failed: %w", errors.Join(errs...))
	}
	return stats, nil
}

// handleClosure books the realized P&L when a source exits a market+side we
// copied from that same source.
func (e *Engine) handleClosure(ctx context.Context, c domain.PositionClosure) {
	pos, ok := e.deps.Gate.OpenPosition(c.Key())
	if !ok || !pos.Confirmed || pos.Source != c.Source {
		return
	}
	e.closeCopied(ctx, pos, c.Entry.CurrentPrice, "")
}

// reconcile closes positions restored from the ledger that the source no
// longer holds in its first snapshot after a restart. The exit happened while
// the process was down, so the copy is booked at its entry price.
func (e *Engine) reconcile(ctx context.Context, src domain.TrackedSource) int {
	current, _, ok := e.deps.Tracker.Last(src.Address)
	if !ok {
		return 0
	}
	held := make(map[domain.PositionKey]bool, len(current))
	for _, entry := range current {
		held[entry.Key()] = true
	}

	closed := 0
	for _, pos := range e.deps.Gate.OpenPositionsFor(src.Address) {
		if held[pos.Key] {
			continue
		}
		slog.Warn("engine: restored position missing from source, reconciling",
			"source", src.Label(),
			"key", pos.Key.String(),
			"signal", pos.SignalID,
		)
		e.closeCopied(ctx, pos, pos.EntryPrice, reasonReconciled)
		closed++
	}
	return closed
}

const reasonReconciled = "reconciled_after_restart"

func (e *Engine) closeCopied(ctx context.Context, pos domain.OpenPosition, exit float64, reason string) {
	pnl := pos.Shares * (exit - pos.EntryPrice)
	e.deps.Gate.RecordRealizedPnL(pos.Key, pnl)

	slog.Info("engine: copied position closed",
		"key", pos.Key.String(),
		"signal", pos.SignalID,
		"entry", pos.EntryPrice,
		"exit", exit,
		"pnl", pnl,
	)

	if e.deps.Ledger == nil {
		return
	}
	at := e.deps.Now()
	if err := e.deps.Ledger.ClosePosition(ctx, pos.Key, exit, pnl, at); err != nil {
		slog.Warn("engine: ledger close failed", "key", pos.Key.String(), "err", err)
	}
	e.appendRecord(ctx, domain.SignalRecord{
		SignalID:    pos.SignalID,
		Stage:       domain.StageClosed,
		Disposition: domain.DispositionExecuted,
		Source:      pos.Source,
		MarketID:    pos.Key.MarketID,
		Side:        pos.Key.Side,
		Capital:     pos.Capital,
		Shares:      pos.Shares,
		Reason:      reason,
		FilledPrice: exit,
		At:          at,
	})
}

// ResetKillSwitch clears the gate's kill switch.
func (e *Engine) ResetKillSwitch() {
	e.deps.Gate.ResetKillSwitch()
}

// Status returns the current operational view.
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()

	st := Status{
		Mode:       e.deps.Executor.Mode(),
		Iterations: e.iterations,
		Sources:    len(e.sources),
		LastStats:  e.lastStats,
		Risk:       e.deps.Gate.Status(),
	}
	if !e.lastAt.IsZero() {
		at := e.lastAt
		st.LastIteration = &at
	}
	return st
}

// Sources returns a copy of the tracked sources.
func (e *Engine) Sources() []domain.TrackedSource {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]domain.TrackedSource, len(e.sources))
	copy(out, e.sources)
	return out
}

// Iterations returns the number of completed iterations.
func (e *Engine) Iterations() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.iterations
}

func (e *Engine) shouldRefreshReputation() bool {
	if e.deps.Reputation == nil {
		return false
	}
	n := e.Iterations()
	if n == 0 {
		return true
	}
	every := e.cfg.ReputationRefreshEvery
	return every > 0 && n%every == 0
}

func (e *Engine) refreshReputations(ctx context.Context) {
	sources := e.Sources()
	results := fetchReputations(ctx, e.deps.Reputation, sources, e.cfg.PollWorkers)

	e.mu.Lock()
	defer e.mu.Unlock()
	for i, r := range results {
		if !r.ok {
			continue
		}
		for j := range e.sources {
			if e.sources[j].Address == sources[i].Address {
				e.sources[j].Reputation = r.rep
			}
		}
	}
}

func (e *Engine) markPolled(address string, at time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.sources {
		if e.sources[i].Address == address {
			e.sources[i].LastPollAt = at
		}
	}
}

func (e *Engine) stopRequested() bool {
	if e.cfg.StopFile == "" {
		return false
	}
	_, err := os.Stat(e.cfg.StopFile)
	return err == nil
}
