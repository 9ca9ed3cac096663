package engine

// concurrent.go: fetch paralelo de snapshots y reputaciones.
//
// Las lecturas son independientes entre sources; la ingesta y todo lo que toca
// RiskState se hace después, en serie y en orden de registro.

import (
	"context"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/alejandrodnm/polycopy/internal/domain"
	"github.com/alejandrodnm/polycopy/internal/ports"
)

type fetchResult struct {
	entries []domain.PositionSnapshotEntry
	err     error
}

// fetchSnapshots fetches every source's positions with at most workers
// requests in flight. results[i] belongs to sources[i]. A failed source never
// cancels the others.
func fetchSnapshots(
	ctx context.Context,
	positions ports.PositionSource,
	sources []domain.TrackedSource,
	workers int,
) []fetchResult {
	if workers <= 0 {
		workers = runtime.NumCPU() * 2
	}

	results := make([]fetchResult, len(sources))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, src := range sources {
		if src.Disabled {
			continue
		}
		g.Go(func() error {
			entries, err := positions.FetchPositions(ctx, src.Address)
			results[i] = fetchResult{entries: entries, err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

type reputationResult struct {
	rep domain.Reputation
	ok  bool
}

// fetchReputations refreshes reputations in parallel. Sources whose lookup
// fails keep their previous figures (ok=false).
func fetchReputations(
	ctx context.Context,
	provider ports.ReputationProvider,
	sources []domain.TrackedSource,
	workers int,
) []reputationResult {
	if workers <= 0 {
		workers = runtime.NumCPU() * 2
	}

	results := make([]reputationResult, len(sources))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, src := range sources {
		if src.Disabled {
			continue
		}
		g.Go(func() error {
			rep, err := provider.FetchReputation(ctx, src.Address)
			if err != nil {
				slog.Warn("engine: reputation refresh failed",
					"source", src.Label(),
					"err", err,
				)
				return nil
			}
			results[i] = reputationResult{rep: rep, ok: true}
			return nil
		})
	}
	_ = g.Wait()

	return results
}
