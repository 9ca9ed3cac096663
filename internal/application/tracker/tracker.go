// Package tracker detecta posiciones nuevas comparando snapshots sucesivos
// de cada source.
package tracker

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alejandrodnm/polycopy/internal/domain"
)

// Result is the outcome of ingesting one snapshot.
type Result struct {
	Deltas   []domain.PositionDelta   // keys newly present, in snapshot order
	Closures []domain.PositionClosure // keys that disappeared, sorted by key
	Dropped  int                      // malformed or duplicate entries discarded

	// FirstObservation is true when this was the source's first snapshot.
	// The baseline is stored and no deltas are emitted.
	FirstObservation bool
	// Unchanged is true when the snapshot was empty after normalisation. A
	// stored baseline is kept; without one, the first observation stays
	// pending until a non-empty snapshot arrives.
	Unchanged bool
}

type snapshot struct {
	entries map[domain.PositionKey]domain.PositionSnapshotEntry
	at      time.Time
}

// Tracker keeps the last known snapshot per source. Safe for concurrent use;
// each source's map is replaced as a whole so readers never see partial state.
type Tracker struct {
	mu   sync.RWMutex
	last map[string]snapshot
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{last: make(map[string]snapshot)}
}

// Ingest compares entries against the source's previous snapshot and returns
// the keys that appeared and disappeared.
func (t *Tracker) Ingest(source string, entries []domain.PositionSnapshotEntry, at time.Time) Result {
	ordered, byKey, held, dropped := normalise(source, entries)

	var res Result
	res.Dropped = dropped

	t.mu.Lock()
	defer t.mu.Unlock()

	prev, seen := t.last[source]

	// Un snapshot vacío tras normalizar nunca se guarda como baseline: un 200 []
	// transitorio no se lee como "cerró todo", y tampoco como baseline vacío
	// que haría saltar todas las posiciones abiertas en el siguiente poll.
	if len(byKey) == 0 {
		res.Unchanged = true
		return res
	}

	// Una key conocida cuya entrada llegó malformada no es un cierre: se
	// arrastra la última entrada válida.
	for key := range held {
		if _, ok := byKey[key]; ok {
			continue
		}
		if old, ok := prev.entries[key]; ok {
			byKey[key] = old
		}
	}

	t.last[source] = snapshot{entries: byKey, at: at}

	if !seen {
		res.FirstObservation = true
		slog.Debug("tracker: baseline stored", "source", source, "positions", len(byKey))
		return res
	}

	for _, e := range ordered {
		if _, ok := prev.entries[e.Key()]; ok {
			continue
		}
		res.Deltas = append(res.Deltas, domain.PositionDelta{Source: source, Entry: e, DetectedAt: at})
	}

	for key, old := range prev.entries {
		if _, ok := byKey[key]; ok {
			continue
		}
		res.Closures = append(res.Closures, domain.PositionClosure{Source: source, Entry: old, DetectedAt: at})
	}
	sort.Slice(res.Closures, func(i, j int) bool {
		return res.Closures[i].Key().String() < res.Closures[j].Key().String()
	})

	return res
}

// Last returns a copy of the stored snapshot for source, or false if the
// source was never observed.
func (t *Tracker) Last(source string) ([]domain.PositionSnapshotEntry, time.Time, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap, ok := t.last[source]
	if !ok {
		return nil, time.Time{}, false
	}
	out := make([]domain.PositionSnapshotEntry, 0, len(snap.entries))
	for _, e := range snap.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key().String() < out[j].Key().String() })
	return out, snap.at, true
}

// Known reports whether source has a stored baseline.
func (t *Tracker) Known(source string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.last[source]
	return ok
}

// normalise drops malformed entries and keeps the first occurrence of
// duplicated keys. held collects the keys of malformed entries that still
// carry a valid market+side.
func normalise(source string, entries []domain.PositionSnapshotEntry) (
	ordered []domain.PositionSnapshotEntry,
	byKey map[domain.PositionKey]domain.PositionSnapshotEntry,
	held map[domain.PositionKey]bool,
	dropped int,
) {
	ordered = make([]domain.PositionSnapshotEntry, 0, len(entries))
	byKey = make(map[domain.PositionKey]domain.PositionSnapshotEntry, len(entries))
	held = make(map[domain.PositionKey]bool)

	for _, e := range entries {
		if err := e.Validate(); err != nil {
			slog.Debug("tracker: dropping entry", "source", source, "err", err)
			dropped++
			if e.MarketID != "" && e.Side.Valid() {
				held[e.Key()] = true
			}
			continue
		}
		if _, dup := byKey[e.Key()]; dup {
			slog.Debug("tracker: duplicate key", "source", source, "key", e.Key().String())
			dropped++
			continue
		}
		byKey[e.Key()] = e
		ordered = append(ordered, e)
	}
	return ordered, byKey, held, dropped
}
