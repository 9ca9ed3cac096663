package domain

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Side is the outcome side of a binary market.
type Side string

const (
	SideA Side = "A" // first outcome (usually "Yes")
	SideB Side = "B" // second outcome (usually "No")
)

// Valid reports whether s is one of the two binary sides.
func (s Side) Valid() bool {
	return s == SideA || s == SideB
}

// SideFromIndex maps a venue outcome index (0/1) to a Side.
func SideFromIndex(idx int) (Side, bool) {
	switch idx {
	case 0:
		return SideA, true
	case 1:
		return SideB, true
	}
	return "", false
}

// PositionKey identifies a position by market and side.
type PositionKey struct {
	MarketID string
	Side     Side
}

func (k PositionKey) String() string {
	return k.MarketID + ":" + string(k.Side)
}

// Reputation holds the historical performance figures of a tracked source.
type Reputation struct {
	AccuracyPct float64 // 0-100
	TotalTrades int
	NetProfit   float64 // USDC
}

// TrackedSource is an account whose open positions are monitored for copying.
type TrackedSource struct {
	Address    string
	Name       string
	Reputation Reputation
	LastPollAt time.Time
	Disabled   bool
}

// NewTrackedSource validates the address and returns a source with a
// normalised (lowercase hex) address.
func NewTrackedSource(address, name string, rep Reputation) (TrackedSource, error) {
	addr := strings.TrimSpace(address)
	if !common.IsHexAddress(addr) {
		return TrackedSource{}, fmt.Errorf("%w: %q is not a hex address", ErrInvalidSource, address)
	}
	return TrackedSource{
		Address:    strings.ToLower(common.HexToAddress(addr).Hex()),
		Name:       name,
		Reputation: rep,
	}, nil
}

// Label returns the display name, or a shortened address when unnamed.
func (s TrackedSource) Label() string {
	if s.Name != "" {
		return s.Name
	}
	if len(s.Address) > 10 {
		return s.Address[:10] + "..."
	}
	return s.Address
}

// PositionSnapshotEntry is one open position of a source at one poll instant.
type PositionSnapshotEntry struct {
	MarketID      string
	Title         string
	Outcome       string // venue outcome label, display only
	Side          Side
	Shares        float64
	EntryPrice    float64
	CurrentPrice  float64
	UnrealizedPnL float64
}

// Key returns the market+side key of the entry.
func (e PositionSnapshotEntry) Key() PositionKey {
	return PositionKey{MarketID: e.MarketID, Side: e.Side}
}

// Validate rejects entries that cannot be keyed or carry a nonsensical share count.
// Prices are not checked here: an invalid price is a sizing error, not a data error.
func (e PositionSnapshotEntry) Validate() error {
	if e.MarketID == "" {
		return fmt.Errorf("%w: empty market id", ErrMalformedEntry)
	}
	if !e.Side.Valid() {
		return fmt.Errorf("%w: invalid side %q", ErrMalformedEntry, e.Side)
	}
	if e.Shares < 0 || math.IsNaN(e.Shares) || math.IsInf(e.Shares, 0) {
		return fmt.Errorf("%w: invalid share count %v", ErrMalformedEntry, e.Shares)
	}
	return nil
}

// PositionDelta is a market+side newly present in the latest snapshot of a source.
type PositionDelta struct {
	Source     string
	Entry      PositionSnapshotEntry
	DetectedAt time.Time
}

// Key returns the market+side key of the delta.
func (d PositionDelta) Key() PositionKey {
	return d.Entry.Key()
}

// WhaleCapital is the capital the source deployed in the position.
func (d PositionDelta) WhaleCapital() float64 {
	return d.Entry.Shares * d.Entry.EntryPrice
}

// PositionClosure is a market+side that disappeared from a source's snapshot.
// Entry is the last observed state of the position.
type PositionClosure struct {
	Source     string
	Entry      PositionSnapshotEntry
	DetectedAt time.Time
}

// Key returns the market+side key of the closure.
func (c PositionClosure) Key() PositionKey {
	return c.Entry.Key()
}
