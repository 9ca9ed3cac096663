// Package risk owns the engine's RiskState and decides whether a sized
// signal may be executed.
package risk

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alejandrodnm/polycopy/internal/domain"
)

// Defaults applied when a limit is left at zero.
const (
	DefaultCooldown               = time.Hour
	DefaultMaxConsecutiveFailures = 3
)

// Candidate is what the gate needs to know about a sized signal.
type Candidate struct {
	SignalID   string
	Source     string
	Key        domain.PositionKey
	Confidence int
	Capital    float64
	Shares     float64
	Price      float64
}

// CandidateFor extracts the gate input from a sized signal.
func CandidateFor(s domain.CopySignal) Candidate {
	return Candidate{
		SignalID:   s.ID,
		Source:     s.Source,
		Key:        s.Key(),
		Confidence: s.Confidence.Total,
		Capital:    s.Capital(),
		Shares:     s.Shares(),
		Price:      s.CurrentPrice,
	}
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// Gate is the single writer of RiskState. All methods are safe for
// concurrent use.
type Gate struct {
	mu     sync.Mutex
	limits domain.RiskLimits
	state  domain.RiskState
	now    func() time.Time
}

// NewGate creates a gate with an empty state for the current day.
func NewGate(limits domain.RiskLimits, opts ...Option) *Gate {
	if limits.CooldownDuration <= 0 {
		limits.CooldownDuration = DefaultCooldown
	}
	if limits.MaxConsecutiveFailures <= 0 {
		limits.MaxConsecutiveFailures = DefaultMaxConsecutiveFailures
	}
	g := &Gate{limits: limits, now: time.Now}
	for _, o := range opts {
		o(g)
	}
	g.state = domain.RiskState{
		OpenPositions: make(map[domain.PositionKey]domain.OpenPosition),
		Day:           domain.StartOfDay(g.now()),
	}
	return g
}

// Limits returns the configured limits after defaults.
func (g *Gate) Limits() domain.RiskLimits { return g.limits }

// Admit runs the checks in order and returns the first failure. On ACCEPT the
// candidate's market+side is reserved until RecordSuccess or RecordFailure.
func (g *Gate) Admit(c Candidate) domain.Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	d := g.check(c, now)
	if !d.Accepted {
		return d
	}

	g.state.OpenPositions[c.Key] = domain.OpenPosition{
		Key:        c.Key,
		SignalID:   c.SignalID,
		Source:     c.Source,
		Capital:    c.Capital,
		Shares:     c.Shares,
		EntryPrice: c.Price,
		OpenedAt:   now,
	}
	return d
}

func (g *Gate) check(c Candidate, now time.Time) domain.Decision {
	s := &g.state
	l := g.limits

	if s.KillSwitch {
		return domain.Reject(domain.ReasonKillSwitchActive)
	}
	if s.InCooldown(now) {
		d := domain.Reject(domain.ReasonCooldownActive)
		d.Remaining = s.CooldownUntil.Sub(now)
		return d
	}
	if c.Confidence < l.MinConfidence {
		return domain.Reject(domain.ReasonConfidenceBelowThreshold)
	}
	if c.Capital <= 0 || c.Capital < l.MinPositionSize || c.Capital > l.MaxPositionSize {
		return domain.Reject(domain.ReasonPositionSizeOutOfBounds)
	}
	if len(s.OpenPositions) >= l.MaxOpenPositions {
		return domain.Reject(domain.ReasonMaxOpenPositions)
	}
	if _, held := s.OpenPositions[c.Key]; held {
		return domain.Reject(domain.ReasonDuplicateMarketPosition)
	}
	// Peor caso: se pierde todo el capital de la posición.
	if s.DailyPnL-c.Capital < -l.MaxDailyLoss {
		return domain.Reject(domain.ReasonDailyLossLimit)
	}
	return domain.Accept()
}

// RecordSuccess confirms the reservation for key and resets the
// consecutive-failure counter.
func (g *Gate) RecordSuccess(key domain.PositionKey, filledPrice float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if pos, ok := g.state.OpenPositions[key]; ok {
		pos.Confirmed = true
		if filledPrice > 0 {
			pos.EntryPrice = filledPrice
		}
		g.state.OpenPositions[key] = pos
	}
	g.state.ConsecutiveFailures = 0
}

// RecordFailure releases the reservation for key and counts the failure.
// Reaching the configured maximum engages the kill switch.
func (g *Gate) RecordFailure(key domain.PositionKey) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.state.OpenPositions, key)
	g.state.ConsecutiveFailures++
	if !g.state.KillSwitch && g.state.ConsecutiveFailures >= g.limits.MaxConsecutiveFailures {
		g.state.KillSwitch = true
		slog.Error("risk: kill switch engaged",
			"consecutive_failures", g.state.ConsecutiveFailures,
		)
	}
}

// RecordRealizedPnL books the P&L of a closed position and releases it.
// Any loss starts the cooldown window.
func (g *Gate) RecordRealizedPnL(key domain.PositionKey, pnl float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.rolloverLocked(g.now())
	delete(g.state.OpenPositions, key)
	g.state.DailyPnL += pnl
	if pnl < 0 {
		g.state.CooldownUntil = g.now().Add(g.limits.CooldownDuration)
		slog.Warn("risk: realized loss, cooldown started",
			"key", key.String(),
			"pnl", pnl,
			"until", g.state.CooldownUntil,
		)
	}
}

// AdvanceDay resets the daily P&L. Open positions carry over.
func (g *Gate) AdvanceDay() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.state.DailyPnL = 0
	g.state.Day = domain.StartOfDay(g.now())
}

// MaybeAdvanceDay advances the day if the clock crossed UTC midnight since
// the last rollover. It reports whether a rollover happened.
func (g *Gate) MaybeAdvanceDay() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rolloverLocked(g.now())
}

func (g *Gate) rolloverLocked(now time.Time) bool {
	today := domain.StartOfDay(now)
	if !today.After(g.state.Day) {
		return false
	}
	slog.Info("risk: day rollover", "previous_pnl", g.state.DailyPnL, "day", today.Format("2006-01-02"))
	g.state.DailyPnL = 0
	g.state.Day = today
	return true
}

// ResetKillSwitch clears the kill switch and the failure counter. An active
// cooldown is left untouched.
func (g *Gate) ResetKillSwitch() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.state.KillSwitch = false
	g.state.ConsecutiveFailures = 0
	slog.Info("risk: kill switch reset")
}

// Restore seeds the state from persisted positions and today's realized P&L.
func (g *Gate) Restore(open []domain.OpenPosition, dailyPnL float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, p := range open {
		p.Confirmed = true
		g.state.OpenPositions[p.Key] = p
	}
	g.state.DailyPnL = dailyPnL
	g.state.Day = domain.StartOfDay(g.now())
}

// OpenPosition returns the held or reserved position for key.
func (g *Gate) OpenPosition(key domain.PositionKey) (domain.OpenPosition, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.state.OpenPositions[key]
	return p, ok
}

// OpenPositionsFor returns the confirmed positions copied from source,
// sorted by key.
func (g *Gate) OpenPositionsFor(source string) []domain.OpenPosition {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []domain.OpenPosition
	for _, p := range g.state.OpenPositions {
		if p.Confirmed && p.Source == source {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.String() < out[j].Key.String() })
	return out
}

// Status returns a snapshot of the state for operators.
func (g *Gate) Status() domain.RiskStatus {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	st := domain.RiskStatus{
		Enabled:             !g.state.KillSwitch,
		KillSwitch:          g.state.KillSwitch,
		ConsecutiveFailures: g.state.ConsecutiveFailures,
		InCooldown:          g.state.InCooldown(now),
		OpenPositions:       len(g.state.OpenPositions),
		DailyPnL:            g.state.DailyPnL,
		Day:                 g.state.Day.Format("2006-01-02"),
	}
	if st.InCooldown {
		until := g.state.CooldownUntil
		st.CooldownUntil = &until
	}
	return st
}
