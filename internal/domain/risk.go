package domain

import (
	"fmt"
	"time"
)

// RejectReason is the reason code of a risk rejection.
type RejectReason string

const (
	ReasonKillSwitchActive         RejectReason = "kill_switch_active"
	ReasonCooldownActive           RejectReason = "cooldown_active"
	ReasonConfidenceBelowThreshold RejectReason = "confidence_below_threshold"
	ReasonPositionSizeOutOfBounds  RejectReason = "position_size_out_of_bounds"
	ReasonMaxOpenPositions         RejectReason = "max_open_positions_reached"
	ReasonDuplicateMarketPosition  RejectReason = "duplicate_market_position"
	ReasonDailyLossLimit           RejectReason = "daily_loss_limit"
)

// Decision is the outcome of a risk check. Rejections are values, not errors.
type Decision struct {
	Accepted  bool
	Reason    RejectReason
	Remaining time.Duration // cooldown only
}

// Accept returns an accepting decision.
func Accept() Decision { return Decision{Accepted: true} }

// Reject returns a rejection with the given reason.
func Reject(r RejectReason) Decision { return Decision{Reason: r} }

func (d Decision) String() string {
	switch {
	case d.Accepted:
		return "ACCEPT"
	case d.Remaining > 0:
		return fmt.Sprintf("REJECT(%s, %s)", d.Reason, d.Remaining.Round(time.Second))
	default:
		return fmt.Sprintf("REJECT(%s)", d.Reason)
	}
}

// RiskLimits are the portfolio and per-trade limits enforced by the risk gate.
type RiskLimits struct {
	MinConfidence          int
	MinPositionSize        float64
	MaxPositionSize        float64
	MaxOpenPositions       int
	MaxDailyLoss           float64 // positive dollar amount
	CooldownDuration       time.Duration
	MaxConsecutiveFailures int
}

// OpenPosition is a position held (or reserved) by this engine instance.
type OpenPosition struct {
	Key        PositionKey
	SignalID   string
	Source     string
	Capital    float64
	Shares     float64
	EntryPrice float64
	OpenedAt   time.Time
	Confirmed  bool // false while reserved and awaiting execution
}

// RiskState is the process-scoped state owned by the risk gate.
type RiskState struct {
	OpenPositions       map[PositionKey]OpenPosition
	DailyPnL            float64
	Day                 time.Time // UTC midnight of the current trading day
	ConsecutiveFailures int
	CooldownUntil       time.Time // zero when no cooldown
	KillSwitch          bool
}

// InCooldown reports whether now falls before the cooldown deadline.
func (s RiskState) InCooldown(now time.Time) bool {
	return !s.CooldownUntil.IsZero() && now.Before(s.CooldownUntil)
}

// RiskStatus is the operational view returned to the control surface.
type RiskStatus struct {
	Enabled             bool       `json:"enabled"`
	KillSwitch          bool       `json:"kill_switch"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	InCooldown          bool       `json:"in_cooldown"`
	CooldownUntil       *time.Time `json:"cooldown_until,omitempty"`
	OpenPositions       int        `json:"open_positions"`
	DailyPnL            float64    `json:"daily_pnl"`
	Day                 string     `json:"day"`
}

// StartOfDay returns UTC midnight of t's day.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
