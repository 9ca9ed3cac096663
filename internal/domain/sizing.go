package domain

import (
	"fmt"
	"math"
)

// SizingPolicy selects how a detected position is converted into capital.
type SizingPolicy string

const (
	SizingWhaleRatio       SizingPolicy = "whale_ratio"
	SizingFixed            SizingPolicy = "fixed"
	SizingConfidenceScaled SizingPolicy = "confidence_scaled"
)

// ParseSizingPolicy validates a policy name coming from configuration.
func ParseSizingPolicy(s string) (SizingPolicy, error) {
	switch p := SizingPolicy(s); p {
	case SizingWhaleRatio, SizingFixed, SizingConfidenceScaled:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSizingPolicy, s)
}

// SizingConfig holds the policy and its bounds.
type SizingConfig struct {
	Policy          SizingPolicy
	CopyRatio       float64 // whale_ratio: fraction of the source's capital
	BaseAmount      float64 // confidence_scaled: capital at confidence 100
	FixedAmount     float64 // fixed: capital per signal
	MinPositionSize float64
	MaxPositionSize float64
}

// Validate reports configuration errors. It never adjusts values.
func (c SizingConfig) Validate() error {
	if c.MinPositionSize < 0 {
		return fmt.Errorf("%w: min_position_size %.2f < 0", ErrInvalidSizingConfig, c.MinPositionSize)
	}
	if c.MinPositionSize > c.MaxPositionSize {
		return fmt.Errorf("%w: min_position_size %.2f > max_position_size %.2f",
			ErrInvalidSizingConfig, c.MinPositionSize, c.MaxPositionSize)
	}
	switch c.Policy {
	case SizingWhaleRatio:
		if c.CopyRatio <= 0 {
			return fmt.Errorf("%w: copy_ratio must be > 0", ErrInvalidSizingConfig)
		}
	case SizingFixed:
		if c.FixedAmount <= 0 {
			return fmt.Errorf("%w: fixed_amount must be > 0", ErrInvalidSizingConfig)
		}
	case SizingConfidenceScaled:
		if c.BaseAmount <= 0 {
			return fmt.Errorf("%w: base_amount must be > 0", ErrInvalidSizingConfig)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSizingPolicy, c.Policy)
	}
	return nil
}

// Allocation is the output of the sizer.
type Allocation struct {
	Policy     SizingPolicy
	RawCapital float64 // before clamping
	Capital    float64
	Shares     float64
}

// Size converts a delta and its confidence into a capital allocation.
//
//	whale_ratio:       capital = shares × entry_price × copy_ratio
//	fixed:             capital = fixed_amount
//	confidence_scaled: capital = base_amount × confidence/100
//
// The result is clamped to [min_position_size, max_position_size] and
// shares = capital / current_price.
func Size(delta PositionDelta, confidence int, cfg SizingConfig) (Allocation, error) {
	if err := cfg.Validate(); err != nil {
		return Allocation{}, err
	}

	price := delta.Entry.CurrentPrice
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return Allocation{}, fmt.Errorf("%w: current price %v for %s", ErrInvalidPrice, price, delta.Key())
	}

	var raw float64
	switch cfg.Policy {
	case SizingWhaleRatio:
		raw = delta.WhaleCapital() * cfg.CopyRatio
	case SizingFixed:
		raw = cfg.FixedAmount
	case SizingConfidenceScaled:
		raw = cfg.BaseAmount * float64(confidence) / 100
	}
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return Allocation{}, fmt.Errorf("%w: non-finite capital for %s", ErrInvalidSizingConfig, delta.Key())
	}

	capital := math.Min(cfg.MaxPositionSize, math.Max(cfg.MinPositionSize, raw))
	return Allocation{
		Policy:     cfg.Policy,
		RawCapital: raw,
		Capital:    capital,
		Shares:     capital / price,
	}, nil
}
