package domain

import "errors"

var (
	// ErrInvalidPrice is returned when a position cannot be sized because its
	// current price is zero, negative or not finite.
	ErrInvalidPrice = errors.New("invalid price")

	// ErrInvalidSizingConfig is a configuration error (e.g. min > max).
	ErrInvalidSizingConfig = errors.New("invalid sizing config")

	// ErrUnknownSizingPolicy is returned for a sizing policy outside the enumerated set.
	ErrUnknownSizingPolicy = errors.New("unknown sizing policy")

	// ErrInvalidSource is returned when a tracked source cannot be registered.
	ErrInvalidSource = errors.New("invalid tracked source")

	// ErrMalformedEntry marks a snapshot entry that cannot be keyed.
	ErrMalformedEntry = errors.New("malformed snapshot entry")

	// ErrSignalFinalized is returned when a transition is attempted on a
	// signal that already reached a terminal disposition.
	ErrSignalFinalized = errors.New("signal already finalized")

	// ErrInvalidTransition is returned for a transition not allowed from the
	// signal's current disposition.
	ErrInvalidTransition = errors.New("invalid signal transition")
)
