package fsrs

import "errors"

var (
	ErrInvalidRating     = errors.New("fsrs: invalid rating")
	ErrInvalidState      = errors.New("fsrs: invalid state")
	ErrInvalidParams     = errors.New("fsrs: invalid parameters")
	ErrIllegalTransition = errors.New("fsrs: illegal state transition")

	// ErrInvariant means the model produced a snapshot it must never produce.
	// It signals a programming error, not bad input.
	ErrInvariant = errors.New("fsrs: invariant violated")
)
