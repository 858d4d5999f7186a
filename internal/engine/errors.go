package engine

import "errors"

var (
	// ErrInvalidTick marks a tick with a missing or negative required field.
	// Such ticks are rejected before any state change or persistence.
	ErrInvalidTick = errors.New("invalid tick")
	// ErrInvalidPrice marks a non-positive or non-finite price handed to the
	// EMA engine. The offending tick is rejected and EMA state is untouched.
	ErrInvalidPrice = errors.New("invalid price")
)
