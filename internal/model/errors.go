package model

import "errors"

// Errors surfaced across the engine boundary.
var (
	ErrUnknownStrategyVariant = errors.New("unknown strategy variant")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrEmptyEventStream       = errors.New("empty event stream")
	ErrMalformedEvent         = errors.New("malformed event")
)
