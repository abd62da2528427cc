package app

import "errors"

// ErrNotFound and related errors describe validation and runtime failures.
var (
	ErrNotFound           = errors.New("not found")
	ErrTaskMismatch       = errors.New("task id mismatch")
	ErrDragSessionActive  = errors.New("drag session already active")
	ErrTransitionInFlight = errors.New("transition already in flight")
	ErrInvalidTransition  = errors.New("invalid transition request")
	ErrUnsupportedFormat  = errors.New("unsupported snapshot format")
)
