package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrUnreachable is returned when the engine could not be reached at the transport level.
	ErrUnreachable = errors.New("engine unreachable")
	// ErrProtocol is returned when a response matches neither the success nor the error schema.
	ErrProtocol = errors.New("engine protocol error")
	// ErrReported is matched by errors the engine reported itself.
	ErrReported = errors.New("engine reported error")
)

// ReportedError carries the message of an engine error response.
type ReportedError struct {
	Message string
}

func (e *ReportedError) Error() string {
	return e.Message
}

func (e *ReportedError) Is(target error) bool {
	return target == ErrReported
}

func unreachable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnreachable, op, err)
}

func protocol(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProtocol, fmt.Sprintf(format, args...))
}
