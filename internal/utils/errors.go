package utils

import "fmt"

// AppError names the failing operation and carries a message fit for the
// operator surface, keeping the underlying cause reachable for errors.Is/As.
type AppError struct {
	Op  string
	Msg string
	Err error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *AppError) Unwrap() error { return e.Err }

// NewAppError constructs an AppError; err may be nil for pure guard failures.
func NewAppError(op, msg string, err error) error {
	return &AppError{Op: op, Msg: msg, Err: err}
}
