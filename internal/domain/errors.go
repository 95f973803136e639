package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrRemoteUnavailable = errors.New("remote store unavailable")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrTerminalState     = errors.New("terminal state")
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Error codes carried in the "code" field of store error responses.
const (
	CodeValidation        = "validation"
	CodeUnauthorized      = "unauthorized"
	CodeForbidden         = "forbidden"
	CodeNotFound          = "not_found"
	CodeInvalidTransition = "invalid_transition"
	CodeTerminalState     = "terminal_state"
	CodeInternal          = "internal"
)

// ErrorCode returns the wire code for err, CodeInternal when err is outside
// the taxonomy.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrInvalidTransition):
		return CodeInvalidTransition
	case errors.Is(err, ErrTerminalState):
		return CodeTerminalState
	default:
		return CodeInternal
	}
}

// ErrorFromCode rebuilds a taxonomy error from a wire code and message.
func ErrorFromCode(code, message string) error {
	var sentinel error
	switch code {
	case CodeValidation:
		sentinel = ErrValidation
	case CodeUnauthorized, CodeForbidden:
		sentinel = ErrUnauthorized
	case CodeNotFound:
		sentinel = ErrNotFound
	case CodeInvalidTransition:
		sentinel = ErrInvalidTransition
	case CodeTerminalState:
		sentinel = ErrTerminalState
	default:
		sentinel = ErrRemoteUnavailable
	}
	// Server messages already start with the sentinel text.
	message = strings.TrimPrefix(message, sentinel.Error())
	message = strings.TrimPrefix(message, ": ")
	if message == "" {
		return sentinel
	}
	return fmt.Errorf("%w: %s", sentinel, message)
}
