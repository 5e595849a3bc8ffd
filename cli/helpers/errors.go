package helpers

import (
	"errors"
	"fmt"
)

var (
	ErrTimeout = errors.New("operation timed out")
	ErrNetwork = errors.New("network error")
	ErrAuth    = errors.New("authentication error")
)

// NetworkError wraps a transport failure of one CLI operation.
type NetworkError struct {
	Operation string
	Cause     error
}

func (e *NetworkError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("network error during %s: %v", e.Operation, e.Cause)
	}
	return fmt.Sprintf("network error during %s", e.Operation)
}

func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

func (e *NetworkError) Unwrap() error {
	return e.Cause
}

// AuthError reports a missing or rejected token.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

func (e *AuthError) Is(target error) bool {
	return target == ErrAuth
}

func NewNetworkError(operation string, cause error) error {
	return &NetworkError{Operation: operation, Cause: cause}
}

func NewAuthError(reason string) error {
	return &AuthError{Reason: reason}
}
