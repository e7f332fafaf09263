package service

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError covers bad key shapes, disallowed or mismatched content,
// oversized files and malformed session ids. It is always raised before any
// side effect.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

func validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// OwnershipError marks a security-relevant rejection: a key outside the
// caller's namespace, or a session owned by someone else.
type OwnershipError struct {
	Reason string
}

func (e *OwnershipError) Error() string {
	return "ownership: " + e.Reason
}

// ThrottleError is returned when the upload ceiling for the trailing window
// is reached. RetryAfter tells the client when capacity frees up.
type ThrottleError struct {
	RetryAfter time.Duration
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("upload rate limit exceeded, retry after %s", e.RetryAfter)
}

// StorageInconsistencyError reports keys whose tracking row and blob
// disagree. It aborts an attach rather than letting images silently vanish.
type StorageInconsistencyError struct {
	MissingKeys []string
}

func (e *StorageInconsistencyError) Error() string {
	return "storage inconsistency, missing: " + strings.Join(e.MissingKeys, ", ")
}
