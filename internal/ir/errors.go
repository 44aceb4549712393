package ir

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes failures of the offline subsystem.
//
// None of them is fatal: every failure degrades to "retry later" or
// "serve fallback".
type ErrorCode string

const (
	// ErrCodePersistence indicates the durable store is unavailable or a write failed.
	ErrCodePersistence ErrorCode = "PERSISTENCE"

	// ErrCodeNetwork indicates a transport failure reaching the origin or acceptor.
	ErrCodeNetwork ErrorCode = "NETWORK"

	// ErrCodeCacheMiss indicates a key is absent from the current snapshot.
	ErrCodeCacheMiss ErrorCode = "CACHE_MISS"

	// ErrCodeRejected indicates the acceptor answered with a non-success status.
	ErrCodeRejected ErrorCode = "REJECTED"
)

// Error is the typed error shared by store, fetch, and delivery.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op names the failed operation (e.g. "enqueue", "fetch").
	Op string

	// Key is the resource path or record id involved, if any.
	Key string

	// Status is the HTTP status for ErrCodeRejected.
	Status int

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Op)
	if e.Key != "" {
		msg += " " + e.Key
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewPersistenceError wraps a storage failure.
func NewPersistenceError(op string, err error) *Error {
	return &Error{Code: ErrCodePersistence, Op: op, Err: err}
}

// NewNetworkError wraps a transport failure for the given path or URL.
func NewNetworkError(op, key string, err error) *Error {
	return &Error{Code: ErrCodeNetwork, Op: op, Key: key, Err: err}
}

// NewCacheMiss reports that key is not in the named snapshot.
func NewCacheMiss(snapshot, key string) *Error {
	return &Error{Code: ErrCodeCacheMiss, Op: "match " + snapshot, Key: key}
}

// NewRejectedError reports a non-success answer from the acceptor.
func NewRejectedError(op, key string, status int) *Error {
	return &Error{Code: ErrCodeRejected, Op: op, Key: key, Status: status}
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsPersistenceError returns true if err (or anything it wraps) is a persistence failure.
func IsPersistenceError(err error) bool { return hasCode(err, ErrCodePersistence) }

// IsNetworkError returns true if err (or anything it wraps) is a transport failure.
func IsNetworkError(err error) bool { return hasCode(err, ErrCodeNetwork) }

// IsCacheMiss returns true if err reports an absent cache entry.
func IsCacheMiss(err error) bool { return hasCode(err, ErrCodeCacheMiss) }

// IsRejected returns true if the acceptor refused the delivery.
func IsRejected(err error) bool { return hasCode(err, ErrCodeRejected) }
