package catalog

import (
	"errors"
	"fmt"
)

// ErrorKind classifies catalog failures for the HTTP edge.
type ErrorKind string

const (
	// KindNotFound means a lookup by id matched nothing.
	KindNotFound ErrorKind = "not_found"

	// KindValidation means a mutation payload was malformed.
	KindValidation ErrorKind = "validation"

	// KindStoreUnavailable covers connection, timeout and query failures of the document store.
	KindStoreUnavailable ErrorKind = "store_unavailable"

	// KindCacheUnavailable covers cache failures that are surfaced rather than absorbed.
	KindCacheUnavailable ErrorKind = "cache_unavailable"

	// KindInternal is anything unclassified.
	KindInternal ErrorKind = "internal"
)

// Error is a classified catalog error.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err, or KindInternal if err is not a *Error.
func KindOf(err error) ErrorKind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindInternal
}

func storeError(op string, err error) error {
	return &Error{Kind: KindStoreUnavailable, Op: op, Message: "document store request failed", Err: err}
}

func notFound(op, id string) error {
	return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf("product %q not found", id)}
}

func validationError(op string, err error) error {
	return &Error{Kind: KindValidation, Op: op, Message: "invalid product payload", Err: err}
}
