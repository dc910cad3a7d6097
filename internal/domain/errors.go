package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why access or price data is unavailable.
type ErrorKind string

const (
	KindUnsupportedNetwork ErrorKind = "unsupported_network"
	KindIncompleteData     ErrorKind = "incomplete_data"
	KindTransient          ErrorKind = "transient"
	KindTransaction        ErrorKind = "transaction"
	KindUnknown            ErrorKind = "unknown"
)

// ResolveError is an error tagged with its ErrorKind.
type ResolveError struct {
	Kind ErrorKind
	Err  error
}

func (e *ResolveError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

// NewError wraps err with the given kind.
func NewError(kind ErrorKind, err error) error {
	return &ResolveError{Kind: kind, Err: err}
}

// Errorf formats a message and tags it with the given kind.
func Errorf(kind ErrorKind, format string, args ...any) error {
	return &ResolveError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first ResolveError in err's chain,
// or KindUnknown if there is none.
func KindOf(err error) ErrorKind {
	var re *ResolveError
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindUnknown
}
