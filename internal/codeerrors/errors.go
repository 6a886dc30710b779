// Package codeerrors defines the single error taxonomy surfaced by every
// public API in this module: a closed set of Kind values plus wrapped,
// inspectable error values.
package codeerrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the taxonomy's ten buckets.
type Kind string

const (
	KindIo                 Kind = "io"
	KindDatabase           Kind = "database"
	KindPool               Kind = "pool"
	KindParse              Kind = "parse"
	KindUnsupportedLanguage Kind = "unsupported_language"
	KindSymbolNotFound     Kind = "symbol_not_found"
	KindFileNotFound       Kind = "file_not_found"
	KindIndex              Kind = "index"
	KindWatcher            Kind = "watcher"
	KindMcp                Kind = "mcp"
)

// Error is a typed, wrapped error carrying a Kind and a human-directed message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error of the given kind with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error of the given kind wrapping an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Is reports whether err carries the given Kind, unwrapping as needed.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, returning ok=false if err does not
// carry one.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Sentinel errors for the read-path schema gate; call sites compare against
// these directly.
var (
	ErrSchemaUninitialised = errors.New("schema uninitialised")
	ErrSchemaOutdated      = errors.New("schema outdated, run index")
	ErrSchemaTooNew        = errors.New("schema newer than binary, upgrade required")
)
