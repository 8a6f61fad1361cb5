// Package errdefs defines the surek error taxonomy. Every failure that
// surfaces to the CLI boundary is one of these kinds; the CLI maps any of
// them to a single red line and exit code 1.
package errdefs

import (
	"errors"
	"fmt"
)

// Kind classifies an error by the subsystem that produced it.
type Kind int

const (
	// KindConfig covers top-level config parse and validation failures.
	KindConfig Kind = iota
	// KindStackConfig covers per-stack config parse and validation failures.
	KindStackConfig
	// KindEngine covers container engine and compose subcommand failures.
	KindEngine
	// KindBackup covers object store, decryption, extraction and trigger failures.
	KindBackup
	// KindSource covers archive fetch and commit query failures.
	KindSource
	// KindStacks covers stack discovery failures.
	KindStacks
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindStackConfig:
		return "stack config"
	case KindEngine:
		return "engine"
	case KindBackup:
		return "backup"
	case KindSource:
		return "source"
	case KindStacks:
		return "stacks"
	}
	return "unknown"
}

// Error is a classified surek error. It may wrap an underlying cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality, so errors.Is(err, &Error{Kind: KindConfig})
// matches any config error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Msg == "" || t.Msg == e.Msg)
}

// IsKind reports whether err is (or wraps) a surek error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

func newError(kind Kind, msg string) *Error { return &Error{Kind: kind, Msg: msg} }

func wrapError(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Config returns a new top-level configuration error.
func Config(msg string) *Error { return newError(KindConfig, msg) }

// Configf formats a new top-level configuration error.
func Configf(format string, args ...any) *Error {
	return newError(KindConfig, fmt.Sprintf(format, args...))
}

// ConfigWrap wraps err as a configuration error with context.
func ConfigWrap(err error, msg string) *Error { return wrapError(KindConfig, err, msg) }

// StackConfig returns a new stack configuration error.
func StackConfig(msg string) *Error { return newError(KindStackConfig, msg) }

// StackConfigf formats a new stack configuration error.
func StackConfigf(format string, args ...any) *Error {
	return newError(KindStackConfig, fmt.Sprintf(format, args...))
}

// StackConfigWrap wraps err as a stack configuration error with context.
func StackConfigWrap(err error, msg string) *Error { return wrapError(KindStackConfig, err, msg) }

// Engine returns a new container engine error.
func Engine(msg string) *Error { return newError(KindEngine, msg) }

// Enginef formats a new container engine error.
func Enginef(format string, args ...any) *Error {
	return newError(KindEngine, fmt.Sprintf(format, args...))
}

// EngineWrap wraps err as an engine error with context.
func EngineWrap(err error, msg string) *Error { return wrapError(KindEngine, err, msg) }

// Backup returns a new backup subsystem error.
func Backup(msg string) *Error { return newError(KindBackup, msg) }

// Backupf formats a new backup subsystem error.
func Backupf(format string, args ...any) *Error {
	return newError(KindBackup, fmt.Sprintf(format, args...))
}

// BackupWrap wraps err as a backup error with context.
func BackupWrap(err error, msg string) *Error { return wrapError(KindBackup, err, msg) }

// Source returns a new source acquisition error.
func Source(msg string) *Error { return newError(KindSource, msg) }

// Sourcef formats a new source acquisition error.
func Sourcef(format string, args ...any) *Error {
	return newError(KindSource, fmt.Sprintf(format, args...))
}

// SourceWrap wraps err as a source error with context.
func SourceWrap(err error, msg string) *Error { return wrapError(KindSource, err, msg) }

// Stacks returns a new stack discovery error.
func Stacks(msg string) *Error { return newError(KindStacks, msg) }

// StacksWrap wraps err as a discovery error with context.
func StacksWrap(err error, msg string) *Error { return wrapError(KindStacks, err, msg) }
