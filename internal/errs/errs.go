// Package errs defines the coded errors shared by the loader, the derived views
// and the formulation converters.
//
// Every failure that callers are expected to branch on carries a Code. Errors
// compare equal under errors.Is when their codes match, so the package level
// sentinels can be used directly:
//
//	if errors.Is(err, errs.ErrResourceNotFound) { ... }
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Code identifies a class of failure. Codes are strings so they read well in
// logs and serialize naturally.
type Code string

const (
	// CodeResourceNotFound: a file or directory the operation depends on is missing.
	CodeResourceNotFound Code = "RESOURCE_NOT_FOUND"

	// CodeSchemaMismatch: a filename or a JSON shape matches no known convention.
	CodeSchemaMismatch Code = "SCHEMA_MISMATCH"

	// CodeVersionIncompatible: a software version falls outside every known release range.
	CodeVersionIncompatible Code = "VERSION_INCOMPATIBLE"

	// CodeIndexOutOfRange: a generation, report or individual index addresses nothing.
	CodeIndexOutOfRange Code = "INDEX_OUT_OF_RANGE"

	// CodeNotFound: a named entity (island, reference point) is absent.
	CodeNotFound Code = "NOT_FOUND"

	// CodeFormulationMismatch: a conversion source tag or family does not match the data.
	CodeFormulationMismatch Code = "FORMULATION_MISMATCH"

	// CodeIrreversibleConversion: the target formulation cannot represent the source.
	CodeIrreversibleConversion Code = "IRREVERSIBLE_CONVERSION"

	// CodeInvariantViolation: the data is internally inconsistent.
	CodeInvariantViolation Code = "INVARIANT_VIOLATION"

	// CodeCapabilityUnavailable: an optional capability was not supplied.
	CodeCapabilityUnavailable Code = "CAPABILITY_UNAVAILABLE"
)

var (
	ErrResourceNotFound       = &Error{Code: CodeResourceNotFound}
	ErrSchemaMismatch         = &Error{Code: CodeSchemaMismatch}
	ErrVersionIncompatible    = &Error{Code: CodeVersionIncompatible}
	ErrIndexOutOfRange        = &Error{Code: CodeIndexOutOfRange}
	ErrNotFound               = &Error{Code: CodeNotFound}
	ErrFormulationMismatch    = &Error{Code: CodeFormulationMismatch}
	ErrIrreversibleConversion = &Error{Code: CodeIrreversibleConversion}
	ErrInvariantViolation     = &Error{Code: CodeInvariantViolation}
	ErrCapabilityUnavailable  = &Error{Code: CodeCapabilityUnavailable}
)

// Error is a coded error. Op names the failing operation, Path the file it was
// working on (if any) and Err the underlying cause.
type Error struct {
	Code Code
	Op   string
	Path string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(strings.ToLower(strings.ReplaceAll(string(e.Code), "_", " ")))
	if e.Path != "" {
		fmt.Fprintf(&b, " (%s)", e.Path)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New returns a coded error with a formatted message.
func New(code Code, op, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and the offending path to err.
func Wrap(code Code, op, path string, err error) *Error {
	return &Error{Code: code, Op: op, Path: path, Err: err}
}

// WithPath returns a copy of e carrying path.
func (e *Error) WithPath(path string) *Error {
	cp := *e
	cp.Path = path
	return &cp
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
