// Package vmerr defines the error taxonomy raised by the dnxvm runtime.
//
// Every error carries a Kind so callers can classify failures with
// errors.As without string matching, plus the opcode mnemonic and
// instruction pointer active when the failure occurred, where applicable.
package vmerr

import "fmt"

// Kind classifies a runtime error.
type Kind string

const (
	KindLoad   Kind = "load"   // malformed image, unsupported version, truncated stream
	KindLookup Kind = "lookup" // unknown scene/function/definition/external name
	KindType   Kind = "type"   // operator applied to incompatible value tags
	KindState  Kind = "state"  // choice/choose state machine misuse
	KindBounds Kind = "bounds" // index out of range
	KindHost   Kind = "host"   // external function call failed
)

// Error is the concrete error type for all dnxvm runtime failures.
type Error struct {
	Kind   Kind
	Op     string // opcode mnemonic, or "" if not opcode-specific
	IP     int    // instruction pointer, or -1 if not applicable
	Reason string
	Cause  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("%s: %s at ip=%d: %s", e.Kind, e.Op, e.IP, e.Reason)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, vmerr.ErrX) work by comparing Kind values wrapped
// in a bare Error sentinel.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	if other.Reason == "" && other.Op == "" && other.Cause == nil {
		return e.Kind == other.Kind
	}
	return false
}

func newErr(kind Kind, op string, ip int, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, IP: ip, Reason: fmt.Sprintf(format, args...)}
}

// Load reports a malformed or unsupported binary image.
func Load(format string, args ...any) *Error {
	return newErr(KindLoad, "", -1, format, args...)
}

// LoadWrap reports a malformed binary image caused by an underlying error
// (e.g. a DEFLATE decompression failure).
func LoadWrap(cause error, format string, args ...any) *Error {
	e := newErr(KindLoad, "", -1, format, args...)
	e.Cause = cause
	return e
}

// Lookup reports a reference to an unknown scene, function, definition, or
// external function name.
func Lookup(op string, ip int, format string, args ...any) *Error {
	return newErr(KindLookup, op, ip, format, args...)
}

// Type reports an operator applied to incompatible value tags.
func Type(op string, ip int, format string, args ...any) *Error {
	return newErr(KindType, op, ip, format, args...)
}

// State reports a misuse of the choice/choose/text suspension protocol.
func State(op string, ip int, format string, args ...any) *Error {
	return newErr(KindState, op, ip, format, args...)
}

// Bounds reports an out-of-range index.
func Bounds(op string, ip int, format string, args ...any) *Error {
	return newErr(KindBounds, op, ip, format, args...)
}

// Host reports a failure raised by an external function invocation.
func Host(op string, ip int, cause error, format string, args ...any) *Error {
	e := newErr(KindHost, op, ip, format, args...)
	e.Cause = cause
	return e
}

// sentinels for errors.Is comparisons, e.g. errors.Is(err, vmerr.ErrLoad).
var (
	ErrLoad   = &Error{Kind: KindLoad}
	ErrLookup = &Error{Kind: KindLookup}
	ErrType   = &Error{Kind: KindType}
	ErrState  = &Error{Kind: KindState}
	ErrBounds = &Error{Kind: KindBounds}
	ErrHost   = &Error{Kind: KindHost}
)
