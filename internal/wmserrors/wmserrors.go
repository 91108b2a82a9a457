// Package wmserrors implements the OGC Service Exception taxonomy
// (spec.md §6, §7) as Go errors, plus the Op/Err wrapping shape the
// teacher repo's internal/hcs/errors package uses for HcsError.
package wmserrors

import (
	"errors"
	"fmt"

	"github.com/containerd/errdefs"
)

// Code is an OGC Service Exception code from the fixed vocabulary in
// spec.md §6.
type Code string

const (
	CurrentUpdateSequence Code = "CurrentUpdateSequence"
	InvalidUpdateSequence Code = "InvalidUpdateSequence"
	MissingParameterValue Code = "MissingParameterValue"
	InvalidSRS            Code = "InvalidSRS"
	LayerNotDefined        Code = "LayerNotDefined"
	StyleNotDefined        Code = "StyleNotDefined"
	InvalidFormat          Code = "InvalidFormat"
	LayerNotQueryable      Code = "LayerNotQueryable"
	MissingDimensionValue  Code = "MissingDimensionValue"
	InvalidDimensionValue  Code = "InvalidDimensionValue"
	ServiceNotDefined      Code = "ServiceNotDefined"
	// NoCode marks an untyped exception: collaborator or protocol-state
	// failures that carry no OGC code (spec.md §7 "Collaborator errors").
	NoCode Code = ""
)

// Exception is a single OGC Service Exception: a code (possibly empty)
// plus a human-readable message. It is the unit the exception
// formatters (internal/wms/exceptions.go) serialize.
type Exception struct {
	Code    Code
	Message string
}

func (e *Exception) Error() string {
	if e.Code == NoCode {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New builds a coded Exception.
func New(code Code, format string, args ...any) *Exception {
	return &Exception{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Untyped builds an uncoded Exception, for collaborator and
// protocol-state failures per spec.md §7.
func Untyped(format string, args ...any) *Exception {
	return &Exception{Message: fmt.Sprintf(format, args...)}
}

// Kind classifies the underlying cause of an Error, independent of any
// OGC exception Code it may be folded into. It lets callers that only
// have an *Error (not yet turned into an Exception) branch on cause
// without re-running the errdefs sentinel checks.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindInvalidArgument
	KindNotImplemented
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindInvalidArgument:
		return "invalid argument"
	case KindNotImplemented:
		return "not implemented"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is the Op/Err wrapper used internally when a non-exception Go
// error needs an operation label attached before logging, mirroring the
// teacher's internal/hcs/errors.HcsError shape.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Wrap attaches an operation label to err, or returns nil if err is nil.
// The wrapped Error's Kind is classified from err via classifyKind.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: classifyKind(err), Err: err}
}

// WrapKind attaches an operation label and an explicit Kind to err, for
// callers that already know the cause (e.g. a binder rejecting a
// parameter) rather than having to rely on errdefs classification.
func WrapKind(op string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// classifyKind maps the containerd/errdefs sentinel taxonomy onto Kind.
func classifyKind(err error) Kind {
	switch {
	case errdefs.IsNotFound(err):
		return KindNotFound
	case errdefs.IsInvalidArgument(err):
		return KindInvalidArgument
	case errors.Is(err, errdefs.ErrNotImplemented):
		return KindNotImplemented
	default:
		return KindInternal
	}
}

// FromCollaboratorError classifies an error returned by an out-of-scope
// collaborator (Renderer, DataSource, SLDApplier, ...) using the
// containerd/errdefs sentinel taxonomy, so a collaborator that reports
// "not found" or "not implemented" in the conventional way produces a
// more specific Exception than a bare Untyped wrap.
func FromCollaboratorError(op string, err error) *Exception {
	switch classifyKind(err) {
	case KindNotFound:
		return New(LayerNotDefined, "%s: %v", op, err)
	case KindNotImplemented:
		return Untyped("%s: not implemented: %v", op, err)
	default:
		return Untyped("%s: %v", op, err)
	}
}

// AsException unwraps err looking for an *Exception, returning it and
// true if found.
func AsException(err error) (*Exception, bool) {
	for err != nil {
		if exc, ok := err.(*Exception); ok {
			return exc, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return nil, false
}
