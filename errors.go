// Package openisl is the co-simulation shared-memory transport bus: a
// lock-protected, bounded, time-stamped ring buffer shared by one writer
// and many independent readers, a per-session connector state machine, and
// a cooperative cross-process stop protocol.
package openisl

import (
	"errors"
	"fmt"
	"syscall"
)

// Kind groups errors into the five categories every OpenISL caller needs to
// branch on: a bad configuration value, a failure to obtain or release an
// IPC resource (shm/sem), a wait that timed out or observed termination, a
// DataType/shape mismatch between producer and consumer, or a failed lookup
// (registry slot, channel, variable).
type Kind string

const (
	KindConfigValidation Kind = "config validation"
	KindIPCResource      Kind = "ipc resource"
	KindProtocolWait     Kind = "protocol wait"
	KindShapeMismatch    Kind = "shape mismatch"
	KindLookupMiss       Kind = "lookup miss"
)

// Error is the structured error type returned throughout the core.
type Error struct {
	Op    string // operation that failed, e.g. "Connector.Connect"
	Name  string // the connector/channel/variable name involved, if any
	Kind  Kind
	Errno syscall.Errno // kernel errno, 0 if not applicable
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.Name != "" {
		parts = append(parts, fmt.Sprintf("name=%s", e.Name))
	}
	if e.Errno != 0 {
		parts = append(parts, fmt.Sprintf("errno=%d", e.Errno))
	}
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if len(parts) > 0 {
		return fmt.Sprintf("openisl: %s (%s)", msg, parts[0])
	}
	return fmt.Sprintf("openisl: %s", msg)
}

func (e *Error) Unwrap() error { return e.Inner }

// Is supports errors.Is comparison against another *Error by Kind.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == te.Kind
}

// Sentinel errors for common terminal conditions that callers frequently
// check for by identity rather than by Kind.
var (
	ErrTerminated   = &Error{Kind: KindProtocolWait, Msg: "connector terminated"}
	ErrTimeout      = &Error{Kind: KindProtocolWait, Msg: "wait timed out"}
	ErrEmpty        = &Error{Kind: KindProtocolWait, Msg: "no sample available"}
	ErrNoMatch      = &Error{Kind: KindProtocolWait, Msg: "no sample covers the requested time"}
	ErrNotFound     = &Error{Kind: KindLookupMiss, Msg: "not found"}
	ErrAlreadyExists = &Error{Kind: KindIPCResource, Msg: "already exists"}
)

// NewError builds a structured error for op/kind with a formatted message.
func NewError(op string, kind Kind, format string, args ...any) *Error {
	return &Error{Op: op, Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// WrapError wraps inner with op context, preserving Kind if inner already
// carries one, mapping a bare syscall.Errno to a best-guess Kind otherwise.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	var oe *Error
	if errors.As(inner, &oe) {
		return &Error{Op: op, Name: oe.Name, Kind: oe.Kind, Errno: oe.Errno, Msg: oe.Msg, Inner: oe.Inner}
	}
	var errno syscall.Errno
	if errors.As(inner, &errno) {
		return &Error{Op: op, Kind: mapErrnoToKind(errno), Errno: errno, Msg: errno.Error(), Inner: inner}
	}
	return &Error{Op: op, Kind: KindIPCResource, Msg: inner.Error(), Inner: inner}
}

func mapErrnoToKind(errno syscall.Errno) Kind {
	switch errno {
	case syscall.ENOENT:
		return KindLookupMiss
	case syscall.EEXIST, syscall.ENOMEM, syscall.ENOSPC, syscall.EACCES, syscall.EPERM:
		return KindIPCResource
	case syscall.ETIMEDOUT:
		return KindProtocolWait
	case syscall.EINVAL:
		return KindConfigValidation
	default:
		return KindIPCResource
	}
}

// IsKind reports whether err is an *Error of the given Kind.
func IsKind(err error, kind Kind) bool {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Kind == kind
	}
	return false
}
