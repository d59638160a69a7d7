// Package sem implements a named counting semaphore bound to a
// host-global name, with a deterministic name derivation that accepts any
// prefix of at least three bytes (the legacy prefixes in
// internal/constants included; no caller in this module passes them).
//
// The platform primitive itself (POSIX sem_open/sem_timedwait/sem_post)
// has no binding in the standard library or in golang.org/x/sys/unix, so
// this package reaches for a small inline-C shim rather than hand-rolling
// the syscall plumbing: the cgo-backed implementation lives in sem_cgo.go
// (linux && cgo), and a stub whose every operation fails with
// errNotSupported (classified as CodeNotSupported) lives in sem_stub.go for
// any other build.
package sem

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
	"unsafe"
)

// Code classifies a named-semaphore failure.
type Code int

const (
	CodeNone Code = iota
	CodeNoKey
	CodeWrongKeyFormat
	CodePermissionDenied
	CodeOutOfResources
	CodeOutOfMemory
	CodeAcquireFailed
	CodeTimeoutReached
	CodeReleaseFailed
	CodeNotSupported
)

// Error is the error type returned by this package.
type Error struct {
	Op   string
	Name string
	Code Code
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sem: %s %q: %v", e.Op, e.Name, e.Err)
	}
	return fmt.Sprintf("sem: %s %q: code %d", e.Op, e.Name, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

var ErrTimeout = errors.New("sem: acquire timed out")

// Sentinel errors classified by the platform-specific implementation.
var (
	errPermission   = errors.New("sem: permission denied")
	errNoMemory     = errors.New("sem: out of memory")
	errNoResources  = errors.New("sem: out of resources")
	errNotSupported = errors.New("sem: not supported on this platform")
)

// handle is the opaque platform semaphore handle (a *C.sem_t under cgo).
type handle = unsafe.Pointer

// DeriveName computes the in-kernel name for a key under a given prefix:
// prefix || letters_only(key) || sha1_hex(key). The prefix must be at
// least constants.MinPrefixLen bytes; letters_only keeps the name
// human-grep-able while the hash suffix guarantees uniqueness and a
// bounded length regardless of what punctuation the caller's key has.
func DeriveName(prefix, key string) (string, error) {
	if len(prefix) < 3 {
		return "", &Error{Op: "derive", Name: key, Code: CodeWrongKeyFormat, Err: fmt.Errorf("prefix %q shorter than 3 bytes", prefix)}
	}
	if key == "" {
		return "", &Error{Op: "derive", Name: key, Code: CodeNoKey}
	}
	sum := sha1.Sum([]byte(key))
	return prefix + lettersOnly(key) + hex.EncodeToString(sum[:]), nil
}

func lettersOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Sem is a counting semaphore identified by a human-readable key.
type Sem struct {
	name    string
	handle  handle
	created bool
}

// OpenOrCreate opens the named semaphore, creating it with initial if it
// does not already exist.
func OpenOrCreate(name string, initial uint32) (*Sem, error) {
	h, created, err := semOpenOrCreate(name, initial)
	if err != nil {
		return nil, &Error{Op: "open_or_create", Name: name, Code: classify(err), Err: err}
	}
	return &Sem{name: name, handle: h, created: created}, nil
}

// Name reports the kernel-level name this semaphore was opened under.
func (s *Sem) Name() string { return s.name }

// Acquire waits up to timeout for the semaphore to become available.
// A zero or negative timeout waits forever.
func (s *Sem) Acquire(timeout time.Duration) error {
	err := semAcquire(s.handle, timeout)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTimeout) {
		return &Error{Op: "acquire", Name: s.name, Code: CodeTimeoutReached, Err: err}
	}
	return &Error{Op: "acquire", Name: s.name, Code: CodeAcquireFailed, Err: err}
}

// Release posts n to the semaphore, waking up to n waiters.
func (s *Sem) Release(n uint32) error {
	if n == 0 {
		return nil
	}
	if err := semRelease(s.handle, n); err != nil {
		return &Error{Op: "release", Name: s.name, Code: CodeReleaseFailed, Err: err}
	}
	return nil
}

// Close releases this process's handle. The kernel object persists as
// long as another process still holds it open.
func (s *Sem) Close() error {
	return semClose(s.handle)
}

// Unlink removes the kernel object. Only the owner should normally call
// this, and only once every attacher has detached.
func (s *Sem) Unlink() error {
	return semUnlink(s.name)
}

func classify(err error) Code {
	switch {
	case errors.Is(err, errPermission):
		return CodePermissionDenied
	case errors.Is(err, errNoMemory):
		return CodeOutOfMemory
	case errors.Is(err, errNoResources):
		return CodeOutOfResources
	case errors.Is(err, errNotSupported):
		return CodeNotSupported
	default:
		return CodeOutOfResources
	}
}
