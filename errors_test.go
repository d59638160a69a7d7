package openisl

import (
	"errors"
	"fmt"
	"strings"
	"syscall"
	"testing"
)

func TestNewErrorFormatsMessage(t *testing.T) {
	err := NewError("check", KindConfigValidation, "bad value %d", 7)
	if err.Op != "check" {
		t.Errorf("Op = %q, want check", err.Op)
	}
	if err.Kind != KindConfigValidation {
		t.Errorf("Kind = %q, want %q", err.Kind, KindConfigValidation)
	}
	want := "bad value 7"
	if err.Msg != want {
		t.Errorf("Msg = %q, want %q", err.Msg, want)
	}
}

func TestIsKindMatchesWrappedError(t *testing.T) {
	err := NewError("get", KindLookupMiss, "unknown variable %q", "Token1R")
	wrapped := fmt.Errorf("connector.GetData: %w", err)
	if !IsKind(wrapped, KindLookupMiss) {
		t.Fatalf("IsKind(wrapped, KindLookupMiss) = false, want true")
	}
	if IsKind(wrapped, KindIPCResource) {
		t.Fatalf("IsKind(wrapped, KindIPCResource) = true, want false")
	}
}

func TestErrorsIsByKind(t *testing.T) {
	a := NewError("acquire", KindProtocolWait, "timed out")
	if !errors.Is(a, ErrTimeout) {
		t.Fatalf("errors.Is(a, ErrTimeout) = false, want true (same Kind)")
	}
	if errors.Is(a, ErrNotFound) {
		t.Fatalf("errors.Is(a, ErrNotFound) = true, want false (different Kind)")
	}
}

func TestWrapErrorPreservesKind(t *testing.T) {
	inner := NewError("attach", KindIPCResource, "shm busy")
	wrapped := WrapError("connect", inner)
	if wrapped.Kind != KindIPCResource {
		t.Errorf("Kind = %q, want %q", wrapped.Kind, KindIPCResource)
	}
	if wrapped.Op != "connect" {
		t.Errorf("Op = %q, want connect", wrapped.Op)
	}
	if !errors.Is(wrapped, inner) {
		t.Errorf("errors.Is(wrapped, inner) = false, want true")
	}
}

func TestWrapErrorMapsErrno(t *testing.T) {
	wrapped := WrapError("attach", syscall.ENOENT)
	if wrapped.Kind != KindLookupMiss {
		t.Errorf("Kind = %q, want %q", wrapped.Kind, KindLookupMiss)
	}
	if wrapped.Errno != syscall.ENOENT {
		t.Errorf("Errno = %v, want ENOENT", wrapped.Errno)
	}
}

func TestWrapErrorNilIsNil(t *testing.T) {
	if err := WrapError("op", nil); err != nil {
		t.Fatalf("WrapError(op, nil) = %v, want nil", err)
	}
}

func TestErrorStringIncludesOp(t *testing.T) {
	err := NewError("check", KindConfigValidation, "missing name")
	s := err.Error()
	if !strings.Contains(s, "op=check") {
		t.Fatalf("Error() = %q, want it to include op=check", s)
	}
	if !errors.Is(err, err) {
		t.Fatal("an error must always satisfy errors.Is against itself")
	}
}
