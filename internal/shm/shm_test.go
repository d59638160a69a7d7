//go:build linux && cgo

package shm

import (
	"testing"
)

func withScratchDir(t *testing.T) {
	t.Helper()
	old := shmDir
	shmDir = t.TempDir()
	t.Cleanup(func() { shmDir = old })
}

func TestCreateThenAttach(t *testing.T) {
	withScratchDir(t)

	owner, err := Create("ses1_mdl1", 256, RW)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer owner.Detach()

	if owner.Size() != 256 {
		t.Errorf("Size() = %d, want 256", owner.Size())
	}

	copy(owner.Data(), []byte("hello"))

	attacher, err := Attach("ses1_mdl1", RW)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer attacher.Detach()

	if string(attacher.Data()[:5]) != "hello" {
		t.Errorf("attacher sees %q, want %q", attacher.Data()[:5], "hello")
	}
}

func TestCreateTwiceReturnsAlreadyExists(t *testing.T) {
	withScratchDir(t)

	owner, err := Create("ses1_mdl2", 64, RW)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer owner.Detach()

	_, err = Create("ses1_mdl2", 64, RW)
	if err == nil {
		t.Fatal("expected error creating an already-existing region")
	}
}

func TestLockIsReentrantForHolder(t *testing.T) {
	withScratchDir(t)

	s, err := Create("ses1_mdl3", 32, RW)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer s.Detach()

	if err := s.Lock(); err != nil {
		t.Fatalf("first Lock: %v", err)
	}
	if err := s.Lock(); err != nil {
		t.Fatalf("nested Lock should not deadlock: %v", err)
	}
	if err := s.Unlock(); err != nil {
		t.Fatalf("first Unlock: %v", err)
	}
	if err := s.Unlock(); err != nil {
		t.Fatalf("second Unlock: %v", err)
	}
	if err := s.Unlock(); err == nil {
		t.Error("expected error unlocking an already-unlocked region")
	}
}

func TestDetachClearsData(t *testing.T) {
	withScratchDir(t)

	s, err := Create("ses1_mdl4", 16, RW)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !s.IsAttached() {
		t.Fatal("expected IsAttached() after Create")
	}
	if err := s.Detach(); err != nil {
		t.Fatalf("Detach: %v", err)
	}
	if s.IsAttached() {
		t.Error("expected !IsAttached() after Detach")
	}
	if s.Data() != nil {
		t.Error("expected nil Data() after Detach")
	}
}
