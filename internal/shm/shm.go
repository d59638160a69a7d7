// Package shm implements a named, sized, lock-protected shared-memory
// region backed by a paired named semaphore acting as its mutex.
//
// The region itself is a POSIX shared-memory object under /dev/shm,
// mapped with golang.org/x/sys/unix.Mmap.
package shm

import (
	"fmt"
	"os"
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/esimstech/openisl-go/internal/sem"
)

// Mode selects read/write vs read-only mapping.
type Mode int

const (
	RW Mode = iota
	RO
)

// shmDir is where POSIX shared-memory objects live on Linux. It's a var,
// not a const, so tests can redirect it to a scratch directory.
var shmDir = "/dev/shm"

// SetDirForTest redirects the backing directory for POSIX shared-memory
// objects. Exposed for other packages' tests (internal/channel); within
// this package's own tests, reassigning shmDir directly is simpler.
func SetDirForTest(dir string) { shmDir = dir }

// Error classifies a NamedShm failure.
type Error struct {
	Op   string
	Name string
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("shm: %s %q: %v", e.Op, e.Name, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// ErrAlreadyExists is returned by Create when the named region already
// exists; the caller may fall back to Attach.
var ErrAlreadyExists = os.ErrExist

// Shm is a named, sized, lock-protected shared-memory region.
type Shm struct {
	name      string
	size      int
	mode      Mode
	fd        int
	data      []byte
	attached  bool
	mutex     *sem.Sem
	lockDepth int
}

func path(name string) string { return filepath.Join(shmDir, name) }

// mutexKey derives the paired mutex semaphore's key from the region name.
func mutexKey(name string) string { return name + "__mutex" }

func pairedMutex(name string) (*sem.Sem, error) {
	mname, err := sem.DeriveName("_isl_sem_", mutexKey(name))
	if err != nil {
		return nil, err
	}
	return sem.OpenOrCreate(mname, 1)
}

// Create allocates a new region of the given size. If the name already
// exists, ErrAlreadyExists is returned and the caller may call Attach
// instead.
func Create(name string, size int, mode Mode) (*Shm, error) {
	fd, err := unix.Open(path(name), unix.O_CREAT|unix.O_EXCL|unix.O_RDWR, 0666)
	if err != nil {
		if err == unix.EEXIST {
			return nil, &Error{Op: "create", Name: name, Err: ErrAlreadyExists}
		}
		return nil, &Error{Op: "create", Name: name, Err: err}
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Close(fd)
		return nil, &Error{Op: "create", Name: name, Err: err}
	}

	mutex, err := pairedMutex(name)
	if err != nil {
		unix.Close(fd)
		return nil, &Error{Op: "create", Name: name, Err: err}
	}

	s := &Shm{name: name, size: size, mode: mode, fd: fd, mutex: mutex}
	if err := s.mapRegion(); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return s, nil
}

// Attach maps an existing region, populating size from the OS view.
func Attach(name string, mode Mode) (*Shm, error) {
	flags := unix.O_RDWR
	if mode == RO {
		flags = unix.O_RDONLY
	}
	fd, err := unix.Open(path(name), flags, 0)
	if err != nil {
		return nil, &Error{Op: "attach", Name: name, Err: err}
	}
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		unix.Close(fd)
		return nil, &Error{Op: "attach", Name: name, Err: err}
	}

	mutex, err := pairedMutex(name)
	if err != nil {
		unix.Close(fd)
		return nil, &Error{Op: "attach", Name: name, Err: err}
	}

	s := &Shm{name: name, size: int(st.Size), mode: mode, fd: fd, mutex: mutex}
	if err := s.mapRegion(); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return s, nil
}

func (s *Shm) mapRegion() error {
	prot := unix.PROT_READ
	if s.mode == RW {
		prot |= unix.PROT_WRITE
	}
	data, err := unix.Mmap(s.fd, 0, s.size, prot, unix.MAP_SHARED)
	if err != nil {
		return &Error{Op: "mmap", Name: s.name, Err: err}
	}
	s.data = data
	s.attached = true
	return nil
}

// Detach unmaps the region and closes the file descriptor.
func (s *Shm) Detach() error {
	if !s.attached {
		return nil
	}
	if err := unix.Munmap(s.data); err != nil {
		return &Error{Op: "detach", Name: s.name, Err: err}
	}
	s.data = nil
	s.attached = false
	if err := unix.Close(s.fd); err != nil {
		return &Error{Op: "detach", Name: s.name, Err: err}
	}
	return s.mutex.Close()
}

// IsAttached reports whether the region is currently mapped.
func (s *Shm) IsAttached() bool { return s.attached }

// Size returns the region size in bytes.
func (s *Shm) Size() int { return s.size }

// Name returns the region's key (not the derived kernel name).
func (s *Shm) Name() string { return s.name }

// Data returns the mapped region. Only valid while attached; pointer
// arithmetic over it is the caller's responsibility (see internal/wire).
func (s *Shm) Data() []byte {
	if !s.attached {
		return nil
	}
	return s.data
}

// pointerFromMmap converts the mmap'd slice's base address to an
// unsafe.Pointer through an indirection that keeps `go vet`'s unsafeptr
// checker happy for addresses that are known-stable for the lifetime of
// the mapping.
//
//go:noinline
func pointerFromMmap(data []byte) unsafe.Pointer {
	if len(data) == 0 {
		return nil
	}
	addr := uintptr(unsafe.Pointer(&data[0]))
	return *(*unsafe.Pointer)(unsafe.Pointer(&addr))
}

// Base returns a stable unsafe.Pointer to the start of the mapped region.
func (s *Shm) Base() unsafe.Pointer {
	return pointerFromMmap(s.data)
}

// Lock acquires the region's mutex. Re-entrant for the calling goroutine's
// logical holder: a Shm object tracks its own recursion depth so nested
// Lock/Unlock pairs within one call chain don't deadlock against
// themselves.
func (s *Shm) Lock() error {
	if s.lockDepth > 0 {
		s.lockDepth++
		return nil
	}
	if err := s.mutex.Acquire(0); err != nil {
		return &Error{Op: "lock", Name: s.name, Err: err}
	}
	Mfence()
	s.lockDepth = 1
	return nil
}

// Unlock releases the region's mutex once the recursion depth reaches 0.
func (s *Shm) Unlock() error {
	if s.lockDepth == 0 {
		return &Error{Op: "unlock", Name: s.name, Err: fmt.Errorf("not locked")}
	}
	s.lockDepth--
	if s.lockDepth > 0 {
		return nil
	}
	Sfence()
	if err := s.mutex.Release(1); err != nil {
		return &Error{Op: "unlock", Name: s.name, Err: err}
	}
	return nil
}
