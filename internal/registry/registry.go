// Package registry implements ConnectorShm & RegistryShm — the passive
// shared-memory layouts for one connector's descriptor and the
// process-wide table of live connectors — plus the in-process Registry
// singleton that the connect step populates.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/esimstech/openisl-go/internal/constants"
	"github.com/esimstech/openisl-go/internal/sem"
	"github.com/esimstech/openisl-go/internal/shm"
	"github.com/esimstech/openisl-go/internal/wire"
)

// Error wraps a lower-level shm/sem failure with the operation that
// triggered it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("registry: %s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// ConnectorShm is one connector's descriptor in its own shared-memory
// segment.
type ConnectorShm struct {
	shm    *shm.Shm
	maxStr int
}

// CreateConnectorShm allocates and initializes a connector's descriptor
// segment, keyed by (session, uid).
func CreateConnectorShm(session string, uid uint32, rec wire.ConnectorRecord, maxStr int) (*ConnectorShm, error) {
	name, err := sem.DeriveName(constants.DefaultShmPrefix, wire.KeyConnectorShm(session, uid))
	if err != nil {
		return nil, &Error{Op: "create_connector_shm", Err: err}
	}
	size := wire.ConnectorRecordSize(maxStr)
	region, err := shm.Create(name, size, shm.RW)
	if err != nil {
		return nil, &Error{Op: "create_connector_shm", Err: err}
	}
	c := &ConnectorShm{shm: region, maxStr: maxStr}
	if err := c.Write(rec); err != nil {
		region.Detach()
		return nil, err
	}
	return c, nil
}

// AttachConnectorShm attaches an existing connector descriptor, read-only,
// to populate a peer's type/uuid/file/n_data fields.
func AttachConnectorShm(session string, uid uint32, maxStr int) (*ConnectorShm, error) {
	name, err := sem.DeriveName(constants.DefaultShmPrefix, wire.KeyConnectorShm(session, uid))
	if err != nil {
		return nil, &Error{Op: "attach_connector_shm", Err: err}
	}
	region, err := shm.Attach(name, shm.RO)
	if err != nil {
		return nil, &Error{Op: "attach_connector_shm", Err: err}
	}
	return &ConnectorShm{shm: region, maxStr: maxStr}, nil
}

// Read copies the record back out, under the region lock.
func (c *ConnectorShm) Read() (wire.ConnectorRecord, error) {
	if err := c.shm.Lock(); err != nil {
		return wire.ConnectorRecord{}, &Error{Op: "read", Err: err}
	}
	defer c.shm.Unlock()
	rec, err := wire.UnmarshalConnectorRecord(c.shm.Data(), c.maxStr)
	if err != nil {
		return wire.ConnectorRecord{}, &Error{Op: "read", Err: err}
	}
	return rec, nil
}

// Write overwrites the record, under the region lock.
func (c *ConnectorShm) Write(rec wire.ConnectorRecord) error {
	if err := c.shm.Lock(); err != nil {
		return &Error{Op: "write", Err: err}
	}
	defer c.shm.Unlock()
	if err := wire.MarshalConnectorRecord(c.shm.Data(), rec, c.maxStr); err != nil {
		return &Error{Op: "write", Err: err}
	}
	return nil
}

// Detach unmaps the descriptor segment.
func (c *ConnectorShm) Detach() error {
	if err := c.shm.Detach(); err != nil {
		return &Error{Op: "detach", Err: err}
	}
	return nil
}

// RegistryShm is the process-wide fixed-capacity table of live connectors.
// A slot with ISLID == 0 is free.
type RegistryShm struct {
	shm      *shm.Shm
	maxStr   int
	capacity int
}

// Capacity returns the fixed number of slots this registry segment holds.
func (r *RegistryShm) Capacity() int { return r.capacity }

// OpenRegistryShm creates the registry segment on first access in a
// process, or attaches to the existing one otherwise.
func OpenRegistryShm(maxStr, capacity int) (*RegistryShm, error) {
	name, err := sem.DeriveName(constants.DefaultShmPrefix, wire.KeyRegistrySHM())
	if err != nil {
		return nil, &Error{Op: "open_registry_shm", Err: err}
	}
	size := wire.RegistrySlotSize(maxStr) * capacity

	region, err := shm.Create(name, size, shm.RW)
	if err == nil {
		r := &RegistryShm{shm: region, maxStr: maxStr, capacity: capacity}
		if err := r.zeroAll(); err != nil {
			region.Detach()
			return nil, err
		}
		return r, nil
	}
	if !errors.Is(err, shm.ErrAlreadyExists) {
		return nil, &Error{Op: "open_registry_shm", Err: err}
	}

	region, err = shm.Attach(name, shm.RW)
	if err != nil {
		return nil, &Error{Op: "open_registry_shm", Err: err}
	}
	return &RegistryShm{shm: region, maxStr: maxStr, capacity: capacity}, nil
}

func (r *RegistryShm) slotOffset(i int) int { return i * wire.RegistrySlotSize(r.maxStr) }

func (r *RegistryShm) zeroAll() error {
	if err := r.shm.Lock(); err != nil {
		return &Error{Op: "zero_all", Err: err}
	}
	defer r.shm.Unlock()
	data := r.shm.Data()
	for i := range data {
		data[i] = 0
	}
	return nil
}

// Add scans for the first free slot, writes rec into it under the lock, and
// returns its stable index.
func (r *RegistryShm) Add(rec wire.RegistrySlot) (int, error) {
	if err := r.shm.Lock(); err != nil {
		return 0, &Error{Op: "add", Err: err}
	}
	defer r.shm.Unlock()

	data := r.shm.Data()
	slotSize := wire.RegistrySlotSize(r.maxStr)
	for i := 0; i < r.capacity; i++ {
		off := r.slotOffset(i)
		slot, err := wire.UnmarshalRegistrySlot(data[off:off+slotSize], r.maxStr)
		if err != nil {
			return 0, &Error{Op: "add", Err: err}
		}
		if slot.IsEmpty() {
			if err := wire.MarshalRegistrySlot(data[off:off+slotSize], rec, r.maxStr); err != nil {
				return 0, &Error{Op: "add", Err: err}
			}
			return i, nil
		}
	}
	return 0, &Error{Op: "add", Err: fmt.Errorf("registry full (capacity %d)", r.capacity)}
}

// Remove zeroes slot i under the lock.
func (r *RegistryShm) Remove(i int) error {
	if i < 0 || i >= r.capacity {
		return &Error{Op: "remove", Err: fmt.Errorf("index %d out of range [0,%d)", i, r.capacity)}
	}
	if err := r.shm.Lock(); err != nil {
		return &Error{Op: "remove", Err: err}
	}
	defer r.shm.Unlock()
	off := r.slotOffset(i)
	data := r.shm.Data()
	slotSize := wire.RegistrySlotSize(r.maxStr)
	for j := off; j < off+slotSize; j++ {
		data[j] = 0
	}
	return nil
}

// Get copies slot i out under the lock.
func (r *RegistryShm) Get(i int) (wire.RegistrySlot, error) {
	if i < 0 || i >= r.capacity {
		return wire.RegistrySlot{}, &Error{Op: "get", Err: fmt.Errorf("index %d out of range [0,%d)", i, r.capacity)}
	}
	if err := r.shm.Lock(); err != nil {
		return wire.RegistrySlot{}, &Error{Op: "get", Err: err}
	}
	defer r.shm.Unlock()
	off := r.slotOffset(i)
	slotSize := wire.RegistrySlotSize(r.maxStr)
	return wire.UnmarshalRegistrySlot(r.shm.Data()[off:off+slotSize], r.maxStr)
}

// Detach unmaps the registry segment.
func (r *RegistryShm) Detach() error {
	if err := r.shm.Detach(); err != nil {
		return &Error{Op: "detach", Err: err}
	}
	return nil
}

// Disconnector is anything the in-process Registry can clean up on a
// coordinated shutdown. The root Connector type satisfies it.
type Disconnector interface {
	Disconnect() error
}

// Registry is the in-process singleton owning every live connector this
// process created via connect().
type Registry struct {
	mu         sync.RWMutex
	connectors map[string]Disconnector
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide Registry singleton.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = New()
	})
	return defaultRegistry
}

// New constructs a standalone Registry (mainly for tests; production code
// should use Default()).
func New() *Registry {
	return &Registry{connectors: make(map[string]Disconnector)}
}

// Add registers a connector under key (typically "<session>/<uid>").
func (r *Registry) Add(key string, c Disconnector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectors[key] = c
}

// Remove unregisters a connector.
func (r *Registry) Remove(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.connectors, key)
}

// Get looks up a live connector by key.
func (r *Registry) Get(key string) (Disconnector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.connectors[key]
	return c, ok
}

// Len reports how many connectors are currently registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connectors)
}

// Cleanup disconnects every registered connector concurrently, returning
// the first error encountered (if any), and empties the registry
// regardless of individual failures.
func (r *Registry) Cleanup() error {
	r.mu.Lock()
	targets := make([]Disconnector, 0, len(r.connectors))
	for _, c := range r.connectors {
		targets = append(targets, c)
	}
	r.connectors = make(map[string]Disconnector)
	r.mu.Unlock()

	var g errgroup.Group
	for _, c := range targets {
		c := c
		g.Go(func() error {
			return c.Disconnect()
		})
	}
	return g.Wait()
}
