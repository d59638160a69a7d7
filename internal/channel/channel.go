// Package channel implements the Channel producer/consumer protocol, the
// heart of the transport core: it pairs one ring.Buffer (mapped inside a
// shm.Shm) with two sem.Sem instances (writer-wait-on-full,
// reader-wait-on-empty) and drives the lock → attempt → (unlock → block
// → relock → retry) cycle for both the time-unaware and time-indexed
// access paths.
package channel

import (
	"errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/sys/unix"

	"github.com/esimstech/openisl-go/internal/constants"
	"github.com/esimstech/openisl-go/internal/ring"
	"github.com/esimstech/openisl-go/internal/sem"
	"github.com/esimstech/openisl-go/internal/shm"
	"github.com/esimstech/openisl-go/internal/wire"
)

// Sentinel errors returned by the protocol operations below.
var (
	ErrTerminated = errors.New("channel: terminated")
	ErrNoMatch    = errors.New("channel: no sample covers the requested time")
)

// Error wraps a lower-level shm/sem failure with the operation that
// triggered it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("channel: %s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Config carries everything needed to create or attach a Channel. Session
// and ConnectID feed the named-object key derivation (internal/wire);
// Layout describes the ring's dimensions for this variable's DataType.
type Config struct {
	Session       string
	ConnectID     string
	VariableID    uint32
	VariableName  string
	TypeID        int32
	Layout        ring.Layout
	OriginalStep  float64
	StepTolerance float64
}

// Channel is one variable's live transport: a mapped ring buffer plus its
// paired writer/reader semaphores.
type Channel struct {
	cfg          Config
	shm          *shm.Shm
	buf          *ring.Buffer
	writerSem    *sem.Sem
	readerSem    *sem.Sem
	readerID     int
	isWriter     bool
	originalStep float64
	stepTol      float64

	// Timeout bounds how long Get/GetAt block on the reader semaphore.
	// Zero waits forever, matching sem.Sem.Acquire's convention.
	Timeout time.Duration
}

func deriveNames(cfg Config) (shmName, writerSemName, readerSemName string, err error) {
	shmName, err = sem.DeriveName(constants.DefaultShmPrefix, wire.KeyVariableShm(cfg.Session, cfg.ConnectID))
	if err != nil {
		return
	}
	writerSemName, err = sem.DeriveName(constants.DefaultSemPrefix, wire.KeyWriterSem(cfg.Session, cfg.ConnectID))
	if err != nil {
		return
	}
	readerSemName, err = sem.DeriveName(constants.DefaultSemPrefix, wire.KeyReaderSem(cfg.Session, cfg.ConnectID))
	return
}

// CreateWriter creates the channel's shared region and both semaphores,
// seeds every slot with initial at startTime, and returns the writer-side
// Channel.
func CreateWriter(cfg Config, initial []byte, startTime float64) (*Channel, error) {
	shmName, writerSemName, readerSemName, err := deriveNames(cfg)
	if err != nil {
		return nil, &Error{Op: "create", Err: err}
	}

	region, err := shm.Create(shmName, cfg.Layout.TotalSize(), shm.RW)
	if err != nil {
		return nil, &Error{Op: "create", Err: err}
	}
	buf, err := ring.New(region.Data(), cfg.Layout)
	if err != nil {
		region.Detach()
		return nil, &Error{Op: "create", Err: err}
	}
	if err := buf.Init(cfg.VariableID, cfg.VariableName, cfg.TypeID); err != nil {
		region.Detach()
		return nil, &Error{Op: "create", Err: err}
	}
	if err := buf.Seed(initial, startTime); err != nil {
		region.Detach()
		return nil, &Error{Op: "create", Err: err}
	}

	writerSem, err := sem.OpenOrCreate(writerSemName, 0)
	if err != nil {
		region.Detach()
		return nil, &Error{Op: "create", Err: err}
	}
	readerSem, err := sem.OpenOrCreate(readerSemName, 0)
	if err != nil {
		writerSem.Close()
		region.Detach()
		return nil, &Error{Op: "create", Err: err}
	}

	return &Channel{
		cfg: cfg, shm: region, buf: buf,
		writerSem: writerSem, readerSem: readerSem,
		isWriter: true, originalStep: cfg.OriginalStep, stepTol: cfg.StepTolerance,
	}, nil
}

// AttachReader attaches an already-created channel and registers a new
// reader slot. It retries on a transient not-found error every
// constants.AttachRetryInterval until timeout elapses (timeout <= 0 waits
// forever).
func AttachReader(cfg Config, timeout time.Duration) (*Channel, error) {
	shmName, writerSemName, readerSemName, err := deriveNames(cfg)
	if err != nil {
		return nil, &Error{Op: "attach", Err: err}
	}

	deadline := time.Time{}
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	var region *shm.Shm
	for {
		region, err = shm.Attach(shmName, shm.RW)
		if err == nil {
			break
		}
		if !errors.Is(err, unix.ENOENT) {
			return nil, &Error{Op: "attach", Err: err}
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return nil, &Error{Op: "attach", Err: err}
		}
		time.Sleep(constants.AttachRetryInterval)
	}

	buf, err := ring.New(region.Data(), cfg.Layout)
	if err != nil {
		region.Detach()
		return nil, &Error{Op: "attach", Err: err}
	}
	writerSem, err := sem.OpenOrCreate(writerSemName, 0)
	if err != nil {
		region.Detach()
		return nil, &Error{Op: "attach", Err: err}
	}
	readerSem, err := sem.OpenOrCreate(readerSemName, 0)
	if err != nil {
		writerSem.Close()
		region.Detach()
		return nil, &Error{Op: "attach", Err: err}
	}

	c := &Channel{
		cfg: cfg, shm: region, buf: buf,
		writerSem: writerSem, readerSem: readerSem,
		isWriter: false, originalStep: cfg.OriginalStep, stepTol: cfg.StepTolerance,
	}
	if err := region.Lock(); err != nil {
		return nil, &Error{Op: "attach", Err: err}
	}
	r, err := buf.AddReader()
	region.Unlock()
	if err != nil {
		return nil, &Error{Op: "attach", Err: err}
	}
	c.readerID = r
	return c, nil
}

// IsWriter reports whether this handle owns the writer role.
func (c *Channel) IsWriter() bool { return c.isWriter }

// Terminated reports the buffer's terminated flag without taking the lock;
// it's a single byte so a torn read is not a correctness concern here.
func (c *Channel) Terminated() bool { return c.buf.Terminated() }

func (c *Channel) clampReaderRelease() int {
	rw := c.buf.ReaderWait()
	readers := c.buf.Readers()
	release := rw
	if rw-readers < 0 && rw > 0 {
		release = readers
	}
	c.buf.SetReaderWait(0)
	return release
}

// writeLoop implements the Set-path lock/attempt/block/retry cycle shared
// by Set and SetLast; write fills slot w and returns any shape-mismatch
// error from ring.Buffer.SetSlot.
func (c *Channel) writeLoop(write func(w int) error) error {
	for {
		if err := c.shm.Lock(); err != nil {
			return &Error{Op: "set", Err: err}
		}
		if c.buf.Terminated() {
			c.shm.Unlock()
			return ErrTerminated
		}
		if !c.buf.IsFull() {
			w := c.buf.IndWrite()
			if err := write(w); err != nil {
				c.shm.Unlock()
				return err
			}
			c.buf.AdvanceWrite()
			release := c.clampReaderRelease()
			c.shm.Unlock()
			if release > 0 {
				if err := c.readerSem.Release(uint32(release)); err != nil {
					return &Error{Op: "set", Err: err}
				}
			}
			return nil
		}
		c.buf.IncWriterWait()
		c.shm.Unlock()
		if err := c.writerSem.Acquire(0); err != nil {
			return &Error{Op: "set", Err: err}
		}
		if c.buf.Terminated() {
			return ErrTerminated
		}
	}
}

// Set writes value at time t with step (a negative step substitutes the
// variable's original step).
func (c *Channel) Set(value []byte, t, step float64) error {
	if step < 0 {
		step = c.originalStep
	}
	return c.writeLoop(func(w int) error {
		return c.buf.SetSlot(w, value, t, step)
	})
}

// SetEvent writes value with the event-time sentinel as both its time and
// its step; the negative step is what marks the slot as an event sample
// for the backward searches of cases E and F.
func (c *Channel) SetEvent(value []byte) error {
	return c.writeLoop(func(w int) error {
		return c.buf.SetSlot(w, value, constants.EventTime, constants.EventTime)
	})
}

// SetLast replicates the previous slot's value into the next slot under a
// new time/step, extending a held signal without recomputing its value.
func (c *Channel) SetLast(t, step float64) error {
	return c.writeLoop(func(w int) error {
		d := c.buf.FifoDepth()
		prev := ((w-1)%d + d) % d
		val, _, _ := c.buf.GetSlot(prev)
		cp := append([]byte(nil), val...)
		return c.buf.SetSlot(w, cp, t, step)
	})
}

// Get reads the next unread slot for this reader (time-unaware path),
// blocking while empty. Returns the sample's time and step.
func (c *Channel) Get(out []byte) (t, step float64, err error) {
	for {
		if err = c.shm.Lock(); err != nil {
			return 0, 0, &Error{Op: "get", Err: err}
		}
		if c.buf.Terminated() {
			c.shm.Unlock()
			return 0, 0, ErrTerminated
		}
		wasFull := c.buf.IsFullForReader(c.readerID)
		if !c.buf.IsEmptyForReader(c.readerID) {
			idx := c.buf.IndRead(c.readerID)
			val, tt, ss := c.buf.GetSlot(idx)
			copy(out, val)
			c.buf.AdvanceReader(c.readerID)
			var ww int
			if wasFull {
				ww = c.buf.WriterWait()
				c.buf.SetWriterWait(0)
			}
			c.shm.Unlock()
			if wasFull && ww > 0 {
				if rerr := c.writerSem.Release(uint32(ww)); rerr != nil {
					return 0, 0, &Error{Op: "get", Err: rerr}
				}
			}
			return tt, ss, nil
		}
		c.buf.IncReaderWait()
		c.shm.Unlock()
		if err = c.readerSem.Acquire(c.Timeout); err != nil {
			return 0, 0, &Error{Op: "get", Err: err}
		}
		if c.buf.Terminated() {
			return 0, 0, ErrTerminated
		}
	}
}

// GetEvent wraps Get, discarding time/step for event-style samples.
func (c *Channel) GetEvent(out []byte) error {
	_, _, err := c.Get(out)
	return err
}

// SetAt writes slot ind directly, bypassing synchronization and the
// semaphore protocol entirely.
func (c *Channel) SetAt(ind int, value []byte, t, step float64) error {
	return c.buf.SetSlot(ind, value, t, step)
}

// GetMem reads raw slot ind without moving any index.
func (c *Channel) GetMem(ind int) (value []byte, t, step float64) {
	return c.buf.GetSlot(ind)
}

func outTimeForEvent(inTime float64) float64 {
	if inTime != constants.EventTime {
		return inTime
	}
	return constants.EventTime
}

// searchBackward implements case E: the latest slot at or before in_time
// (within tolerance) whose interval covers it, or an event sample.
func (c *Channel) searchBackward(inTime float64) (idx int, found bool) {
	cur := c.buf.IndRead(c.readerID)
	d := c.buf.FifoDepth()
	for k := 1; k < d; k++ {
		j := ((cur-k)%d + d) % d
		tj := c.buf.Time(j)
		sj := c.buf.Step(j)
		tol := c.stepTol * math.Max(sj, 0)
		if tj <= inTime+tol && (sj <= 0 || tj+sj > inTime+tol) {
			return j, true
		}
	}
	return 0, false
}

// searchBackwardEvent implements case F: the latest event-style sample at
// or before in_time.
func (c *Channel) searchBackwardEvent(inTime float64) (idx int, found bool) {
	cur := c.buf.IndRead(c.readerID)
	d := c.buf.FifoDepth()
	for k := 1; k < d; k++ {
		j := ((cur-k)%d + d) % d
		sj := c.buf.Step(j)
		if sj >= 0 {
			continue
		}
		tj := c.buf.Time(j)
		if tj <= inTime {
			return j, true
		}
	}
	return 0, false
}

// tryGetAt runs the full case A-G dispatch once under a single lock
// acquisition. matched reports a value was written to out; mustListen
// reports the caller should block on the reader semaphore and retry.
func (c *Channel) tryGetAt(out []byte, inTime float64) (outTime float64, matched, mustListen bool, err error) {
	if err = c.shm.Lock(); err != nil {
		return 0, false, false, &Error{Op: "get_at", Err: err}
	}
	if c.buf.Terminated() {
		c.shm.Unlock()
		return 0, false, false, ErrTerminated
	}
	wasFull := c.buf.IsFullForReader(c.readerID)

	for {
		if c.buf.IsEmptyForReader(c.readerID) {
			if j, ok := c.searchBackwardEvent(inTime); ok { // case F
				val, tj, _ := c.buf.GetSlot(j)
				copy(out, val)
				outTime = tj
				matched = true
				break
			}
			c.buf.IncReaderWait() // case G
			mustListen = true
			break
		}

		cur := c.buf.IndRead(c.readerID)
		tcur := c.buf.Time(cur)
		scur := c.buf.Step(cur)
		tol := c.stepTol * math.Max(scur, 0)
		tnext := tcur + scur

		switch {
		case tcur == constants.EventTime: // case A
			val, _, _ := c.buf.GetSlot(cur)
			copy(out, val)
			c.buf.AdvanceReader(c.readerID)
			outTime = outTimeForEvent(inTime)
			matched = true
		case inTime >= tcur-tol && inTime <= tcur+tol: // case B
			val, _, _ := c.buf.GetSlot(cur)
			copy(out, val)
			c.buf.AdvanceReader(c.readerID)
			outTime = tcur
			matched = true
		case inTime > tcur+tol && scur >= 0 && inTime >= tnext-tol: // case C
			c.buf.AdvanceReader(c.readerID)
			continue
		case inTime > tcur+tol: // case D
			val, _, _ := c.buf.GetSlot(cur)
			copy(out, val)
			c.buf.AdvanceReader(c.readerID)
			outTime = tcur
			matched = true
		case inTime < tcur-tol: // case E
			if j, ok := c.searchBackward(inTime); ok {
				val, tj, _ := c.buf.GetSlot(j)
				copy(out, val)
				outTime = tj
				matched = true
				if j == cur {
					c.buf.AdvanceReader(c.readerID)
				}
			}
		}
		break
	}

	var ww int
	if wasFull {
		ww = c.buf.WriterWait()
		c.buf.SetWriterWait(0)
	}
	c.shm.Unlock()
	if wasFull && ww > 0 {
		if rerr := c.writerSem.Release(uint32(ww)); rerr != nil {
			return outTime, matched, mustListen, &Error{Op: "get_at", Err: rerr}
		}
	}
	return outTime, matched, mustListen, nil
}

// GetAt is the time-indexed read: it locates the sample whose timestamp
// covers inTime, skipping stale entries and searching backward for
// held/event values as needed, blocking if nothing yet covers inTime.
func (c *Channel) GetAt(out []byte, inTime float64) (float64, error) {
	for {
		outTime, matched, mustListen, err := c.tryGetAt(out, inTime)
		if err != nil {
			return 0, err
		}
		if matched {
			return outTime, nil
		}
		if !mustListen {
			return 0, ErrNoMatch
		}
		if err := c.readerSem.Acquire(c.Timeout); err != nil {
			return 0, &Error{Op: "get_at", Err: err}
		}
		if c.buf.Terminated() {
			return 0, ErrTerminated
		}
	}
}

// SetTerminated marks the channel terminated under the lock and wakes every
// outstanding waiter on both semaphores.
func (c *Channel) SetTerminated(v bool) error {
	if err := c.shm.Lock(); err != nil {
		return &Error{Op: "set_terminated", Err: err}
	}
	c.buf.SetTerminated(v)
	ww := c.buf.WriterWait()
	rw := c.buf.ReaderWait()
	c.buf.SetWriterWait(0)
	c.buf.SetReaderWait(0)
	c.shm.Unlock()
	if v {
		if ww > 0 {
			if err := c.writerSem.Release(uint32(ww)); err != nil {
				return &Error{Op: "set_terminated", Err: err}
			}
		}
		if rw > 0 {
			if err := c.readerSem.Release(uint32(rw)); err != nil {
				return &Error{Op: "set_terminated", Err: err}
			}
		}
	}
	return nil
}

// Disconnect terminates the channel, gives waiters a moment to observe it,
// then detaches the region and closes both semaphore handles.
func (c *Channel) Disconnect() error {
	if err := c.SetTerminated(true); err != nil {
		return err
	}
	time.Sleep(constants.TerminationSettleDelay)
	if err := c.writerSem.Close(); err != nil {
		return &Error{Op: "disconnect", Err: err}
	}
	if err := c.readerSem.Close(); err != nil {
		return &Error{Op: "disconnect", Err: err}
	}
	return c.shm.Detach()
}
