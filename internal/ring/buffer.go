// Package ring implements the channel's ring buffer: a typed sequence of
// (time, step, value) slots laid out inside a shared-memory region.
// Offsets are computed from a Layout rather than expressed as a Go struct
// overlay because the per-slot value region is variable width (size_of ×
// cardinality) and needs raw-byte indexing rather than a fixed Go type.
package ring

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Layout describes the fixed dimensions needed to compute a ChannelBuffer's
// byte offsets: string capacity, reader-slot capacity, FIFO depth, and the
// per-element/cardinality of the variable's DataType.
type Layout struct {
	MaxStr      int
	MaxReaders  int
	FifoDepth   int
	SizeOf      int
	Cardinality int
}

func (l Layout) valueSize() int { return l.SizeOf * l.Cardinality }

func alignUp(off, align int) int {
	if off%align == 0 {
		return off
	}
	return off + (align - off%align)
}

type offsets struct {
	id, nameLen, name int
	typeID, sizeOf, cardinality int
	indWrite, readers, indReads int
	readerWait, writerWait      int
	terminated, fifoDepth       int
	times, steps, values        int
}

func (l Layout) computeOffsets() offsets {
	var o offsets
	off := 0
	o.id = off
	off += 4
	o.nameLen = off
	off += 4
	o.name = off
	off += l.MaxStr
	o.typeID = off
	off += 4
	o.sizeOf = off
	off += 4
	o.cardinality = off
	off += 4
	o.indWrite = off
	off += 2
	off = alignUp(off, 4)
	o.readers = off
	off += 4
	o.indReads = off
	off += 2 * l.MaxReaders
	off = alignUp(off, 4)
	o.readerWait = off
	off += 4
	o.writerWait = off
	off += 4
	o.terminated = off
	off += 1
	off = alignUp(off, 2)
	o.fifoDepth = off
	off += 2
	off = alignUp(off, 8)
	o.times = off
	off += 8 * l.FifoDepth
	o.steps = off
	off += 8 * l.FifoDepth
	o.values = off
	off += l.valueSize() * l.FifoDepth
	return o
}

// TotalSize returns the exact byte size a NamedShm region must have to back
// a ChannelBuffer of this Layout.
func (l Layout) TotalSize() int {
	o := l.computeOffsets()
	return o.values + l.valueSize()*l.FifoDepth
}

// Buffer is a ChannelBuffer: typed accessors into fixed offsets of a mapped
// byte slice (normally shm.Shm.Data()). Callers are responsible for holding
// the backing NamedShm's lock around any sequence of calls that must be
// atomic; Buffer itself does no locking.
type Buffer struct {
	data []byte
	lay  Layout
	off  offsets
}

// New wraps data (which must be exactly lay.TotalSize() bytes) as a
// ChannelBuffer.
func New(data []byte, lay Layout) (*Buffer, error) {
	want := lay.TotalSize()
	if len(data) != want {
		return nil, fmt.Errorf("ring: buffer region is %d bytes, want %d", len(data), want)
	}
	return &Buffer{data: data, lay: lay, off: lay.computeOffsets()}, nil
}

// Init writes the header fields and zeros the index/wait counters. It does
// not seed the value slots; call Seed for that once the DataType's initial
// value is known.
func (b *Buffer) Init(id uint32, name string, typeID int32) error {
	if len(name) > b.lay.MaxStr {
		return fmt.Errorf("ring: name %q exceeds max %d bytes", name, b.lay.MaxStr)
	}
	binary.LittleEndian.PutUint32(b.data[b.off.id:], id)
	binary.LittleEndian.PutUint32(b.data[b.off.nameLen:], uint32(len(name)))
	nb := b.data[b.off.name : b.off.name+b.lay.MaxStr]
	n := copy(nb, name)
	for i := n; i < len(nb); i++ {
		nb[i] = 0
	}
	binary.LittleEndian.PutUint32(b.data[b.off.typeID:], uint32(typeID))
	binary.LittleEndian.PutUint32(b.data[b.off.sizeOf:], uint32(b.lay.SizeOf))
	binary.LittleEndian.PutUint32(b.data[b.off.cardinality:], uint32(b.lay.Cardinality))
	binary.LittleEndian.PutUint16(b.data[b.off.indWrite:], 0)
	binary.LittleEndian.PutUint32(b.data[b.off.readers:], 0)
	for r := 0; r < b.lay.MaxReaders; r++ {
		binary.LittleEndian.PutUint16(b.data[b.off.indReads+2*r:], 0)
	}
	binary.LittleEndian.PutUint32(b.data[b.off.readerWait:], 0)
	binary.LittleEndian.PutUint32(b.data[b.off.writerWait:], 0)
	b.data[b.off.terminated] = 0
	binary.LittleEndian.PutUint16(b.data[b.off.fifoDepth:], uint16(b.lay.FifoDepth))
	return nil
}

// Seed copies initial into every value slot and sets every times[i] to
// time0.
func (b *Buffer) Seed(initial []byte, time0 float64) error {
	vs := b.lay.valueSize()
	if len(initial) != vs {
		return fmt.Errorf("ring: initial value is %d bytes, want %d", len(initial), vs)
	}
	bits := math.Float64bits(time0)
	for i := 0; i < b.lay.FifoDepth; i++ {
		binary.LittleEndian.PutUint64(b.data[b.off.times+8*i:], bits)
		copy(b.valueSlot(i), initial)
	}
	return nil
}

// ID / Name / TypeID are read back from the header (used when attaching to
// an existing region to cross-check against the local DataType).
func (b *Buffer) ID() uint32   { return binary.LittleEndian.Uint32(b.data[b.off.id:]) }
func (b *Buffer) TypeID() int32 {
	return int32(binary.LittleEndian.Uint32(b.data[b.off.typeID:]))
}
func (b *Buffer) Name() string {
	l := int(binary.LittleEndian.Uint32(b.data[b.off.nameLen:]))
	if l < 0 || l > b.lay.MaxStr {
		l = 0
	}
	return string(b.data[b.off.name : b.off.name+l])
}

// FifoDepth returns the depth written into the header at Init time.
func (b *Buffer) FifoDepth() int { return int(binary.LittleEndian.Uint16(b.data[b.off.fifoDepth:])) }

func (b *Buffer) IndWrite() int {
	return int(binary.LittleEndian.Uint16(b.data[b.off.indWrite:]))
}

func (b *Buffer) setIndWrite(v int) {
	binary.LittleEndian.PutUint16(b.data[b.off.indWrite:], uint16(v))
}

func (b *Buffer) Readers() int {
	return int(int32(binary.LittleEndian.Uint32(b.data[b.off.readers:])))
}

func (b *Buffer) setReaders(n int) {
	binary.LittleEndian.PutUint32(b.data[b.off.readers:], uint32(n))
}

// AddReader registers a new reader and returns its index, or an error if
// the buffer's MaxReaders capacity is exhausted.
func (b *Buffer) AddReader() (int, error) {
	r := b.Readers()
	if r >= b.lay.MaxReaders {
		return 0, fmt.Errorf("ring: reader capacity %d exhausted", b.lay.MaxReaders)
	}
	b.setReaders(r + 1)
	binary.LittleEndian.PutUint16(b.data[b.off.indReads+2*r:], uint16(b.IndWrite()))
	return r, nil
}

func (b *Buffer) IndRead(r int) int {
	return int(binary.LittleEndian.Uint16(b.data[b.off.indReads+2*r:]))
}

func (b *Buffer) setIndRead(r, v int) {
	binary.LittleEndian.PutUint16(b.data[b.off.indReads+2*r:], uint16(v))
}

func (b *Buffer) ReaderWait() int {
	return int(int32(binary.LittleEndian.Uint32(b.data[b.off.readerWait:])))
}

func (b *Buffer) SetReaderWait(v int) {
	binary.LittleEndian.PutUint32(b.data[b.off.readerWait:], uint32(v))
}

func (b *Buffer) IncReaderWait() { b.SetReaderWait(b.ReaderWait() + 1) }

func (b *Buffer) WriterWait() int {
	return int(int32(binary.LittleEndian.Uint32(b.data[b.off.writerWait:])))
}

func (b *Buffer) SetWriterWait(v int) {
	binary.LittleEndian.PutUint32(b.data[b.off.writerWait:], uint32(v))
}

func (b *Buffer) IncWriterWait() { b.SetWriterWait(b.WriterWait() + 1) }

func (b *Buffer) Terminated() bool { return b.data[b.off.terminated] != 0 }

func (b *Buffer) SetTerminated(v bool) {
	if v {
		b.data[b.off.terminated] = 1
	} else {
		b.data[b.off.terminated] = 0
	}
}

func (b *Buffer) depth() int { return b.lay.FifoDepth }

// IsFullForReader reports whether the writer has caught up to reader r's
// depth-1 lead: (w - read[r]) mod depth == depth - 1.
func (b *Buffer) IsFullForReader(r int) bool {
	d := b.depth()
	w := b.IndWrite()
	rd := b.IndRead(r)
	return ((w-rd)%d+d)%d == d-1
}

// IsFull reports whether the writer may not advance: true if any active
// reader is currently full for this buffer. A buffer with zero registered
// readers is never full.
func (b *Buffer) IsFull() bool {
	for r := 0; r < b.Readers(); r++ {
		if b.IsFullForReader(r) {
			return true
		}
	}
	return false
}

// IsEmptyForReader reports whether reader r has nothing left to consume.
func (b *Buffer) IsEmptyForReader(r int) bool {
	return b.IndWrite() == b.IndRead(r)
}

func (b *Buffer) valueSlot(i int) []byte {
	vs := b.lay.valueSize()
	start := b.off.values + i*vs
	return b.data[start : start+vs]
}

// Time / Step return the stamp recorded at slot i.
func (b *Buffer) Time(i int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b.data[b.off.times+8*i:]))
}

func (b *Buffer) Step(i int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b.data[b.off.steps+8*i:]))
}

func (b *Buffer) setTime(i int, t float64) {
	binary.LittleEndian.PutUint64(b.data[b.off.times+8*i:], math.Float64bits(t))
}

func (b *Buffer) setStep(i int, s float64) {
	binary.LittleEndian.PutUint64(b.data[b.off.steps+8*i:], math.Float64bits(s))
}

// SetSlot writes value/time/step into slot i. value must be exactly
// SizeOf*Cardinality bytes; for Structure types the caller performs the
// field-by-field memcpy into this slice itself before/after the call.
func (b *Buffer) SetSlot(i int, value []byte, t, step float64) error {
	vs := b.lay.valueSize()
	if len(value) != vs {
		return fmt.Errorf("ring: value is %d bytes, want %d", len(value), vs)
	}
	copy(b.valueSlot(i), value)
	b.setTime(i, t)
	b.setStep(i, step)
	return nil
}

// GetSlot returns the raw value bytes, time and step stored at slot i. The
// returned slice aliases the buffer; callers must copy before the next
// mutation if they need to retain it independently.
func (b *Buffer) GetSlot(i int) (value []byte, t, step float64) {
	return b.valueSlot(i), b.Time(i), b.Step(i)
}

// AdvanceWrite moves the writer index to (w+1) mod depth and returns the
// new index.
func (b *Buffer) AdvanceWrite() int {
	d := b.depth()
	w := (b.IndWrite() + 1) % d
	b.setIndWrite(w)
	return w
}

// AdvanceReader moves reader r's index to (read[r]+1) mod depth and returns
// the new index.
func (b *Buffer) AdvanceReader(r int) int {
	d := b.depth()
	nv := (b.IndRead(r) + 1) % d
	b.setIndRead(r, nv)
	return nv
}
