package ring

import "testing"

func testLayout() Layout {
	return Layout{MaxStr: 32, MaxReaders: 4, FifoDepth: 4, SizeOf: 8, Cardinality: 1}
}

func newTestBuffer(t *testing.T) *Buffer {
	t.Helper()
	lay := testLayout()
	data := make([]byte, lay.TotalSize())
	b, err := New(data, lay)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := b.Init(1, "Token1W", 0); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return b
}

func TestInitHeader(t *testing.T) {
	b := newTestBuffer(t)
	if b.ID() != 1 {
		t.Errorf("ID() = %d, want 1", b.ID())
	}
	if b.Name() != "Token1W" {
		t.Errorf("Name() = %q, want Token1W", b.Name())
	}
	if b.FifoDepth() != 4 {
		t.Errorf("FifoDepth() = %d, want 4", b.FifoDepth())
	}
	if b.IndWrite() != 0 || b.Readers() != 0 {
		t.Errorf("expected zeroed indices after Init")
	}
}

func TestSeedFillsAllSlots(t *testing.T) {
	b := newTestBuffer(t)
	initial := make([]byte, 8)
	initial[0] = 0x3f // arbitrary non-zero marker byte
	if err := b.Seed(initial, 5.0); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	for i := 0; i < b.FifoDepth(); i++ {
		v, tm, _ := b.GetSlot(i)
		if tm != 5.0 {
			t.Errorf("slot %d time = %v, want 5.0", i, tm)
		}
		if v[0] != 0x3f {
			t.Errorf("slot %d value not seeded", i)
		}
	}
}

func TestAddReaderAndEmptyFull(t *testing.T) {
	b := newTestBuffer(t)
	r, err := b.AddReader()
	if err != nil {
		t.Fatalf("AddReader: %v", err)
	}
	if !b.IsEmptyForReader(r) {
		t.Error("freshly registered reader should be empty")
	}
	if b.IsFull() {
		t.Error("buffer with nothing written should not be full")
	}

	val := []byte{1, 0, 0, 0, 0, 0, 0, 0}
	for i := 0; i < b.depth()-1; i++ {
		if err := b.SetSlot(b.IndWrite(), val, float64(i), 1.0); err != nil {
			t.Fatalf("SetSlot: %v", err)
		}
		b.AdvanceWrite()
	}
	if !b.IsFullForReader(r) {
		t.Error("expected full for reader after depth-1 writes with no reads")
	}
	if !b.IsFull() {
		t.Error("expected IsFull() true when the only reader is full")
	}
}

func TestAdvanceWrapsModDepth(t *testing.T) {
	b := newTestBuffer(t)
	d := b.depth()
	for i := 0; i < d+2; i++ {
		b.AdvanceWrite()
	}
	if b.IndWrite() != 2 {
		t.Errorf("IndWrite() after %d advances = %d, want 2", d+2, b.IndWrite())
	}
}

func TestReaderWaitCounters(t *testing.T) {
	b := newTestBuffer(t)
	b.IncReaderWait()
	b.IncReaderWait()
	if b.ReaderWait() != 2 {
		t.Errorf("ReaderWait() = %d, want 2", b.ReaderWait())
	}
	b.SetReaderWait(0)
	if b.ReaderWait() != 0 {
		t.Errorf("ReaderWait() after reset = %d, want 0", b.ReaderWait())
	}
}

func TestTerminatedFlag(t *testing.T) {
	b := newTestBuffer(t)
	if b.Terminated() {
		t.Error("fresh buffer should not be terminated")
	}
	b.SetTerminated(true)
	if !b.Terminated() {
		t.Error("expected Terminated() true after SetTerminated(true)")
	}
}

func TestReaderCapacityExhausted(t *testing.T) {
	b := newTestBuffer(t)
	for i := 0; i < b.lay.MaxReaders; i++ {
		if _, err := b.AddReader(); err != nil {
			t.Fatalf("AddReader %d: %v", i, err)
		}
	}
	if _, err := b.AddReader(); err == nil {
		t.Error("expected error once reader capacity is exhausted")
	}
}
