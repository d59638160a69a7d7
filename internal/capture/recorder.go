// Package capture implements a bounded, per-variable sample history for
// viewer-mode connectors: a read-only observer that records what it sees
// without being the system of record (internal/channel's FIFO remains
// that). It never substitutes for the real producer/consumer protocol.
package capture

import (
	"sync"
)

// Sample is one recorded (time, step, value) observation. Value is a copy
// taken at record time so later mutation of the caller's buffer can't
// corrupt history already captured.
type Sample struct {
	Time  float64
	Step  float64
	Value []byte
}

// shardCount is the number of buckets the variable keyspace is split
// across. A viewer connector rarely has more than a few dozen inputs, but
// sharding keeps per-variable Record calls from serializing against each
// other the way a single mutex would.
const shardCount = 32

type shard struct {
	mu      sync.RWMutex
	history map[string][]Sample
}

// Recorder holds a bounded ring of samples per connect_id, sharded by hash
// of the id so recording on independent variables doesn't contend on one
// lock.
type Recorder struct {
	depth  int
	shards [shardCount]*shard
}

// NewRecorder constructs a Recorder that retains at most depth samples
// per variable (oldest evicted first). depth <= 0 is treated as 1.
func NewRecorder(depth int) *Recorder {
	if depth <= 0 {
		depth = 1
	}
	r := &Recorder{depth: depth}
	for i := range r.shards {
		r.shards[i] = &shard{history: make(map[string][]Sample)}
	}
	return r
}

func (r *Recorder) shardFor(id string) *shard {
	var h uint32 = 2166136261
	for i := 0; i < len(id); i++ {
		h ^= uint32(id[i])
		h *= 16777619
	}
	return r.shards[h%shardCount]
}

// Record appends one sample for id, evicting the oldest entry once the
// history exceeds the configured depth. value is copied.
func (r *Recorder) Record(id string, t, step float64, value []byte) {
	cp := make([]byte, len(value))
	copy(cp, value)

	s := r.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.history[id]
	h = append(h, Sample{Time: t, Step: step, Value: cp})
	if len(h) > r.depth {
		h = h[len(h)-r.depth:]
	}
	s.history[id] = h
}

// History returns a copy of the last n recorded samples for id, oldest
// first. n <= 0 or more than the retained depth returns everything
// retained.
func (r *Recorder) History(id string, n int) []Sample {
	s := r.shardFor(id)
	s.mu.RLock()
	defer s.mu.RUnlock()

	h := s.history[id]
	if n <= 0 || n > len(h) {
		n = len(h)
	}
	out := make([]Sample, n)
	for i, smp := range h[len(h)-n:] {
		smp.Value = append([]byte(nil), smp.Value...)
		out[i] = smp
	}
	return out
}

// Clear discards every recorded sample for id.
func (r *Recorder) Clear(id string) {
	s := r.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.history, id)
}
