package openisl

import (
	"sync/atomic"
	"time"
)

// LatencyBuckets defines the latency histogram buckets in nanoseconds,
// covering from 1us to 10s with logarithmic spacing — most relevant here
// for measuring how long Set/Get block on backpressure.
var LatencyBuckets = []uint64{
	1_000,
	10_000,
	100_000,
	1_000_000,
	10_000_000,
	100_000_000,
	1_000_000_000,
	10_000_000_000,
}

const numLatencyBuckets = 8

// Metrics tracks per-connector transport statistics: how many samples
// moved through its channels, how much backpressure occurred, and latency
// of Set/Get/GetAt calls including any time spent blocked.
type Metrics struct {
	SetOps   atomic.Uint64
	GetOps   atomic.Uint64
	GetAtOps atomic.Uint64

	SetBytes atomic.Uint64
	GetBytes atomic.Uint64

	SetErrors   atomic.Uint64
	GetErrors   atomic.Uint64
	GetAtErrors atomic.Uint64

	// WriterBlocked/ReaderBlocked count how many Set/Get(At) calls
	// observed backpressure (is_full/is_empty) and had to wait on a
	// semaphore before completing.
	WriterBlocked atomic.Uint64
	ReaderBlocked atomic.Uint64

	TotalLatencyNs atomic.Uint64
	OpCount        atomic.Uint64

	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// NewMetrics creates a new metrics instance, stamping StartTime to now.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordSet records one Set call.
func (m *Metrics) RecordSet(bytes uint64, latencyNs uint64, blocked, success bool) {
	m.SetOps.Add(1)
	if success {
		m.SetBytes.Add(bytes)
	} else {
		m.SetErrors.Add(1)
	}
	if blocked {
		m.WriterBlocked.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordGet records one Get call.
func (m *Metrics) RecordGet(bytes uint64, latencyNs uint64, blocked, success bool) {
	m.GetOps.Add(1)
	if success {
		m.GetBytes.Add(bytes)
	} else {
		m.GetErrors.Add(1)
	}
	if blocked {
		m.ReaderBlocked.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordGetAt records one GetAt call.
func (m *Metrics) RecordGetAt(bytes uint64, latencyNs uint64, blocked, success bool) {
	m.GetAtOps.Add(1)
	if success {
		m.GetBytes.Add(bytes)
	} else {
		m.GetAtErrors.Add(1)
	}
	if blocked {
		m.ReaderBlocked.Add(1)
	}
	m.recordLatency(latencyNs)
}

func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// Stop marks the connector as stopped.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time copy of Metrics, with derived rates.
type MetricsSnapshot struct {
	SetOps   uint64
	GetOps   uint64
	GetAtOps uint64

	SetBytes uint64
	GetBytes uint64

	SetErrors   uint64
	GetErrors   uint64
	GetAtErrors uint64

	WriterBlocked uint64
	ReaderBlocked uint64

	AvgLatencyNs uint64
	UptimeNs     uint64

	LatencyP50Ns  uint64
	LatencyP99Ns  uint64
	LatencyP999Ns uint64

	LatencyHistogram [numLatencyBuckets]uint64

	SetRate   float64 // operations per second
	GetRate   float64
	TotalOps  uint64
	ErrorRate float64 // percentage of failed operations
}

// Snapshot creates a point-in-time snapshot of metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		SetOps:        m.SetOps.Load(),
		GetOps:        m.GetOps.Load(),
		GetAtOps:      m.GetAtOps.Load(),
		SetBytes:      m.SetBytes.Load(),
		GetBytes:      m.GetBytes.Load(),
		SetErrors:     m.SetErrors.Load(),
		GetErrors:     m.GetErrors.Load(),
		GetAtErrors:   m.GetAtErrors.Load(),
		WriterBlocked: m.WriterBlocked.Load(),
		ReaderBlocked: m.ReaderBlocked.Load(),
	}

	snap.TotalOps = snap.SetOps + snap.GetOps + snap.GetAtOps

	totalLatencyNs := m.TotalLatencyNs.Load()
	opCount := m.OpCount.Load()
	if opCount > 0 {
		snap.AvgLatencyNs = totalLatencyNs / opCount
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	if snap.UptimeNs > 0 {
		uptimeSeconds := float64(snap.UptimeNs) / 1e9
		snap.SetRate = float64(snap.SetOps) / uptimeSeconds
		snap.GetRate = float64(snap.GetOps+snap.GetAtOps) / uptimeSeconds
	}

	totalErrors := snap.SetErrors + snap.GetErrors + snap.GetAtErrors
	if snap.TotalOps > 0 {
		snap.ErrorRate = float64(totalErrors) / float64(snap.TotalOps) * 100.0
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}

	if opCount > 0 {
		snap.LatencyP50Ns = m.calculatePercentile(0.50)
		snap.LatencyP99Ns = m.calculatePercentile(0.99)
		snap.LatencyP999Ns = m.calculatePercentile(0.999)
	}

	return snap
}

// calculatePercentile estimates the latency at the given percentile (0.0-1.0)
// using linear interpolation between histogram buckets.
func (m *Metrics) calculatePercentile(percentile float64) uint64 {
	totalOps := m.OpCount.Load()
	if totalOps == 0 {
		return 0
	}
	targetCount := uint64(float64(totalOps) * percentile)

	prevBucket := uint64(0)
	for i, bucket := range LatencyBuckets {
		bucketCount := m.LatencyBuckets[i].Load()
		if bucketCount >= targetCount {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = m.LatencyBuckets[i-1].Load()
			}
			if bucketCount == prevCount {
				return bucket
			}
			fraction := float64(targetCount-prevCount) / float64(bucketCount-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}
	return LatencyBuckets[numLatencyBuckets-1]
}

// Reset resets all metrics counters (useful for testing).
func (m *Metrics) Reset() {
	m.SetOps.Store(0)
	m.GetOps.Store(0)
	m.GetAtOps.Store(0)
	m.SetBytes.Store(0)
	m.GetBytes.Store(0)
	m.SetErrors.Store(0)
	m.GetErrors.Store(0)
	m.GetAtErrors.Store(0)
	m.WriterBlocked.Store(0)
	m.ReaderBlocked.Store(0)
	m.TotalLatencyNs.Store(0)
	m.OpCount.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.LatencyBuckets[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// Observer allows pluggable metrics collection for a connector's channels.
type Observer interface {
	ObserveSet(bytes uint64, latencyNs uint64, blocked, success bool)
	ObserveGet(bytes uint64, latencyNs uint64, blocked, success bool)
	ObserveGetAt(bytes uint64, latencyNs uint64, blocked, success bool)
}

// NoOpObserver is a no-op implementation of Observer.
type NoOpObserver struct{}

func (NoOpObserver) ObserveSet(uint64, uint64, bool, bool)   {}
func (NoOpObserver) ObserveGet(uint64, uint64, bool, bool)   {}
func (NoOpObserver) ObserveGetAt(uint64, uint64, bool, bool) {}

// MetricsObserver implements Observer using the built-in Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records to the given metrics.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveSet(bytes, latencyNs uint64, blocked, success bool) {
	o.metrics.RecordSet(bytes, latencyNs, blocked, success)
}

func (o *MetricsObserver) ObserveGet(bytes, latencyNs uint64, blocked, success bool) {
	o.metrics.RecordGet(bytes, latencyNs, blocked, success)
}

func (o *MetricsObserver) ObserveGetAt(bytes, latencyNs uint64, blocked, success bool) {
	o.metrics.RecordGetAt(bytes, latencyNs, blocked, success)
}

var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)
