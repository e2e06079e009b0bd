// Package metrics tracks performance and operational statistics for a
// runtime instance: submissions, completions, cancellations, timer fires
// and scheduler throughput, all as per-runtime-instance counters since
// the whole runtime, not any single device or connection, is the unit
// of observability here.
package metrics

import (
	"sync/atomic"
	"time"
)

// LatencyBuckets defines the completion-latency histogram buckets in
// nanoseconds, covering submission-to-completion time from 1us to 10s.
var LatencyBuckets = []uint64{
	1_000,          // 1us
	10_000,         // 10us
	100_000,        // 100us
	1_000_000,      // 1ms
	10_000_000,     // 10ms
	100_000_000,    // 100ms
	1_000_000_000,  // 1s
	10_000_000_000, // 10s
}

const numLatencyBuckets = 8

// Metrics tracks performance and operational statistics for one runtime
// instance.
type Metrics struct {
	// Op submission/completion counters.
	Submitted  atomic.Uint64 // ops submitted to the kernel ring
	Completed  atomic.Uint64 // completions dispatched
	Cancelled  atomic.Uint64 // ops cancelled (by drop or by caller)
	SubmitFull atomic.Uint64 // submissions that hit a saturated ring and retried

	// Timer counters.
	TimersRegistered atomic.Uint64
	TimersFired      atomic.Uint64
	TimersCancelled  atomic.Uint64
	WheelCascades    atomic.Uint64

	// Scheduler counters.
	TasksSpawned   atomic.Uint64
	TasksCompleted atomic.Uint64
	ParkCount      atomic.Uint64 // number of times block_on parked the driver

	// Queue-depth style statistic: ready-queue length samples.
	ReadyDepthTotal atomic.Uint64
	ReadyDepthCount atomic.Uint64
	MaxReadyDepth   atomic.Uint32

	// Completion latency tracking.
	TotalLatencyNs atomic.Uint64
	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64 // UnixNano
	StopTime  atomic.Int64 // UnixNano, 0 while running
}

// New creates a new metrics instance with its start time set to now.
func New() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordSubmit records one op submission.
func (m *Metrics) RecordSubmit() { m.Submitted.Add(1) }

// RecordSubmitRetry records a submission that found the ring full and
// retried after a flush.
func (m *Metrics) RecordSubmitRetry() { m.SubmitFull.Add(1) }

// RecordCompletion records one dispatched completion and its latency
// from submission to completion.
func (m *Metrics) RecordCompletion(latencyNs uint64) {
	m.Completed.Add(1)
	m.TotalLatencyNs.Add(latencyNs)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// RecordCancel records one cancelled op.
func (m *Metrics) RecordCancel() { m.Cancelled.Add(1) }

// RecordTimerRegistered records one timer insertion.
func (m *Metrics) RecordTimerRegistered() { m.TimersRegistered.Add(1) }

// RecordTimerFired records one fired timer.
func (m *Metrics) RecordTimerFired() { m.TimersFired.Add(1) }

// RecordTimerCancelled records one cancelled timer.
func (m *Metrics) RecordTimerCancelled() { m.TimersCancelled.Add(1) }

// RecordWheelCascade records one wheel-level cascade.
func (m *Metrics) RecordWheelCascade() { m.WheelCascades.Add(1) }

// RecordTaskSpawned records one spawned task.
func (m *Metrics) RecordTaskSpawned() { m.TasksSpawned.Add(1) }

// RecordTaskCompleted records one completed task.
func (m *Metrics) RecordTaskCompleted() { m.TasksCompleted.Add(1) }

// RecordPark records one park/park_timeout call.
func (m *Metrics) RecordPark() { m.ParkCount.Add(1) }

// RecordReadyDepth records a sample of the ready-queue length.
func (m *Metrics) RecordReadyDepth(depth uint32) {
	m.ReadyDepthTotal.Add(uint64(depth))
	m.ReadyDepthCount.Add(1)
	for {
		current := m.MaxReadyDepth.Load()
		if depth <= current {
			break
		}
		if m.MaxReadyDepth.CompareAndSwap(current, depth) {
			break
		}
	}
}

// Stop marks the runtime as stopped, for uptime calculation.
func (m *Metrics) Stop() { m.StopTime.Store(time.Now().UnixNano()) }

// Snapshot is a point-in-time view of Metrics, safe to read without races.
type Snapshot struct {
	Submitted  uint64
	Completed  uint64
	Cancelled  uint64
	SubmitFull uint64

	TimersRegistered uint64
	TimersFired      uint64
	TimersCancelled  uint64
	WheelCascades    uint64

	TasksSpawned   uint64
	TasksCompleted uint64
	ParkCount      uint64

	AvgReadyDepth float64
	MaxReadyDepth uint32

	AvgLatencyNs     uint64
	LatencyP50Ns     uint64
	LatencyP99Ns     uint64
	LatencyHistogram [numLatencyBuckets]uint64

	UptimeNs uint64
}

// Snapshot takes a consistent point-in-time snapshot of the metrics.
func (m *Metrics) Snapshot() Snapshot {
	s := Snapshot{
		Submitted:        m.Submitted.Load(),
		Completed:        m.Completed.Load(),
		Cancelled:        m.Cancelled.Load(),
		SubmitFull:       m.SubmitFull.Load(),
		TimersRegistered: m.TimersRegistered.Load(),
		TimersFired:      m.TimersFired.Load(),
		TimersCancelled:  m.TimersCancelled.Load(),
		WheelCascades:    m.WheelCascades.Load(),
		TasksSpawned:     m.TasksSpawned.Load(),
		TasksCompleted:   m.TasksCompleted.Load(),
		ParkCount:        m.ParkCount.Load(),
		MaxReadyDepth:    m.MaxReadyDepth.Load(),
	}

	if count := m.ReadyDepthCount.Load(); count > 0 {
		s.AvgReadyDepth = float64(m.ReadyDepthTotal.Load()) / float64(count)
	}

	if s.Completed > 0 {
		s.AvgLatencyNs = m.TotalLatencyNs.Load() / s.Completed
	}

	for i := 0; i < numLatencyBuckets; i++ {
		s.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}
	if s.Completed > 0 {
		s.LatencyP50Ns = m.percentile(0.50)
		s.LatencyP99Ns = m.percentile(0.99)
	}

	start := m.StartTime.Load()
	stop := m.StopTime.Load()
	if stop > 0 {
		s.UptimeNs = uint64(stop - start)
	} else {
		s.UptimeNs = uint64(time.Now().UnixNano() - start)
	}
	return s
}

// percentile estimates the latency at the given percentile (0.0-1.0)
// via linear interpolation between histogram buckets.
func (m *Metrics) percentile(p float64) uint64 {
	total := m.Completed.Load()
	if total == 0 {
		return 0
	}
	target := uint64(float64(total) * p)

	prevBucket, prevCount := uint64(0), uint64(0)
	for i, bucket := range LatencyBuckets {
		count := m.LatencyBuckets[i].Load()
		if count >= target {
			if count == prevCount {
				return bucket
			}
			frac := float64(target-prevCount) / float64(count-prevCount)
			return prevBucket + uint64(frac*float64(bucket-prevBucket))
		}
		prevBucket, prevCount = bucket, count
	}
	return LatencyBuckets[numLatencyBuckets-1]
}

// Observer allows pluggable metrics collection; the driver, timer wheel
// and scheduler each take an Observer so a caller can wire in a different
// sink (e.g. Prometheus) without the runtime depending on it directly.
type Observer interface {
	ObserveSubmit()
	ObserveSubmitRetry()
	ObserveCompletion(latencyNs uint64)
	ObserveCancel()
	ObserveTimerRegistered()
	ObserveTimerFired()
	ObserveTimerCancelled()
	ObserveWheelCascade()
	ObserveTaskSpawned()
	ObserveTaskCompleted()
	ObservePark()
	ObserveReadyDepth(depth uint32)
}

// NoOpObserver discards every observation.
type NoOpObserver struct{}

func (NoOpObserver) ObserveSubmit()                    {}
func (NoOpObserver) ObserveSubmitRetry()                {}
func (NoOpObserver) ObserveCompletion(uint64)           {}
func (NoOpObserver) ObserveCancel()                     {}
func (NoOpObserver) ObserveTimerRegistered()            {}
func (NoOpObserver) ObserveTimerFired()                 {}
func (NoOpObserver) ObserveTimerCancelled()              {}
func (NoOpObserver) ObserveWheelCascade()               {}
func (NoOpObserver) ObserveTaskSpawned()                {}
func (NoOpObserver) ObserveTaskCompleted()              {}
func (NoOpObserver) ObservePark()                       {}
func (NoOpObserver) ObserveReadyDepth(uint32)           {}

// MetricsObserver implements Observer by recording into a *Metrics.
type MetricsObserver struct {
	m *Metrics
}

// NewObserver creates an Observer that records into m.
func NewObserver(m *Metrics) *MetricsObserver { return &MetricsObserver{m: m} }

func (o *MetricsObserver) ObserveSubmit()                  { o.m.RecordSubmit() }
func (o *MetricsObserver) ObserveSubmitRetry()              { o.m.RecordSubmitRetry() }
func (o *MetricsObserver) ObserveCompletion(ns uint64)      { o.m.RecordCompletion(ns) }
func (o *MetricsObserver) ObserveCancel()                  { o.m.RecordCancel() }
func (o *MetricsObserver) ObserveTimerRegistered()          { o.m.RecordTimerRegistered() }
func (o *MetricsObserver) ObserveTimerFired()               { o.m.RecordTimerFired() }
func (o *MetricsObserver) ObserveTimerCancelled()           { o.m.RecordTimerCancelled() }
func (o *MetricsObserver) ObserveWheelCascade()             { o.m.RecordWheelCascade() }
func (o *MetricsObserver) ObserveTaskSpawned()              { o.m.RecordTaskSpawned() }
func (o *MetricsObserver) ObserveTaskCompleted()            { o.m.RecordTaskCompleted() }
func (o *MetricsObserver) ObservePark()                    { o.m.RecordPark() }
func (o *MetricsObserver) ObserveReadyDepth(depth uint32)  { o.m.RecordReadyDepth(depth) }

var (
	_ Observer = (*MetricsObserver)(nil)
	_ Observer = NoOpObserver{}
)
