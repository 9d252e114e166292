// Package perfmon is the performance monitor (C5, §4.5): it counts
// frames, dropped frames, and elapsed wall time, computes FPS as total
// frames over elapsed time, and keeps a bounded ring of recent frame
// arrival times (the ring does not enter the FPS figure).
package perfmon

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rapidrtmp/rtmpplayer/pkg/playermodels"
)

const ringSize = 1000

// Monitor tracks frame throughput for one playback session. Recording is
// invoked on the decode hot path, so Record* use only atomics and a short
// critical section (the ring buffer write) — never a long-held lock.
type Monitor struct {
	totalFrames   uint64
	droppedFrames uint64

	startedAt int64 // unix nano; 0 before Start()

	mu    sync.Mutex
	ring  [ringSize]int64 // unix nano arrival times
	ringN int             // number of valid entries (saturates at ringSize)
	ringI int             // next write index
}

// New constructs a Monitor. One instance per session, per the spec's "one
// instance per session is equivalent and preferred in a rewrite" guidance
// — see Global for the process-wide singleton variant.
func New() *Monitor {
	return &Monitor{}
}

// Start records a monotonic base time and zeroes counters.
func (m *Monitor) Start() {
	atomic.StoreUint64(&m.totalFrames, 0)
	atomic.StoreUint64(&m.droppedFrames, 0)
	atomic.StoreInt64(&m.startedAt, time.Now().UnixNano())

	m.mu.Lock()
	m.ringN = 0
	m.ringI = 0
	m.mu.Unlock()
}

// RecordFrame increments total_frames and stores the arrival time in the
// bounded ring.
func (m *Monitor) RecordFrame() {
	atomic.AddUint64(&m.totalFrames, 1)

	now := time.Now().UnixNano()
	m.mu.Lock()
	m.ring[m.ringI] = now
	m.ringI = (m.ringI + 1) % ringSize
	if m.ringN < ringSize {
		m.ringN++
	}
	m.mu.Unlock()
}

// RecordDroppedFrame increments dropped_frames.
func (m *Monitor) RecordDroppedFrame() {
	atomic.AddUint64(&m.droppedFrames, 1)
}

// CurrentStats computes { fps = total_frames / elapsed, total_frames,
// duration_s, dropped_frames }.
func (m *Monitor) CurrentStats() playermodels.Stats {
	started := atomic.LoadInt64(&m.startedAt)
	total := atomic.LoadUint64(&m.totalFrames)
	dropped := atomic.LoadUint64(&m.droppedFrames)

	if started == 0 {
		return playermodels.Stats{TotalFrames: total, DroppedFrames: dropped}
	}

	elapsed := time.Since(time.Unix(0, started)).Seconds()
	var fps float64
	if elapsed > 0 {
		fps = float64(total) / elapsed
	}

	return playermodels.Stats{
		FPS:           fps,
		TotalFrames:   total,
		DroppedFrames: dropped,
		DurationS:     elapsed,
	}
}

var (
	globalOnce sync.Once
	global     *Monitor
)

// Global returns the process-wide singleton instance, constructed at
// first use with sync.Once (§9: "preserve the singleton interface at the
// API surface but implement it as a process-wide instance constructed at
// first use with internal concurrency control").
func Global() *Monitor {
	globalOnce.Do(func() {
		global = New()
	})
	return global
}
