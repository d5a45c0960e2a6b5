package scheduler

import (
	"sync"
	"sync/atomic"
	"time"
)

// ServiceMetrics counts dispatch outcomes for the periodic report.
type ServiceMetrics struct {
	totalCycles     int64
	totalDispatched int64
	totalErrors     int64
	outOfWindow     int64
	totalDurationNs int64
	lastResetNs     int64

	mu       sync.Mutex
	outcomes map[string]*int64
}

func NewServiceMetrics() *ServiceMetrics {
	return &ServiceMetrics{
		lastResetNs: time.Now().UnixNano(),
		outcomes:    make(map[string]*int64),
	}
}

func (m *ServiceMetrics) RecordCycle() {
	atomic.AddInt64(&m.totalCycles, 1)
}

func (m *ServiceMetrics) RecordOutOfWindow() {
	atomic.AddInt64(&m.outOfWindow, 1)
}

// RecordOutcome counts one finished dispatch attempt.
func (m *ServiceMetrics) RecordOutcome(outcome string, duration time.Duration) {
	atomic.AddInt64(&m.totalDispatched, 1)
	atomic.AddInt64(&m.totalDurationNs, int64(duration))
	atomic.AddInt64(m.counter(outcome), 1)
}

func (m *ServiceMetrics) RecordError() {
	atomic.AddInt64(&m.totalErrors, 1)
}

func (m *ServiceMetrics) Outcome(outcome string) int64 {
	return atomic.LoadInt64(m.counter(outcome))
}

func (m *ServiceMetrics) counter(outcome string) *int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.outcomes[outcome]
	if !ok {
		c = new(int64)
		m.outcomes[outcome] = c
	}
	return c
}

func (m *ServiceMetrics) GetStats() map[string]interface{} {
	dispatched := atomic.LoadInt64(&m.totalDispatched)
	durationNs := atomic.LoadInt64(&m.totalDurationNs)
	elapsed := time.Since(time.Unix(0, atomic.LoadInt64(&m.lastResetNs))).Seconds()

	rate := 0.0
	if elapsed > 0 {
		rate = float64(dispatched) / elapsed
	}
	avg := time.Duration(0)
	if dispatched > 0 {
		avg = time.Duration(durationNs / dispatched)
	}

	stats := map[string]interface{}{
		"cycles":          atomic.LoadInt64(&m.totalCycles),
		"dispatched":      dispatched,
		"errors":          atomic.LoadInt64(&m.totalErrors),
		"out_of_window":   atomic.LoadInt64(&m.outOfWindow),
		"rate_per_second": rate,
		"avg_duration_ms": avg.Milliseconds(),
		"uptime_seconds":  elapsed,
	}
	m.mu.Lock()
	for k, v := range m.outcomes {
		stats["outcome_"+k] = atomic.LoadInt64(v)
	}
	m.mu.Unlock()
	return stats
}
