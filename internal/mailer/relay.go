package mailer

import (
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"
)

type RelayState int32

const (
	StateHealthy RelayState = iota
	StateDegraded
	StateUnhealthy
	StateCircuitOpen
)

func (s RelayState) String() string {
	switch s {
	case StateHealthy:
		return "HEALTHY"
	case StateDegraded:
		return "DEGRADED"
	case StateUnhealthy:
		return "UNHEALTHY"
	case StateCircuitOpen:
		return "CIRCUIT_OPEN"
	default:
		return "UNKNOWN"
	}
}

type RelayMetrics struct {
	Requests         atomic.Int64
	Succeeded        atomic.Int64
	Failed           atomic.Int64
	TotalLatencyMs   atomic.Int64
	ConsecutiveFails atomic.Int32
}

func (m *RelayMetrics) RecordSuccess(latencyMs int64) {
	m.Requests.Add(1)
	m.Succeeded.Add(1)
	m.TotalLatencyMs.Add(latencyMs)
	m.ConsecutiveFails.Store(0)
}

func (m *RelayMetrics) RecordFailure() {
	m.Requests.Add(1)
	m.Failed.Add(1)
	m.ConsecutiveFails.Add(1)
}

func (m *RelayMetrics) AvgLatencyMs() int64 {
	n := m.Succeeded.Load()
	if n == 0 {
		return 0
	}
	return m.TotalLatencyMs.Load() / n
}

func (m *RelayMetrics) SuccessRate() float64 {
	total := m.Requests.Load()
	if total == 0 {
		return 1.0
	}
	return float64(m.Succeeded.Load()) / float64(total)
}

// Relay is one mail relay endpoint.
type Relay struct {
	name             string
	url              string
	client           *fasthttp.Client
	metrics          RelayMetrics
	state            atomic.Int32
	weight           int
	circuitOpenUntil atomic.Int64
}

func NewRelay(name, url string, weight int, client *fasthttp.Client) *Relay {
	r := &Relay{name: name, url: url, client: client, weight: weight}
	r.state.Store(int32(StateHealthy))
	return r
}

func (r *Relay) Name() string { return r.name }

func (r *Relay) State() RelayState {
	return RelayState(r.state.Load())
}

func (r *Relay) SetState(s RelayState) {
	r.state.Store(int32(s))
}

// Available reports whether the relay may take traffic. An open circuit
// half-opens into degraded once its timeout passed.
func (r *Relay) Available() bool {
	switch r.State() {
	case StateCircuitOpen:
		if time.Now().Unix() > r.circuitOpenUntil.Load() {
			r.SetState(StateDegraded)
			return true
		}
		return false
	case StateUnhealthy:
		return false
	}
	return true
}

// Score ranks relays; higher is better and 0 means unusable.
func (r *Relay) Score() float64 {
	if !r.Available() {
		return 0
	}

	success := r.metrics.SuccessRate() * 100

	latency := 100.0
	if avg := r.metrics.AvgLatencyMs(); avg > 0 {
		latency = 100.0 * (1.0 - float64(avg)/10000.0)
		if latency < 0 {
			latency = 0
		}
	}

	penalty := 1.0 - float64(r.metrics.ConsecutiveFails.Load())*0.1
	if penalty < 0.1 {
		penalty = 0.1
	}
	if r.State() == StateDegraded {
		penalty *= 0.5
	}

	return (success*0.5 + latency*0.3 + float64(r.weight)*0.2) * penalty
}
