package logging

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Metrics is a keyed set of counters and gauges shared by server components.
// Keys are created on first use and the zero value is ready to use.
type Metrics struct {
	mu     sync.RWMutex
	values map[string]*atomic.Uint64
}

// NewMetrics returns an empty counter set.
func NewMetrics() *Metrics {
	return &Metrics{values: make(map[string]*atomic.Uint64)}
}

func (m *Metrics) slot(key string) *atomic.Uint64 {
	m.mu.RLock()
	v, ok := m.values[key]
	m.mu.RUnlock()
	if ok {
		return v
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = make(map[string]*atomic.Uint64)
	}
	if v, ok = m.values[key]; ok {
		return v
	}
	v = &atomic.Uint64{}
	m.values[key] = v
	return v
}

// TelemetryAdd increments the counter stored under key.
func (m *Metrics) TelemetryAdd(key string, delta uint64) {
	if m == nil || key == "" {
		return
	}
	m.slot(key).Add(delta)
}

// TelemetryStore overwrites the gauge stored under key.
func (m *Metrics) TelemetryStore(key string, value uint64) {
	if m == nil || key == "" {
		return
	}
	m.slot(key).Store(value)
}

// Load reads a single key, zero when it was never written.
func (m *Metrics) Load(key string) uint64 {
	if m == nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.values[key]; ok {
		return v.Load()
	}
	return 0
}

// Snapshot copies every key.
func (m *Metrics) Snapshot() map[string]uint64 {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]uint64, len(m.values))
	for k, v := range m.values {
		out[k] = v.Load()
	}
	return out
}

// Keys lists the recorded keys in lexical order.
func (m *Metrics) Keys() []string {
	snapshot := m.Snapshot()
	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
