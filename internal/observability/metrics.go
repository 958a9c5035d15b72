package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu                sync.Mutex
	requestCount      map[string]int64
	requestLatency    map[string]time.Duration
	errorCount        map[string]int64
	authFailures      map[string]int64
	resolutionOutcome map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:      make(map[string]int64),
		requestLatency:    make(map[string]time.Duration),
		errorCount:        make(map[string]int64),
		authFailures:      make(map[string]int64),
		resolutionOutcome: make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
	m.requestLatency[key] += duration
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordAuthFailure counts a rejected request by failure kind.
func (m *Metrics) RecordAuthFailure(kind string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authFailures[kind]++
}

// RecordResolution counts a hostname resolution outcome.
func (m *Metrics) RecordResolution(outcome string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolutionOutcome[outcome]++
}

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	Requests           map[string]int64 `json:"requests"`
	AvgLatencyMillis   map[string]int64 `json:"avg_latency_ms"`
	Errors             map[string]int64 `json:"errors"`
	AuthFailures       map[string]int64 `json:"auth_failures"`
	ResolutionOutcomes map[string]int64 `json:"resolution_outcomes"`
}

// Snapshot copies the counters so callers can serialize them without holding the lock.
func (m *Metrics) Snapshot() Snapshot {
	snap := Snapshot{
		Requests:           map[string]int64{},
		AvgLatencyMillis:   map[string]int64{},
		Errors:             map[string]int64{},
		AuthFailures:       map[string]int64{},
		ResolutionOutcomes: map[string]int64{},
	}
	if m == nil {
		return snap
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.requestCount {
		snap.Requests[k] = v
		if v > 0 {
			snap.AvgLatencyMillis[k] = (m.requestLatency[k] / time.Duration(v)).Milliseconds()
		}
	}
	copyCounts(snap.Errors, m.errorCount)
	copyCounts(snap.AuthFailures, m.authFailures)
	copyCounts(snap.ResolutionOutcomes, m.resolutionOutcome)
	return snap
}

func copyCounts(dst, src map[string]int64) {
	for k, v := range src {
		dst[k] = v
	}
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
