package service

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/portfolio-importer/internal/types"
)

// SlowImportThreshold marks imports worth investigating
const SlowImportThreshold = 5 * time.Second

// ImportMonitor tracks import outcomes and durations in memory
type ImportMonitor struct {
	mu          sync.RWMutex
	durations   []time.Duration
	byStatus    map[types.ImportStatus]int64
	rejected    int64 // file-level rejections
	replays     int64
	rowsSeen    int64
	slowImports int64
	maxSamples  int
}

// NewImportMonitor creates a monitor keeping the last 1000 durations
func NewImportMonitor() *ImportMonitor {
	return &ImportMonitor{
		durations:  make([]time.Duration, 0, 1000),
		byStatus:   make(map[types.ImportStatus]int64),
		maxSamples: 1000,
	}
}

// RecordImport records a completed import
func (m *ImportMonitor) RecordImport(result *ImportResult, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.byStatus[result.Status]++
	m.rowsSeen += int64(result.RowsSeen)
	if result.ReplayOf != "" {
		m.replays++
	}
	m.recordDuration(duration)
}

// RecordRejection records a file rejected before persistence
func (m *ImportMonitor) RecordRejection(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rejected++
	m.byStatus[types.ImportFailed]++
	m.recordDuration(duration)
}

func (m *ImportMonitor) recordDuration(d time.Duration) {
	m.durations = append(m.durations, d)
	if len(m.durations) > m.maxSamples {
		m.durations = m.durations[len(m.durations)-m.maxSamples:]
	}
	if d > SlowImportThreshold {
		m.slowImports++
	}
}

// ImportStats contains import statistics
type ImportStats struct {
	Succeeded   int64   `json:"succeeded"`
	Partial     int64   `json:"partial"`
	Failed      int64   `json:"failed"`
	Rejected    int64   `json:"rejected"`
	Replays     int64   `json:"replays"`
	RowsSeen    int64   `json:"rows_seen"`
	SlowImports int64   `json:"slow_imports"`
	AvgMs       float64 `json:"avg_ms"`
	P95Ms       float64 `json:"p95_ms"`
}

// GetStats returns current import statistics
func (m *ImportMonitor) GetStats() *ImportStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &ImportStats{
		Succeeded:   m.byStatus[types.ImportSuccess],
		Partial:     m.byStatus[types.ImportPartial],
		Failed:      m.byStatus[types.ImportFailed],
		Rejected:    m.rejected,
		Replays:     m.replays,
		RowsSeen:    m.rowsSeen,
		SlowImports: m.slowImports,
	}

	if len(m.durations) > 0 {
		sorted := make([]time.Duration, len(m.durations))
		copy(sorted, m.durations)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var total time.Duration
		for _, d := range sorted {
			total += d
		}
		stats.AvgMs = float64(total.Milliseconds()) / float64(len(sorted))
		stats.P95Ms = float64(sorted[int(float64(len(sorted)-1)*0.95)].Milliseconds())
	}

	return stats
}

// Reset clears all statistics
func (m *ImportMonitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.durations = make([]time.Duration, 0, m.maxSamples)
	m.byStatus = make(map[types.ImportStatus]int64)
	m.rejected, m.replays, m.rowsSeen, m.slowImports = 0, 0, 0, 0
}

// ImportHealthCheck contains health check results
type ImportHealthCheck struct {
	Passed bool     `json:"passed"`
	Issues []string `json:"issues"`
}

// CheckHealth flags a high share of partial imports or slow p95 latency
func (m *ImportMonitor) CheckHealth() *ImportHealthCheck {
	stats := m.GetStats()
	check := &ImportHealthCheck{Passed: true, Issues: make([]string, 0)}

	completed := stats.Succeeded + stats.Partial
	if completed >= 20 && float64(stats.Partial)/float64(completed) > 0.1 {
		check.Passed = false
		check.Issues = append(check.Issues,
			fmt.Sprintf("%d of %d imports ended partial; check database health", stats.Partial, completed))
	}
	if stats.P95Ms > float64(SlowImportThreshold.Milliseconds()) {
		check.Passed = false
		check.Issues = append(check.Issues,
			fmt.Sprintf("P95 import time (%.0fms) exceeds %s", stats.P95Ms, SlowImportThreshold))
	}

	return check
}
