// Package benchmark - Compares evaluation configurations on one dataset.
package benchmark

import (
	"time"

	"github.com/nvr-ai/go-eval/evaluation"
)

// ScenarioResult captures the outcome of one scenario run.
type ScenarioResult struct {
	Scenario      Scenario           `json:"scenario"`
	Timestamp     time.Time          `json:"timestamp"`
	TotalDuration time.Duration      `json:"total_duration"`
	Summary       evaluation.Summary `json:"summary"`
	MemoryStats   MemoryMetrics      `json:"memory_stats"`
	// Error is set when the scenario could not be scored, e.g. no predictions.
	Error string `json:"error,omitempty"`
}

// MemoryMetrics captures memory usage statistics
type MemoryMetrics struct {
	AllocBytes      uint64 `json:"alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	NumGC           uint32 `json:"num_gc"`
	HeapAllocBytes  uint64 `json:"heap_alloc_bytes"`
}
