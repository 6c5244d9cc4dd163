package provider

import (
	"sync"
	"time"

	"genprovider/internal/models"
)

// StatsRecorder accumulates RunningStats for one adapter instance. Updates
// are serialized by an internal lock; readers only ever see snapshots.
type StatsRecorder struct {
	mu    sync.Mutex
	stats models.RunningStats
	now   func() time.Time
}

// NewStatsRecorder creates an empty accumulator.
func NewStatsRecorder() *StatsRecorder {
	return &StatsRecorder{now: time.Now}
}

// RecordSuccess accounts a completed request. cost is ignored when ok is false.
func (r *StatsRecorder) RecordSuccess(elapsed time.Duration, usage *models.TokenUsage, cost float64, costKnown bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.observe(elapsed)
	r.stats.SuccessfulRequests++
	if usage != nil {
		r.stats.TotalTokens += uint64(usage.TotalTokens())
	}
	if costKnown {
		total := cost
		if r.stats.TotalCost != nil {
			total += *r.stats.TotalCost
		}
		r.stats.TotalCost = &total
	}
}

// RecordFailure accounts a failed request.
func (r *StatsRecorder) RecordFailure(elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.observe(elapsed)
	r.stats.FailedRequests++
}

// observe updates counters shared by success and failure. Caller holds mu.
func (r *StatsRecorder) observe(elapsed time.Duration) {
	r.stats.TotalRequests++
	n := time.Duration(r.stats.TotalRequests)
	r.stats.AverageResponseTime += (elapsed - r.stats.AverageResponseTime) / n
	at := r.now()
	r.stats.LastRequestAt = &at
}

// Snapshot returns a copy that shares no pointers with the accumulator.
func (r *StatsRecorder) Snapshot() models.RunningStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.stats
	if r.stats.TotalCost != nil {
		c := *r.stats.TotalCost
		out.TotalCost = &c
	}
	if r.stats.LastRequestAt != nil {
		t := *r.stats.LastRequestAt
		out.LastRequestAt = &t
	}
	return out
}
