package models

import "time"

// RunningStats is a read-only snapshot of an adapter's request accounting.
type RunningStats struct {
	TotalRequests       uint64        `json:"total_requests"`
	SuccessfulRequests  uint64        `json:"successful_requests"`
	FailedRequests      uint64        `json:"failed_requests"`
	TotalTokens         uint64        `json:"total_tokens"`
	TotalCost           *float64      `json:"total_cost,omitempty"`
	AverageResponseTime time.Duration `json:"average_response_time_ns"`
	LastRequestAt       *time.Time    `json:"last_request_at,omitempty"`
}
