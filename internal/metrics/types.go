// internal/metrics/types.go
package metrics

import "time"

// ModelMetrics is the top-level document for a single model's aggregated data.
type ModelMetrics struct {
	ModelName          string                 `json:"model_name"`
	LastUpdatedUTC     time.Time              `json:"last_updated_utc"`
	OverallStats       RunningAggregatedStats `json:"overall_stats"`
	PerformanceBuckets []PerformanceBucket    `json:"performance_buckets"`
}

// PerformanceBucket holds aggregated stats for a specific dimension, like tokens per batch.
type PerformanceBucket struct {
	Dimension string                 `json:"dimension"`
	Bucket    string                 `json:"bucket"`
	Stats     RunningAggregatedStats `json:"stats"`
}

// RunningAggregatedStats stores the running statistical values for forward passes.
type RunningAggregatedStats struct {
	TotalRequests int64 `json:"total_requests"`

	DurationMillis     RunningStat `json:"duration_ms"`
	SequencesPerSecond RunningStat `json:"sequences_per_second"`
	BatchSize          RunningStat `json:"batch_size"`
	Tokens             RunningStat `json:"tokens"`
}

// RunningStat holds the necessary values for online calculation of mean, variance, and stddev.
type RunningStat struct {
	Count int64   `json:"count"`
	Mean  float64 `json:"mean"`
	M2    float64 `json:"m2"` // Sum of squares of differences from the current mean
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}
