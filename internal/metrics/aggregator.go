// internal/metrics/aggregator.go
package metrics

import (
	"encoding/json"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/mwiater/prefbench/internal/logging"
	"github.com/mwiater/prefbench/internal/providers"
	"github.com/mwiater/prefbench/internal/util"
)

// Aggregator collects forward-pass statistics per model and persists them as JSON.
type Aggregator struct {
	mutex    sync.Mutex
	metrics  map[string]*ModelMetrics
	filePath string
}

// NewAggregator creates an Aggregator backed by filePath, loading any stats already stored there.
func NewAggregator(filePath string) *Aggregator {
	agg := &Aggregator{
		metrics:  make(map[string]*ModelMetrics),
		filePath: filePath,
	}
	agg.load()
	return agg
}

// load reads metrics from the JSON file into memory.
func (a *Aggregator) load() {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	data, err := os.ReadFile(a.filePath)
	if err != nil {
		return
	}

	var metricsSlice []*ModelMetrics
	if err := json.Unmarshal(data, &metricsSlice); err != nil {
		logging.LogMetricsEvent("ignoring unreadable metrics file %s: %v", a.filePath, err)
		return
	}

	for _, m := range metricsSlice {
		a.metrics[m.ModelName] = m
	}
}

// Save writes the current metrics from memory to the JSON file.
func (a *Aggregator) Save() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	metricsSlice := make([]*ModelMetrics, 0, len(a.metrics))
	for _, m := range a.metrics {
		metricsSlice = append(metricsSlice, m)
	}
	sort.Slice(metricsSlice, func(i, j int) bool {
		return metricsSlice[i].ModelName < metricsSlice[j].ModelName
	})

	data, err := json.MarshalIndent(metricsSlice, "", "  ")
	if err != nil {
		return err
	}
	if err := util.EnsureParentDir(a.filePath); err != nil {
		return err
	}
	logging.LogMetricsEvent("Saving metrics to %s", a.filePath)
	return util.WriteFile(a.filePath, data)
}

// Record updates the metrics for a given model with a completed forward pass.
func (a *Aggregator) Record(meta providers.LogitsMetadata) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	modelMetrics, exists := a.metrics[meta.Model]
	if !exists {
		modelMetrics = &ModelMetrics{ModelName: meta.Model}
		a.metrics[meta.Model] = modelMetrics
	}
	modelMetrics.LastUpdatedUTC = time.Now().UTC()

	updateStats(&modelMetrics.OverallStats, meta)

	bucket := getBucket(meta.Tokens)
	for i := range modelMetrics.PerformanceBuckets {
		if modelMetrics.PerformanceBuckets[i].Dimension == "batch_tokens" && modelMetrics.PerformanceBuckets[i].Bucket == bucket {
			updateStats(&modelMetrics.PerformanceBuckets[i].Stats, meta)
			return
		}
	}
	newBucket := PerformanceBucket{Dimension: "batch_tokens", Bucket: bucket}
	updateStats(&newBucket.Stats, meta)
	modelMetrics.PerformanceBuckets = append(modelMetrics.PerformanceBuckets, newBucket)
}

// Snapshot returns a copy of the stats recorded for model.
func (a *Aggregator) Snapshot(model string) (ModelMetrics, bool) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	m, ok := a.metrics[model]
	if !ok {
		return ModelMetrics{}, false
	}
	out := *m
	out.PerformanceBuckets = append([]PerformanceBucket(nil), m.PerformanceBuckets...)
	return out, true
}

func updateStats(stats *RunningAggregatedStats, meta providers.LogitsMetadata) {
	stats.TotalRequests++
	stats.DurationMillis.Add(float64(meta.Duration.Milliseconds()))

	var perSecond float64
	if meta.Duration > 0 {
		perSecond = float64(meta.BatchSize) / meta.Duration.Seconds()
	}
	stats.SequencesPerSecond.Add(perSecond)
	stats.BatchSize.Add(float64(meta.BatchSize))
	stats.Tokens.Add(float64(meta.Tokens))
}

// getBucket groups a forward pass by the number of tokens it processed.
func getBucket(tokens int) string {
	switch {
	case tokens <= 1024:
		return "0-1024"
	case tokens <= 4096:
		return "1025-4096"
	case tokens <= 16384:
		return "4097-16384"
	default:
		return "16384+"
	}
}
