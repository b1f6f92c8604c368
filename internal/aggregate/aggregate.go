// internal/aggregate/aggregate.go
// Package aggregate reduces per-example outcomes and margins into accuracy,
// margin statistics, per-subset accuracy, and weighted section scores.
package aggregate

import (
	"errors"
	"fmt"
	"sort"

	"github.com/mwiater/prefbench/internal/metrics"
)

// ErrNoResults is returned when accuracy is requested over zero outcomes.
var ErrNoResults = errors.New("no results to aggregate")

// Accuracy returns the fraction of outcomes equal to 1.
func Accuracy(outcomes []int) (float64, error) {
	if len(outcomes) == 0 {
		return 0, ErrNoResults
	}
	correct := 0
	for _, o := range outcomes {
		if o == 1 {
			correct++
		}
	}
	return float64(correct) / float64(len(outcomes)), nil
}

// Stats summarizes the distribution of margins.
type Stats struct {
	Count  int64
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// MarginStats computes the arithmetic mean, population standard deviation and
// range of margins. The mean is sum/n; the running statistic only supplies the spread.
func MarginStats(margins []float64) Stats {
	var rs metrics.RunningStat
	var sum float64
	for _, m := range margins {
		rs.Add(m)
		sum += m
	}
	var mean float64
	if len(margins) > 0 {
		mean = sum / float64(len(margins))
	}
	return Stats{
		Count:  rs.Count,
		Mean:   mean,
		StdDev: rs.StdDev(),
		Min:    rs.Min,
		Max:    rs.Max,
	}
}

// SubsetCount is the tally behind one subset accuracy.
type SubsetCount struct {
	Correct int
	Total   int
}

// Accuracy returns Correct/Total.
func (c SubsetCount) Accuracy() float64 {
	if c.Total == 0 {
		return 0
	}
	return float64(c.Correct) / float64(c.Total)
}

// PerSubset groups outcomes by the subset label at the same index and returns
// each group's accuracy along with its tally.
func PerSubset(subsets []string, outcomes []int) (map[string]float64, map[string]SubsetCount, error) {
	if len(subsets) != len(outcomes) {
		return nil, nil, fmt.Errorf("subset labels (%d) and outcomes (%d) differ in length", len(subsets), len(outcomes))
	}
	counts := make(map[string]SubsetCount)
	for i, label := range subsets {
		c := counts[label]
		c.Total++
		if outcomes[i] == 1 {
			c.Correct++
		}
		counts[label] = c
	}
	accuracies := make(map[string]float64, len(counts))
	for label, c := range counts {
		accuracies[label] = c.Accuracy()
	}
	return accuracies, counts, nil
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
