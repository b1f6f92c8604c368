// internal/aggregate/sections.go
package aggregate

import (
	_ "embed"
	"fmt"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed sections.yaml
var defaultSectionsYAML []byte

// SectionMapping maps a section name to the subsets it reports.
type SectionMapping map[string][]string

// SectionTable holds the per-subset example counts used as weights and the
// subset-to-section mapping.
type SectionTable struct {
	ExampleCounts map[string]int `yaml:"example_counts"`
	SubsetMapping SectionMapping `yaml:"subset_mapping"`
}

// DefaultSections returns the built-in RewardBench core section table.
func DefaultSections() SectionTable {
	table, err := parseSections(defaultSectionsYAML)
	if err != nil {
		panic(fmt.Sprintf("aggregate: invalid embedded sections: %v", err))
	}
	return table
}

// LoadSections reads a section table from a YAML file. An empty path yields the default table.
func LoadSections(path string) (SectionTable, error) {
	if path == "" {
		return DefaultSections(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return SectionTable{}, fmt.Errorf("read sections file %s: %w", path, err)
	}
	table, err := parseSections(data)
	if err != nil {
		return SectionTable{}, fmt.Errorf("sections file %s: %w", path, err)
	}
	return table, nil
}

func parseSections(data []byte) (SectionTable, error) {
	var table SectionTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return SectionTable{}, err
	}
	if len(table.SubsetMapping) == 0 {
		return SectionTable{}, fmt.Errorf("subset_mapping is empty")
	}
	for _, section := range table.SectionNames() {
		for _, subset := range table.SubsetMapping[section] {
			if table.ExampleCounts[subset] <= 0 {
				return SectionTable{}, fmt.Errorf("section %q lists subset %q without a positive example count", section, subset)
			}
		}
	}
	return table, nil
}

// SectionNames returns the section names in sorted order.
func (t SectionTable) SectionNames() []string {
	names := make([]string, 0, len(t.SubsetMapping))
	for name := range t.SubsetMapping {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Sections combines per-subset accuracies into section scores. Each section is
// the example-count weighted mean of its subsets that appear in perSubset,
// reported as a percentage rounded to two decimals. Subsets missing from
// perSubset are skipped, subsets outside the mapping are ignored, and a section
// with no weighted examples scores 0.
func Sections(counts map[string]int, mapping SectionMapping, perSubset map[string]float64) map[string]float64 {
	scores := make(map[string]float64, len(mapping))
	for section, subsets := range mapping {
		var weighted float64
		var total int
		for _, subset := range subsets {
			acc, ok := perSubset[subset]
			if !ok {
				continue
			}
			n := counts[subset]
			weighted += acc * float64(n)
			total += n
		}
		if total > 0 {
			scores[section] = roundTo(100*weighted/float64(total), 2)
		} else {
			scores[section] = 0
		}
	}
	return scores
}

// SectionMean returns the arithmetic mean of the section scores, or 0 when there are none.
func SectionMean(sections map[string]float64) float64 {
	if len(sections) == 0 {
		return 0
	}
	var sum float64
	for _, score := range sections {
		sum += score
	}
	return sum / float64(len(sections))
}

func roundTo(value float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(value*scale) / scale
}
