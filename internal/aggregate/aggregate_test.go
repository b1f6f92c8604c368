// internal/aggregate/aggregate_test.go
package aggregate

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mwiater/prefbench/internal/preference"
)

func TestFourExampleScenario(t *testing.T) {
	margins := []float64{2.0, -1.0, 0.0, 5.0}
	outcomes := make([]int, len(margins))
	for i, m := range margins {
		outcomes[i] = preference.Outcome(m)
	}
	if diff := cmp.Diff([]int{1, 0, 0, 1}, outcomes); diff != "" {
		t.Fatalf("outcomes mismatch (-want +got):\n%s", diff)
	}

	acc, err := Accuracy(outcomes)
	if err != nil {
		t.Fatalf("Accuracy error: %v", err)
	}
	if acc != 0.5 {
		t.Fatalf("expected accuracy 0.5, got %v", acc)
	}

	stats := MarginStats(margins)
	if stats.Mean != 1.5 || stats.Count != 4 || stats.Min != -1 || stats.Max != 5 {
		t.Fatalf("unexpected margin stats: %+v", stats)
	}
	if math.Abs(stats.StdDev-math.Sqrt(5.25)) > 1e-12 {
		t.Fatalf("unexpected stddev %v", stats.StdDev)
	}
}

func TestMarginStatsMeanIsArithmetic(t *testing.T) {
	margins := []float64{0.1, 0.2, 0.3}
	var sum float64
	for _, m := range margins {
		sum += m
	}
	want := sum / float64(len(margins))

	stats := MarginStats(margins)
	if stats.Mean != want {
		t.Fatalf("expected mean %v (sum/n), got %v", want, stats.Mean)
	}
	if empty := MarginStats(nil); empty.Mean != 0 || empty.Count != 0 {
		t.Fatalf("expected zero stats for no margins, got %+v", empty)
	}
}

func TestAccuracyEmpty(t *testing.T) {
	if _, err := Accuracy(nil); !errors.Is(err, ErrNoResults) {
		t.Fatalf("expected ErrNoResults, got %v", err)
	}
}

func TestPerSubset(t *testing.T) {
	subsets := []string{"b", "a", "b", "a", "b"}
	outcomes := []int{1, 0, 1, 1, 0}

	acc, counts, err := PerSubset(subsets, outcomes)
	if err != nil {
		t.Fatalf("PerSubset error: %v", err)
	}
	if diff := cmp.Diff(map[string]float64{"a": 0.5, "b": 2.0 / 3.0}, acc); diff != "" {
		t.Fatalf("accuracy mismatch (-want +got):\n%s", diff)
	}
	if counts["b"] != (SubsetCount{Correct: 2, Total: 3}) {
		t.Fatalf("unexpected tally for b: %+v", counts["b"])
	}
	if diff := cmp.Diff([]string{"a", "b"}, SortedKeys(acc)); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}

	if _, _, err := PerSubset([]string{"a"}, []int{1, 0}); err == nil {
		t.Fatal("expected length mismatch error")
	}
}

func TestSectionsWeightedByCounts(t *testing.T) {
	counts := map[string]int{"x": 100, "y": 300, "z": 50}
	mapping := SectionMapping{
		"First":  {"x", "y"},
		"Second": {"z"},
		"Empty":  {"missing"},
	}
	perSubset := map[string]float64{"x": 1.0, "y": 0.5, "z": 0.1234, "unmapped": 1}

	got := Sections(counts, mapping, perSubset)
	want := map[string]float64{
		"First":  62.5, // (100*1 + 300*0.5) / 400
		"Second": 12.34,
		"Empty":  0,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("sections mismatch (-want +got):\n%s", diff)
	}

	mean := SectionMean(got)
	if math.Abs(mean-(62.5+12.34)/3) > 1e-12 {
		t.Fatalf("unexpected section mean %v", mean)
	}
}

func TestSectionMeanEmpty(t *testing.T) {
	if got := SectionMean(nil); got != 0 {
		t.Fatalf("expected 0 for no sections, got %v", got)
	}
}

func TestDefaultSections(t *testing.T) {
	table := DefaultSections()
	if diff := cmp.Diff([]string{"Chat", "Chat Hard", "Reasoning", "Safety"}, table.SectionNames()); diff != "" {
		t.Fatalf("section names mismatch (-want +got):\n%s", diff)
	}
	if table.ExampleCounts["math-prm"] != 984 || table.ExampleCounts["hep-go"] != 164 {
		t.Fatalf("unexpected counts: %v", table.ExampleCounts)
	}
	if len(table.SubsetMapping["Chat Hard"]) != 6 {
		t.Fatalf("expected 6 Chat Hard subsets, got %v", table.SubsetMapping["Chat Hard"])
	}
}

func TestLoadSections(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sections.yaml")
	content := "example_counts:\n  a: 10\n  b: 30\nsubset_mapping:\n  All: [a, b]\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write sections: %v", err)
	}

	table, err := LoadSections(path)
	if err != nil {
		t.Fatalf("LoadSections error: %v", err)
	}
	got := Sections(table.ExampleCounts, table.SubsetMapping, map[string]float64{"a": 1, "b": 0})
	if got["All"] != 25 {
		t.Fatalf("expected 25, got %v", got["All"])
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("example_counts: {}\nsubset_mapping:\n  All: [a]\n"), 0o644); err != nil {
		t.Fatalf("write sections: %v", err)
	}
	if _, err := LoadSections(bad); err == nil {
		t.Fatal("expected error for subset without count")
	}

	if table, err := LoadSections(""); err != nil || len(table.SubsetMapping) != 4 {
		t.Fatalf("expected default table for empty path, got %v (%v)", table.SectionNames(), err)
	}
}
