// internal/results/results.go
// Package results persists run summaries and per-example margins.
package results

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mwiater/prefbench/internal/logging"
	"github.com/mwiater/prefbench/internal/util"
)

// Summary is the JSON document written once per evaluated model.
type Summary struct {
	Accuracy           float64            `json:"accuracy"`
	NumPrompts         int                `json:"num_prompts"`
	Model              string             `json:"model"`
	RefModel           *string            `json:"ref_model"`
	Tokenizer          string             `json:"tokenizer"`
	ChatTemplate       *string            `json:"chat_template"`
	ExtraResults       map[string]float64 `json:"extra_results"`
	SectionResults     map[string]float64 `json:"section_results"`
	SectionResultsMean float64            `json:"section_results_mean"`
}

// marginLine is one line of the per-example JSONL file.
type marginLine struct {
	RewardMargin float64 `json:"reward_margin"`
}

// Optional returns nil for an empty string and a pointer to s otherwise.
func Optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Path returns <outputDir>/<model>.json. Model ids containing "/" nest directories.
func Path(outputDir, model string) string {
	return filepath.Join(outputDir, model+".json")
}

// AllPath returns <outputDir>/<model>_all.jsonl.
func AllPath(outputDir, model string) string {
	return filepath.Join(outputDir, model+"_all.jsonl")
}

// WriteSummary replaces any summary at Path(outputDir, summary.Model) and returns the path written.
func WriteSummary(outputDir string, summary Summary) (string, error) {
	path := Path(outputDir, summary.Model)

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(summary); err != nil {
		return "", fmt.Errorf("error encoding summary: %w", err)
	}
	if err := util.ReplaceFile(path, buf.Bytes()); err != nil {
		return "", fmt.Errorf("error writing summary to %s: %w", path, err)
	}

	logging.LogEvent("Results written to %s", path)
	return path, nil
}

// WriteAll replaces the per-example margin file for model, one line per margin in order.
func WriteAll(outputDir, model string, margins []float64) (string, error) {
	path := AllPath(outputDir, model)

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	for i, margin := range margins {
		if err := encoder.Encode(marginLine{RewardMargin: margin}); err != nil {
			return "", fmt.Errorf("error encoding margin %d: %w", i, err)
		}
	}
	if err := util.ReplaceFile(path, buf.Bytes()); err != nil {
		return "", fmt.Errorf("error writing margins to %s: %w", path, err)
	}

	logging.LogEvent("Per-example margins written to %s", path)
	return path, nil
}

// ReadSummary loads a summary previously written by WriteSummary.
func ReadSummary(path string) (Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Summary{}, err
	}
	var summary Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		return Summary{}, fmt.Errorf("error decoding summary %s: %w", path, err)
	}
	return summary, nil
}
