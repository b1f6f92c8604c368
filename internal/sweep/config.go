// internal/sweep/config.go
package sweep

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// EntryConfig is one model's evaluation settings in a sweep file.
type EntryConfig struct {
	DPO             bool    `yaml:"dpo"`
	Tokenizer       string  `yaml:"tokenizer"`
	BatchSize       int     `yaml:"batch_size"`
	ChatTemplate    *string `yaml:"chat_template"`
	TrustRemoteCode bool    `yaml:"trust_remote_code"`
	NumGPUs         *int    `yaml:"num_gpus,omitempty"`
	RefModel        *string `yaml:"ref_model,omitempty"`
}

// Entry pairs a model id with its settings.
type Entry struct {
	Model  string
	Config EntryConfig
}

// LoadEntries reads a sweep file, keeping models in file order.
func LoadEntries(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sweep config: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse sweep config %s: %w", path, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("sweep config %s is empty", path)
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("sweep config %s: expected a mapping of model ids", path)
	}

	entries := make([]Entry, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		model := root.Content[i].Value
		var cfg EntryConfig
		if err := root.Content[i+1].Decode(&cfg); err != nil {
			return nil, fmt.Errorf("sweep config %s model %q: %w", path, model, err)
		}
		if cfg.Tokenizer == "" {
			return nil, fmt.Errorf("sweep config %s model %q: tokenizer is required", path, model)
		}
		if cfg.BatchSize < 1 {
			return nil, fmt.Errorf("sweep config %s model %q: batch_size must be >= 1", path, model)
		}
		entries = append(entries, Entry{Model: model, Config: cfg})
	}
	return entries, nil
}
