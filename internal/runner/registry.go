// internal/runner/registry.go
package runner

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const defaultModelKey = "default"

//go:embed models.yaml
var defaultRegistryYAML []byte

// ModelConfig describes how a reward model is loaded and fed.
type ModelConfig struct {
	Quantized      bool   `yaml:"quantized"`
	CustomDialogue bool   `yaml:"custom_dialogue"`
	ModelType      string `yaml:"model_type"`
}

// Registry maps model ids to their settings. The "default" entry covers unlisted models.
type Registry map[string]ModelConfig

// DefaultRegistry returns the built-in registry.
func DefaultRegistry() Registry {
	registry, err := parseRegistry(defaultRegistryYAML)
	if err != nil {
		panic(fmt.Sprintf("runner: invalid embedded model registry: %v", err))
	}
	return registry
}

// LoadRegistry reads a registry from a YAML file. An empty path yields the built-in registry.
func LoadRegistry(path string) (Registry, error) {
	if path == "" {
		return DefaultRegistry(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model configs %s: %w", path, err)
	}
	registry, err := parseRegistry(data)
	if err != nil {
		return nil, fmt.Errorf("model configs %s: %w", path, err)
	}
	return registry, nil
}

func parseRegistry(data []byte) (Registry, error) {
	var registry Registry
	if err := yaml.Unmarshal(data, &registry); err != nil {
		return nil, err
	}
	if _, ok := registry[defaultModelKey]; !ok {
		return nil, fmt.Errorf("missing %q entry", defaultModelKey)
	}
	return registry, nil
}

// Lookup returns the settings for model, falling back to the default entry.
func (r Registry) Lookup(model string) ModelConfig {
	if cfg, ok := r[model]; ok {
		return cfg
	}
	return r[defaultModelKey]
}
