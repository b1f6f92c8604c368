// internal/runner/plan.go
package runner

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mwiater/prefbench/internal/dataset"
	"github.com/mwiater/prefbench/internal/evalmode"
	"github.com/mwiater/prefbench/internal/logging"
	"github.com/mwiater/prefbench/internal/preference"
	"github.com/mwiater/prefbench/internal/providers"
)

// ErrNotImplemented marks evaluation features that are recognized but not supported.
var ErrNotImplemented = errors.New("not implemented")

// Options are the user-facing settings of one evaluation run.
type Options struct {
	Dataset         string
	Split           string
	Model           string
	RefModel        string
	Tokenizer       string
	ChatTemplate    string
	NotQuantized    bool
	BatchSize       int
	MaxLength       int
	TrustRemoteCode bool
	Debug           bool
	OutputDir       string
	SaveAll         bool
	ForceTruncation bool
	Host            string
	Rank            int
	ModelConfigs    string
	SectionsFile    string
}

// Plan is the fully resolved configuration of a run. It is built once before
// any inference and never changes afterwards.
type Plan struct {
	Mode         evalmode.Mode
	Model        string
	Tokenizer    string
	ChatTemplate string
	Config       ModelConfig
	Quantized    bool
	TrustRemote  bool
	Head         preference.Head
	BatchSize    int
	MaxLength    int
	Truncate     bool
}

// Resolve validates opts against registry and fixes the evaluation mode.
func Resolve(opts Options, registry Registry) (Plan, error) {
	if strings.TrimSpace(opts.Model) == "" {
		return Plan{}, errors.New("a model is required")
	}
	if strings.TrimSpace(opts.Dataset) == "" {
		return Plan{}, errors.New("a dataset is required")
	}
	if opts.BatchSize < 1 {
		return Plan{}, fmt.Errorf("batch size must be >= 1, got %d", opts.BatchSize)
	}
	if opts.MaxLength < 1 {
		return Plan{}, fmt.Errorf("max length must be >= 1, got %d", opts.MaxLength)
	}

	mode := evalmode.Select(false, opts.RefModel != "")
	if mode == evalmode.Reference {
		if opts.RefModel == opts.Model {
			return Plan{}, errors.New("policy and reference model should be different")
		}
		return Plan{}, fmt.Errorf("reference-model (DPO) scoring: %w", ErrNotImplemented)
	}

	head, err := preference.NewHead(opts.Rank)
	if err != nil {
		return Plan{}, err
	}

	if opts.ChatTemplate != "" {
		if _, err := dataset.NamedTemplate(opts.ChatTemplate); err != nil {
			return Plan{}, err
		}
	}

	config := registry.Lookup(opts.Model)
	logging.LogEvent("Using reward model config: %+v", config)
	if config.CustomDialogue {
		return Plan{}, fmt.Errorf("custom dialogue formatting: %w", ErrNotImplemented)
	}

	quantized := config.Quantized
	if isLlama3(opts.Model) || opts.NotQuantized {
		quantized = false
		logging.LogEvent("Disabling quantization for llama-3 or override flag (--not_quantized: %t)", opts.NotQuantized)
	}

	tokenizer := opts.Tokenizer
	if tokenizer == "" {
		tokenizer = opts.Model
	}

	return Plan{
		Mode:         mode,
		Model:        opts.Model,
		Tokenizer:    tokenizer,
		ChatTemplate: opts.ChatTemplate,
		Config:       config,
		Quantized:    quantized,
		TrustRemote:  opts.TrustRemoteCode,
		Head:         head,
		BatchSize:    opts.BatchSize,
		MaxLength:    opts.MaxLength,
		Truncate:     opts.ForceTruncation,
	}, nil
}

// LoadOptions is how the model and tokenizer are loaded for this plan.
func (p Plan) LoadOptions() providers.LoadOptions {
	return providers.LoadOptions{Quantized: p.Quantized, TrustRemoteCode: p.TrustRemote}
}

func isLlama3(model string) bool {
	for _, marker := range []string{"llama-3", "Llama3", "Llama-3", "LLaMA3"} {
		if strings.Contains(model, marker) {
			return true
		}
	}
	return false
}
