// internal/providers/provider.go

// Package providers defines the boundary between the evaluation runner and the
// inference servers that host reward models. A provider loads a model, tokenizes
// and formats text with the model's tokenizer, and returns the raw
// classification-head logits for a batch of sequences in a single forward pass.
package providers

import (
	"context"
	"time"

	"github.com/mwiater/prefbench/internal/appconfig"
)

// ChatMessage is one turn of a conversation rendered through a chat template.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LogitsRequest asks for the classification-head outputs of a batch of texts.
type LogitsRequest struct {
	Host appconfig.Host
	// Model is the scored model; Tokenizer names the model whose tokenizer
	// measures and truncates inputs and defaults to Model.
	Model     string
	Tokenizer string
	Texts     []string
	// MaxLength bounds the tokenized length of each text.
	MaxLength int
	// Truncate keeps the last MaxLength tokens instead of failing on long inputs.
	Truncate bool
}

// TokenizerName returns the tokenizer model, falling back to the scored model.
func (r LogitsRequest) TokenizerName() string {
	if r.Tokenizer != "" {
		return r.Tokenizer
	}
	return r.Model
}

// LoadOptions is the keyword configuration a model is loaded with.
type LoadOptions struct {
	Quantized       bool `json:"quantized"`
	TrustRemoteCode bool `json:"trust_remote_code"`
}

// LogitsMetadata describes a completed forward pass.
type LogitsMetadata struct {
	Model     string
	BatchSize int
	Tokens    int
	Duration  time.Duration
}

// ScoreProvider is the interface that all inference backends implement.
type ScoreProvider interface {
	// EnsureModelReady checks if a model is ready to be used and loads it if necessary.
	EnsureModelReady(ctx context.Context, host appconfig.Host, model string, opts LoadOptions) error
	// Tokenize returns the token ids of text under the model's tokenizer.
	Tokenize(ctx context.Context, host appconfig.Host, model, text string) ([]int, error)
	// ApplyTemplate renders messages with the model's built-in chat template.
	ApplyTemplate(ctx context.Context, host appconfig.Host, model string, messages []ChatMessage) (string, error)
	// Logits returns one raw output row per text, in request order.
	Logits(ctx context.Context, req LogitsRequest) ([][]float64, LogitsMetadata, error)
	// Close cleans up any resources used by the provider.
	Close() error
}
