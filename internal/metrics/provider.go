// internal/metrics/provider.go
package metrics

import (
	"context"
	"errors"

	"github.com/mwiater/prefbench/internal/appconfig"
	"github.com/mwiater/prefbench/internal/logging"
	"github.com/mwiater/prefbench/internal/providers"
)

// Provider is a decorator that wraps a ScoreProvider to record forward-pass metrics.
type Provider struct {
	wrapped    providers.ScoreProvider
	aggregator *Aggregator
}

// NewProvider creates a new metrics-enabled provider that wraps an existing ScoreProvider.
func NewProvider(wrapped providers.ScoreProvider, aggregator *Aggregator) *Provider {
	logging.LogMetricsEvent("Wrapping provider with metrics provider")
	return &Provider{wrapped: wrapped, aggregator: aggregator}
}

// Logits records the duration and size of each successful forward pass.
func (p *Provider) Logits(ctx context.Context, req providers.LogitsRequest) ([][]float64, providers.LogitsMetadata, error) {
	rows, meta, err := p.wrapped.Logits(ctx, req)
	if err == nil && p.aggregator != nil {
		p.aggregator.Record(meta)
	}
	return rows, meta, err
}

// EnsureModelReady passes the call through to the wrapped provider.
func (p *Provider) EnsureModelReady(ctx context.Context, host appconfig.Host, model string, opts providers.LoadOptions) error {
	return p.wrapped.EnsureModelReady(ctx, host, model, opts)
}

// Tokenize passes the call through to the wrapped provider.
func (p *Provider) Tokenize(ctx context.Context, host appconfig.Host, model, text string) ([]int, error) {
	return p.wrapped.Tokenize(ctx, host, model, text)
}

// ApplyTemplate passes the call through to the wrapped provider.
func (p *Provider) ApplyTemplate(ctx context.Context, host appconfig.Host, model string, messages []providers.ChatMessage) (string, error) {
	return p.wrapped.ApplyTemplate(ctx, host, model, messages)
}

// Close closes the wrapped provider and saves the collected metrics.
func (p *Provider) Close() error {
	err := p.wrapped.Close()
	if p.aggregator != nil {
		err = errors.Join(err, p.aggregator.Save())
	}
	return err
}
