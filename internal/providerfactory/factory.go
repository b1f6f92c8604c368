// internal/providerfactory/factory.go
package providerfactory

import (
	"fmt"
	"strings"

	"github.com/mwiater/prefbench/internal/appconfig"
	"github.com/mwiater/prefbench/internal/logging"
	"github.com/mwiater/prefbench/internal/metrics"
	"github.com/mwiater/prefbench/internal/providers"
	"github.com/mwiater/prefbench/internal/providers/llamacpp"
)

// NewScoreProvider selects the score provider for the configured hosts and wraps
// it with metrics collection when enabled.
func NewScoreProvider(cfg *appconfig.Config) (providers.ScoreProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config provided to provider factory")
	}

	types, err := collectHostTypes(cfg)
	if err != nil {
		return nil, err
	}

	var provider providers.ScoreProvider
	switch {
	case types["llama.cpp"]:
		provider = llamacpp.New(cfg)
	default:
		return nil, fmt.Errorf("no supported host type configured")
	}

	if cfg.Metrics {
		aggregator := metrics.NewAggregator(cfg.MetricsFilePath())
		provider = metrics.NewProvider(provider, aggregator)
	}

	logging.LogEvent("score provider ready: %T", provider)
	return provider, nil
}

// collectHostTypes normalizes host types; an empty type means llama.cpp.
func collectHostTypes(cfg *appconfig.Config) (map[string]bool, error) {
	types := make(map[string]bool)
	for _, host := range cfg.Hosts {
		switch strings.ToLower(strings.TrimSpace(host.Type)) {
		case "", "llamacpp", "llama.cpp":
			types["llama.cpp"] = true
		default:
			return nil, fmt.Errorf("unsupported host type %q for host %q", host.Type, host.Name)
		}
	}
	return types, nil
}
