// internal/sweep/options.go
package sweep

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/sethvargo/go-envconfig"
)

var (
	// ErrConflictingFilters reports mutually exclusive sweep flags.
	ErrConflictingFilters = errors.New("conflicting sweep options")
	// ErrUnknownModel reports a --model absent from the sweep file.
	ErrUnknownModel = errors.New("model not found in configs")
	// ErrMissingToken reports that HF_TOKEN is not set.
	ErrMissingToken = errors.New("HF Token does not exist -- run `export HF_TOKEN=<your_write_token_here>`")
)

// Options controls one sweep submission.
type Options struct {
	PrefSets    bool
	BestOfN     bool
	Image       string
	Cluster     string
	UploadToHub bool
	Model       string
	RefFree     bool
	DPOOnly     bool
	RMOnly      bool
	DryRun      bool
	Debug       bool

	Template   string
	ConfigsDir string
	JobsDir    string
	Workspace  string
	Launcher   string
	SubmitBin  string
}

// Validate rejects flag combinations that can never produce a sweep.
func (o Options) Validate() error {
	if o.DPOOnly && o.RMOnly {
		return fmt.Errorf("%w: only one of eval_dpo_only and eval_rm_only can be set", ErrConflictingFilters)
	}
	if o.PrefSets && o.BestOfN {
		return fmt.Errorf("%w: only one of eval_on_pref_sets and eval_on_bon can be set", ErrConflictingFilters)
	}
	return nil
}

// ConfigFile returns the sweep file for the selected evaluation set.
func (o Options) ConfigFile() string {
	if o.BestOfN {
		return filepath.Join(o.ConfigsDir, "eval_bon_configs.yaml")
	}
	return filepath.Join(o.ConfigsDir, "eval_configs.yaml")
}

// Credentials are read from the process environment.
type Credentials struct {
	HFToken string `env:"HF_TOKEN,required"`
}

// LoadCredentials resolves Credentials through lookuper, or the OS environment when lookuper is nil.
func LoadCredentials(ctx context.Context, lookuper envconfig.Lookuper) (Credentials, error) {
	if lookuper == nil {
		lookuper = envconfig.OsLookuper()
	}
	var creds Credentials
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &creds, Lookuper: lookuper}); err != nil {
		return Credentials{}, fmt.Errorf("%w: %v", ErrMissingToken, err)
	}
	if creds.HFToken == "" {
		return Credentials{}, ErrMissingToken
	}
	return creds, nil
}
