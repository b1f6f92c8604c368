// internal/sweep/args.go
package sweep

import (
	"strconv"

	"al.essio.dev/pkg/shellescape"

	"github.com/mwiater/prefbench/internal/evalmode"
)

// BuildArgs returns the evaluation command for one model as an argument list.
func BuildArgs(launcher, model string, cfg EntryConfig, mode evalmode.Mode, opts Options) []string {
	args := []string{
		launcher, "scripts/" + mode.Script(),
		"--model", model,
		"--tokenizer", cfg.Tokenizer,
		"--batch_size", strconv.Itoa(cfg.BatchSize),
	}
	if cfg.ChatTemplate != nil {
		args = append(args, "--chat_template", *cfg.ChatTemplate)
	}
	if cfg.TrustRemoteCode {
		args = append(args, "--trust_remote_code")
	}
	if !opts.UploadToHub {
		args = append(args, "--do_not_save")
	}
	if opts.PrefSets {
		args = append(args, "--pref_sets")
	}
	if cfg.RefModel != nil && !opts.RefFree {
		args = append(args, "--ref_model", *cfg.RefModel)
	}
	return args
}

// RenderCommand quotes args into a single shell command line.
func RenderCommand(args []string) string {
	return shellescape.QuoteCommand(args)
}
