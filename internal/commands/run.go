// internal/commands/run.go
package prefbench

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/mwiater/prefbench/internal/appconfig"
	"github.com/mwiater/prefbench/internal/logging"
	"github.com/mwiater/prefbench/internal/runner"
	"github.com/mwiater/prefbench/internal/tui"
	"github.com/spf13/cobra"
)

// runEvaluation is swapped out in tests.
var runEvaluation = runner.RunEvaluation

var runFlags struct {
	dataset         string
	split           string
	model           string
	refModel        string
	tokenizer       string
	chatTemplate    string
	notQuantized    bool
	batchSize       int
	maxLength       int
	trustRemoteCode bool
	debugSubset     bool
	outputDir       string
	saveAll         bool
	forceTruncation bool
	host            string
	rank            int
	modelConfigs    string
	sectionsFile    string
	noProgress      bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Score a reward model on a pairwise preference dataset",
	Long: `Runs every chosen/rejected pair of the dataset through the model's paired
preference head, reports accuracy and per-section scores and writes
<output_dir>/<model>.json.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if cfg == nil {
			return errors.New("configuration not loaded")
		}
		opts := runOptions(cfg)

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		progress, finish := newProgress(opts.Model)
		report, err := runEvaluation(ctx, cfg, opts, progress)
		finish()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		renderSummary(out, report.Summary)
		fmt.Fprintf(out, "\nResults written to %s\n", report.SummaryPath)
		if report.AllPath != "" {
			fmt.Fprintf(out, "Margins written to %s\n", report.AllPath)
		}
		return nil
	},
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.dataset, "dataset", "", "path to a .json or .jsonl preference dataset")
	f.StringVar(&runFlags.split, "split", "", "top-level split to read when the dataset is an object of splits")
	f.StringVar(&runFlags.model, "model", "", "reward model to evaluate")
	f.StringVar(&runFlags.refModel, "ref_model", "", "reference model (DPO evaluation, not supported)")
	f.StringVar(&runFlags.tokenizer, "tokenizer", "", "tokenizer model (defaults to --model)")
	f.StringVar(&runFlags.chatTemplate, "chat_template", "", "named chat template; empty uses the tokenizer's template")
	f.BoolVar(&runFlags.notQuantized, "not_quantized", false, "disable quantization")
	f.IntVar(&runFlags.batchSize, "batch_size", 8, "pairs per forward pass")
	f.IntVar(&runFlags.maxLength, "max_length", 512, "maximum tokenized sequence length")
	f.BoolVar(&runFlags.trustRemoteCode, "trust_remote_code", false, "trust remote code when loading the model")
	f.BoolVar(&runFlags.debugSubset, "debug_subset", false, "score only the first few examples")
	f.StringVar(&runFlags.outputDir, "output_dir", "", "directory for result files (default from config, results/)")
	f.BoolVar(&runFlags.saveAll, "save_all", false, "also write per-example margins to <model>_all.jsonl")
	f.BoolVar(&runFlags.forceTruncation, "force_truncation", false, "keep the last max_length tokens of long inputs")
	f.StringVar(&runFlags.host, "host", "", "host name or url from the config (default: the host listing the model)")
	f.IntVar(&runFlags.rank, "rank", 1, "rank k of the paired preference head (2k logits)")
	f.StringVar(&runFlags.modelConfigs, "model_configs", "", "YAML file of per-model settings")
	f.StringVar(&runFlags.sectionsFile, "sections_file", "", "YAML file of section example counts and subset mapping")
	f.BoolVar(&runFlags.noProgress, "no_progress", false, "log batch progress instead of drawing a progress bar")
}

// runOptions merges the run flags with the loaded configuration.
func runOptions(cfg *appconfig.Config) runner.Options {
	return runner.Options{
		Dataset:         runFlags.dataset,
		Split:           runFlags.split,
		Model:           runFlags.model,
		RefModel:        runFlags.refModel,
		Tokenizer:       runFlags.tokenizer,
		ChatTemplate:    runFlags.chatTemplate,
		NotQuantized:    runFlags.notQuantized,
		BatchSize:       runFlags.batchSize,
		MaxLength:       runFlags.maxLength,
		TrustRemoteCode: runFlags.trustRemoteCode,
		Debug:           runFlags.debugSubset,
		OutputDir:       orConfig(runFlags.outputDir, cfg.ResultsDir()),
		SaveAll:         runFlags.saveAll,
		ForceTruncation: runFlags.forceTruncation,
		Host:            runFlags.host,
		Rank:            runFlags.rank,
		ModelConfigs:    orConfig(runFlags.modelConfigs, cfg.ModelConfigs),
		SectionsFile:    orConfig(runFlags.sectionsFile, cfg.SectionsFile),
	}
}

func orConfig(flagValue, configValue string) string {
	if strings.TrimSpace(flagValue) != "" {
		return flagValue
	}
	return configValue
}

// newProgress picks a progress observer for the run. The bar is drawn on
// stderr only when it is a terminal; otherwise batches are logged.
func newProgress(model string) (runner.Progress, func()) {
	if !runFlags.noProgress && isatty.IsTerminal(os.Stderr.Fd()) {
		bar := tui.Start(os.Stderr, "Scoring "+model)
		return bar.Step, bar.Stop
	}
	return func(step, total int) {
		if step < total {
			logging.LogEvent("RM inference step %d/%d", step, total)
		}
	}, func() {}
}
