// internal/runner/evaluate.go
package runner

import (
	"context"
	"fmt"

	"github.com/mwiater/prefbench/internal/aggregate"
	"github.com/mwiater/prefbench/internal/appconfig"
	"github.com/mwiater/prefbench/internal/dataset"
	"github.com/mwiater/prefbench/internal/logging"
	"github.com/mwiater/prefbench/internal/providerfactory"
	"github.com/mwiater/prefbench/internal/providers"
	"github.com/mwiater/prefbench/internal/results"
)

// Report is what a successful evaluation produced.
type Report struct {
	Plan        Plan
	Summary     results.Summary
	Margins     aggregate.Stats
	Subsets     map[string]aggregate.SubsetCount
	SummaryPath string
	AllPath     string
}

// RunEvaluation builds the configured score provider and evaluates opts with it.
func RunEvaluation(ctx context.Context, cfg *appconfig.Config, opts Options, progress Progress) (Report, error) {
	if cfg == nil {
		return Report{}, fmt.Errorf("config is nil")
	}
	provider, err := providerfactory.NewScoreProvider(cfg)
	if err != nil {
		return Report{}, fmt.Errorf("error creating provider: %w", err)
	}
	defer func() {
		if err := provider.Close(); err != nil {
			logging.LogEvent("error closing provider: %v", err)
		}
	}()
	return Evaluate(ctx, cfg, opts, provider, progress)
}

// Evaluate scores the dataset named in opts with provider and writes the results.
// Configuration problems are reported before any inference; results are written
// only after every batch has been scored.
func Evaluate(ctx context.Context, cfg *appconfig.Config, opts Options, provider providers.ScoreProvider, progress Progress) (Report, error) {
	logging.LogEvent("Running reward model on %s with chat template %s", opts.Model, opts.ChatTemplate)
	if opts.TrustRemoteCode {
		logging.LogEvent("Loading model with Trust Remote Code")
	}

	registry, err := LoadRegistry(opts.ModelConfigs)
	if err != nil {
		return Report{}, err
	}
	plan, err := Resolve(opts, registry)
	if err != nil {
		return Report{}, err
	}
	sections, err := aggregate.LoadSections(opts.SectionsFile)
	if err != nil {
		return Report{}, err
	}
	host, err := resolveHost(cfg, opts.Host, plan.Model)
	if err != nil {
		return Report{}, err
	}

	logging.LogEvent("*** Load dataset ***")
	records, err := dataset.Load(opts.Dataset, opts.Split)
	if err != nil {
		return Report{}, err
	}
	if opts.Debug {
		records = dataset.Debug(records)
	}

	logging.LogEvent("*** Load reward model ***")
	load := plan.LoadOptions()
	if err := provider.EnsureModelReady(ctx, host, plan.Model, load); err != nil {
		return Report{}, fmt.Errorf("error ensuring model %s is ready on host %s: %w", plan.Model, host.Name, err)
	}
	if plan.Tokenizer != plan.Model {
		if err := provider.EnsureModelReady(ctx, host, plan.Tokenizer, load); err != nil {
			return Report{}, fmt.Errorf("error ensuring tokenizer %s is ready on host %s: %w", plan.Tokenizer, host.Name, err)
		}
	}

	formatter, err := chooseFormatter(plan, provider, host)
	if err != nil {
		return Report{}, err
	}
	examples, err := dataset.Prepare(ctx, records, formatter)
	if err != nil {
		return Report{}, err
	}
	subsets, err := dataset.Subsets(examples)
	if err != nil {
		return Report{}, err
	}

	scores, err := New(provider, host, plan, progress).Run(ctx, examples)
	if err != nil {
		return Report{}, err
	}

	accuracy, err := aggregate.Accuracy(scores.Outcomes)
	if err != nil {
		return Report{}, err
	}
	margins := aggregate.MarginStats(scores.Margins)
	logging.LogEvent("Results: %v, on %d prompts", accuracy, len(scores.Outcomes))
	logging.LogEvent("Mean margin: %v (std %v)", margins.Mean, margins.StdDev)

	summary := results.Summary{
		Accuracy:     accuracy,
		NumPrompts:   len(scores.Outcomes),
		Model:        plan.Model,
		Tokenizer:    plan.Tokenizer,
		ChatTemplate: results.Optional(plan.ChatTemplate),
	}
	report := Report{Plan: plan, Margins: margins}

	if subsets != nil {
		perSubset, counts, err := aggregate.PerSubset(subsets, scores.Outcomes)
		if err != nil {
			return Report{}, err
		}
		for _, label := range aggregate.SortedKeys(counts) {
			c := counts[label]
			logging.LogEvent("%s: %d/%d (%v)", label, c.Correct, c.Total, c.Accuracy())
		}
		sectionScores := aggregate.Sections(sections.ExampleCounts, sections.SubsetMapping, perSubset)
		logging.LogEvent("Results: %v", sectionScores)

		summary.ExtraResults = perSubset
		summary.SectionResults = sectionScores
		summary.SectionResultsMean = aggregate.SectionMean(sectionScores)
		report.Subsets = counts
	}

	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = cfg.ResultsDir()
	}
	report.SummaryPath, err = results.WriteSummary(outputDir, summary)
	if err != nil {
		return Report{}, err
	}
	if opts.SaveAll {
		report.AllPath, err = results.WriteAll(outputDir, plan.Model, scores.Margins)
		if err != nil {
			return Report{}, err
		}
	}
	report.Summary = summary
	return report, nil
}

func resolveHost(cfg *appconfig.Config, name, model string) (appconfig.Host, error) {
	if name != "" {
		return cfg.HostByName(name)
	}
	return cfg.FindHost(model)
}

// chooseFormatter prefers a named chat template and otherwise uses the tokenizer's own.
func chooseFormatter(plan Plan, provider providers.ScoreProvider, host appconfig.Host) (dataset.Formatter, error) {
	if plan.ChatTemplate != "" {
		return dataset.NamedTemplate(plan.ChatTemplate)
	}
	return dataset.ApplyFunc(func(ctx context.Context, messages []providers.ChatMessage) (string, error) {
		return provider.ApplyTemplate(ctx, host, plan.Tokenizer, messages)
	}), nil
}
