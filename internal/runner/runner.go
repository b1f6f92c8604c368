// internal/runner/runner.go
// Package runner drives a preference evaluation: it resolves the run plan,
// scores every chosen/rejected pair batch by batch, aggregates the outcomes,
// and writes the results.
package runner

import (
	"context"
	"fmt"

	"github.com/mwiater/prefbench/internal/appconfig"
	"github.com/mwiater/prefbench/internal/dataset"
	"github.com/mwiater/prefbench/internal/preference"
	"github.com/mwiater/prefbench/internal/providers"
)

// Progress is told which batch is about to run. After the last batch it is
// called once more with step == total.
type Progress func(step, total int)

// Scores holds one outcome and one margin per example, in dataset order.
type Scores struct {
	Outcomes []int
	Margins  []float64
}

// Runner scores preference pairs on a single host with a fixed plan.
type Runner struct {
	provider providers.ScoreProvider
	host     appconfig.Host
	plan     Plan
	progress Progress
}

// New returns a Runner. progress may be nil.
func New(provider providers.ScoreProvider, host appconfig.Host, plan Plan, progress Progress) *Runner {
	if progress == nil {
		progress = func(int, int) {}
	}
	return &Runner{provider: provider, host: host, plan: plan, progress: progress}
}

// Run scores every example. Any failing batch aborts the run and discards what was accumulated.
func (r *Runner) Run(ctx context.Context, examples []dataset.Example) (Scores, error) {
	batches, err := dataset.Batches(examples, r.plan.BatchSize)
	if err != nil {
		return Scores{}, err
	}

	scores := Scores{
		Outcomes: make([]int, 0, len(examples)),
		Margins:  make([]float64, 0, len(examples)),
	}
	for step, batch := range batches {
		if err := ctx.Err(); err != nil {
			return Scores{}, err
		}
		r.progress(step, len(batches))

		chosenTexts := make([]string, len(batch))
		rejectedTexts := make([]string, len(batch))
		for i, ex := range batch {
			chosenTexts[i] = ex.TextChosen
			rejectedTexts[i] = ex.TextRejected
		}

		chosen, err := r.forward(ctx, chosenTexts)
		if err != nil {
			return Scores{}, fmt.Errorf("batch %d chosen: %w", step, err)
		}
		rejected, err := r.forward(ctx, rejectedTexts)
		if err != nil {
			return Scores{}, fmt.Errorf("batch %d rejected: %w", step, err)
		}

		margins, outcomes, err := preference.ScoreBatch(chosen, rejected)
		if err != nil {
			return Scores{}, fmt.Errorf("batch %d: %w", step, err)
		}
		scores.Margins = append(scores.Margins, margins...)
		scores.Outcomes = append(scores.Outcomes, outcomes...)
	}
	r.progress(len(batches), len(batches))

	if len(scores.Outcomes) != len(examples) || len(scores.Margins) != len(examples) {
		return Scores{}, fmt.Errorf("scored %d outcomes and %d margins for %d examples",
			len(scores.Outcomes), len(scores.Margins), len(examples))
	}
	return scores, nil
}

// forward runs one forward pass over texts and splits each row into paired logits.
func (r *Runner) forward(ctx context.Context, texts []string) ([]preference.PairedLogits, error) {
	rows, _, err := r.provider.Logits(ctx, providers.LogitsRequest{
		Host:      r.host,
		Model:     r.plan.Model,
		Tokenizer: r.plan.Tokenizer,
		Texts:     texts,
		MaxLength: r.plan.MaxLength,
		Truncate:  r.plan.Truncate,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) != len(texts) {
		return nil, fmt.Errorf("provider returned %d rows for %d texts", len(rows), len(texts))
	}
	return r.plan.Head.SplitBatch(rows)
}
