// internal/sweep/sweep.go
// Package sweep expands a mapping of model evaluation settings into one cluster
// job document per model and submits each document.
package sweep

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/k0kubun/pp"
	"github.com/sethvargo/go-envconfig"

	"github.com/mwiater/prefbench/internal/evalmode"
	"github.com/mwiater/prefbench/internal/logging"
	"github.com/mwiater/prefbench/internal/util"
)

// Job describes one generated job document.
type Job struct {
	Model     string
	Mode      evalmode.Mode
	Group     string
	Name      string
	Path      string
	Args      []string
	Command   string
	Submitted bool
}

// JobName returns the job name for model in group with "/" replaced by "-".
func JobName(model, group string) string {
	return strings.ReplaceAll(fmt.Sprintf("rewardbench_eval_for_%s_on_%s", model, group), "/", "-")
}

// Run validates opts, writes a job document for every selected model and
// submits it unless opts.DryRun is set. Submissions already started are not
// rolled back when a later model fails.
func Run(ctx context.Context, opts Options, lookuper envconfig.Lookuper, submitter Submitter) ([]Job, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	creds, err := LoadCredentials(ctx, lookuper)
	if err != nil {
		return nil, err
	}

	template, err := os.ReadFile(opts.Template)
	if err != nil {
		return nil, fmt.Errorf("read job template: %w", err)
	}
	entries, err := LoadEntries(opts.ConfigFile())
	if err != nil {
		return nil, err
	}
	if opts.Debug {
		logging.LogEvent("sweep configs:\n%s", pp.Sprint(entries))
	}

	if opts.Model != "" {
		entries, err = selectModel(entries, opts.Model)
		if err != nil {
			return nil, err
		}
	}

	var jobs []Job
	for _, entry := range entries {
		if opts.DPOOnly && !entry.Config.DPO {
			continue
		}
		if !opts.DPOOnly && opts.RMOnly && entry.Config.DPO {
			continue
		}

		job, err := writeJob(template, entry, opts, creds)
		if err != nil {
			return jobs, err
		}
		if !opts.DryRun {
			if err := submitter.Submit(ctx, job.Path); err != nil {
				return jobs, fmt.Errorf("submit %s: %w", job.Name, err)
			}
			job.Submitted = true
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func selectModel(entries []Entry, model string) ([]Entry, error) {
	for _, entry := range entries {
		if entry.Model == model {
			return []Entry{entry}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownModel, model)
}

func writeJob(template []byte, entry Entry, opts Options, creds Credentials) (Job, error) {
	mode := evalmode.Select(opts.BestOfN, entry.Config.DPO)
	group := mode.Group()
	if opts.PrefSets {
		group += "-pref-sets"
	}
	logging.LogEvent("Submitting evaluation for model: %s on %s", entry.Model, group)

	name := JobName(entry.Model, group)
	args := BuildArgs(opts.Launcher, entry.Model, entry.Config, mode, opts)
	command := RenderCommand(args)

	gpus := 1
	if entry.Config.NumGPUs != nil {
		gpus = *entry.Config.NumGPUs
	}

	doc, err := RenderJob(template, JobSpec{
		Name:     name,
		Image:    opts.Image,
		Cluster:  opts.Cluster,
		GPUCount: gpus,
		Token:    creds.HFToken,
		Command:  command,
	})
	if err != nil {
		return Job{}, fmt.Errorf("render job for %s: %w", entry.Model, err)
	}

	path := filepath.Join(opts.JobsDir, name+".yaml")
	if err := util.ReplaceFile(path, doc); err != nil {
		return Job{}, fmt.Errorf("write job %s: %w", path, err)
	}

	return Job{
		Model:   entry.Model,
		Mode:    mode,
		Group:   group,
		Name:    name,
		Path:    path,
		Args:    args,
		Command: command,
	}, nil
}
