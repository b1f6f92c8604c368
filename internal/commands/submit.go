// internal/commands/submit.go
package prefbench

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mwiater/prefbench/internal/appconfig"
	"github.com/mwiater/prefbench/internal/logging"
	"github.com/mwiater/prefbench/internal/sweep"
	"github.com/spf13/cobra"
)

var (
	// runSweep and newSubmitter are swapped out in tests.
	runSweep     = sweep.Run
	newSubmitter = func(bin, workspace string) submitWaiter { return sweep.NewExecSubmitter(bin, workspace) }
)

// submitWaiter is a submitter whose started processes are awaited before exit.
type submitWaiter interface {
	sweep.Submitter
	Wait() error
}

var submitFlags struct {
	prefSets    bool
	bestOfN     bool
	image       string
	cluster     string
	uploadToHub bool
	model       string
	refFree     bool
	dpoOnly     bool
	rmOnly      bool
	template    string
	configsDir  string
	jobsDir     string
	workspace   string
	dryRun      bool
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Write and submit one cluster job per model in the sweep configs",
	Long: `Reads eval_configs.yaml (or eval_bon_configs.yaml with --eval_on_bon) from the
configs directory, renders one job document per selected model from the job
template and submits each with the cluster CLI. HF_TOKEN must be set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if cfg == nil {
			return errors.New("configuration not loaded")
		}
		opts := submitOptions(cfg)

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		submitter := newSubmitter(opts.SubmitBin, opts.Workspace)
		jobs, err := runSweep(ctx, opts, nil, submitter)
		if waitErr := submitter.Wait(); waitErr != nil {
			logging.LogEvent("submission failed: %v", waitErr)
		}
		if len(jobs) > 0 {
			renderJobs(cmd.OutOrStdout(), jobs)
		}
		return err
	},
}

func init() {
	f := submitCmd.Flags()
	f.BoolVar(&submitFlags.prefSets, "eval_on_pref_sets", false, "evaluate on the preference test sets")
	f.BoolVar(&submitFlags.bestOfN, "eval_on_bon", false, "evaluate on best-of-N sets (uses eval_bon_configs.yaml)")
	f.StringVar(&submitFlags.image, "image", "", "container image (default from config)")
	f.StringVar(&submitFlags.cluster, "cluster", "", "cluster to run on (default from config)")
	f.BoolVar(&submitFlags.uploadToHub, "upload_to_hub", true, "results are uploaded to the hub; the bare flag turns upload off (--do_not_save)")
	// Bare --upload_to_hub disables upload, as the sweep scripts always did.
	f.Lookup("upload_to_hub").NoOptDefVal = "false"
	f.StringVar(&submitFlags.model, "model", "", "submit only this model from the configs")
	f.BoolVar(&submitFlags.refFree, "ref_free", false, "run DPO models without their reference model")
	f.BoolVar(&submitFlags.dpoOnly, "eval_dpo_only", false, "submit only DPO models")
	f.BoolVar(&submitFlags.rmOnly, "eval_rm_only", false, "submit only reward models")
	f.StringVar(&submitFlags.template, "template", "", "job template (default from config)")
	f.StringVar(&submitFlags.configsDir, "configs_dir", "", "directory holding the sweep configs (default from config)")
	f.StringVar(&submitFlags.jobsDir, "jobs_dir", "", "directory job documents are written to (default from config)")
	f.StringVar(&submitFlags.workspace, "workspace", "", "cluster workspace (default from config)")
	f.BoolVar(&submitFlags.dryRun, "dry_run", false, "write job documents without submitting them")
}

// submitOptions merges the submit flags with the configured sweep settings.
func submitOptions(cfg *appconfig.Config) sweep.Options {
	settings := cfg.SweepSettings()
	return sweep.Options{
		PrefSets:    submitFlags.prefSets,
		BestOfN:     submitFlags.bestOfN,
		Image:       orConfig(submitFlags.image, settings.Image),
		Cluster:     orConfig(submitFlags.cluster, settings.Cluster),
		UploadToHub: submitFlags.uploadToHub,
		Model:       submitFlags.model,
		RefFree:     submitFlags.refFree,
		DPOOnly:     submitFlags.dpoOnly,
		RMOnly:      submitFlags.rmOnly,
		DryRun:      submitFlags.dryRun,
		Debug:       cfg.Debug,
		Template:    orConfig(submitFlags.template, settings.Template),
		ConfigsDir:  orConfig(submitFlags.configsDir, settings.ConfigsDir),
		JobsDir:     orConfig(submitFlags.jobsDir, settings.JobsDir),
		Workspace:   orConfig(submitFlags.workspace, settings.Workspace),
		Launcher:    settings.Launcher,
		SubmitBin:   settings.SubmitBin,
	}
}

func renderJobs(out io.Writer, jobs []sweep.Job) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		Headers("Model", "Group", "Job File", "Submitted")
	for _, job := range jobs {
		t.Row(job.Model, job.Group, job.Path, fmt.Sprintf("%v", job.Submitted))
	}
	fmt.Fprintln(out, t.Render())
}
