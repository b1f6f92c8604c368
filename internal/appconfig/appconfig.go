// internal/appconfig/appconfig.go
// Package appconfig manages loading and interpreting application configuration.
package appconfig

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultConfigPath is the default path to the application's configuration file.
	DefaultConfigPath = "config/config.json"
	// defaultRequestTimeout is the default timeout for inference server requests.
	defaultRequestTimeout = 600 * time.Second
	// defaultOutputDir is where run summaries are written when neither flag nor config sets one.
	defaultOutputDir = "results/"
)

// Sweep defaults mirror the layout of the evaluation repository the jobs run in.
const (
	defaultSweepTemplate   = "scripts/configs/beaker_eval.yaml"
	defaultSweepConfigsDir = "scripts/configs"
	defaultSweepJobsDir    = "beaker_configs/auto_created"
	defaultSweepWorkspace  = "ai2/rewardbench"
	defaultSweepImage      = "nathanl/rewardbench_v10"
	defaultSweepCluster    = "ai2/allennlp-cirrascale"
	defaultSweepLauncher   = "python"
	defaultSweepSubmitBin  = "beaker"
)

// Config represents the top-level application configuration.
type Config struct {
	Hosts          []Host `json:"hosts"`
	Debug          bool   `json:"debug"`
	Metrics        bool   `json:"metrics"`
	TimeoutSeconds int    `json:"timeout,omitempty" mapstructure:"timeout"`
	LogFile        string `json:"logFile,omitempty"`
	OutputDir      string `json:"outputDir,omitempty"`
	ModelConfigs   string `json:"modelConfigs,omitempty"`
	SectionsFile   string `json:"sectionsFile,omitempty"`
	MetricsFile    string `json:"metricsFile,omitempty"`
	Sweep          Sweep  `json:"sweep"`
	ConfigPath     string `json:"-"`
}

// Host represents a single inference server that can score sequences.
type Host struct {
	Name   string   `json:"name"`
	URL    string   `json:"url"`
	Type   string   `json:"type"`
	Models []string `json:"models"`
}

// Sweep holds the settings used by the job submitter.
type Sweep struct {
	Template   string `json:"template,omitempty"`
	ConfigsDir string `json:"configsDir,omitempty"`
	JobsDir    string `json:"jobsDir,omitempty"`
	Workspace  string `json:"workspace,omitempty"`
	Image      string `json:"image,omitempty"`
	Cluster    string `json:"cluster,omitempty"`
	Launcher   string `json:"launcher,omitempty"`
	SubmitBin  string `json:"submitBin,omitempty"`
}

// RequestTimeout returns the timeout duration for HTTP requests, falling back to the default if not specified.
func (c Config) RequestTimeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return defaultRequestTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LogFilePath returns the path to the application log file, applying a default if not set.
func (c Config) LogFilePath() string {
	if path := c.LogFile; strings.TrimSpace(path) != "" {
		return path
	}
	return "prefbench.log"
}

// ResultsDir returns the directory run summaries are written to.
func (c Config) ResultsDir() string {
	if dir := strings.TrimSpace(c.OutputDir); dir != "" {
		return dir
	}
	return defaultOutputDir
}

// MetricsFilePath returns where per-model request statistics are persisted.
func (c Config) MetricsFilePath() string {
	if path := strings.TrimSpace(c.MetricsFile); path != "" {
		return path
	}
	return "results/metrics/model_performance_metrics.json"
}

// SweepSettings returns the sweep settings with defaults applied to every empty field.
func (c Config) SweepSettings() Sweep {
	s := c.Sweep
	s.Template = orDefault(s.Template, defaultSweepTemplate)
	s.ConfigsDir = orDefault(s.ConfigsDir, defaultSweepConfigsDir)
	s.JobsDir = orDefault(s.JobsDir, defaultSweepJobsDir)
	s.Workspace = orDefault(s.Workspace, defaultSweepWorkspace)
	s.Image = orDefault(s.Image, defaultSweepImage)
	s.Cluster = orDefault(s.Cluster, defaultSweepCluster)
	s.Launcher = orDefault(s.Launcher, defaultSweepLauncher)
	s.SubmitBin = orDefault(s.SubmitBin, defaultSweepSubmitBin)
	return s
}

// FindHost returns the host that serves model, or the first host when none lists it.
func (c Config) FindHost(model string) (Host, error) {
	if len(c.Hosts) == 0 {
		return Host{}, errors.New("config must contain at least one host")
	}
	for _, host := range c.Hosts {
		for _, m := range host.Models {
			if m == model {
				return host, nil
			}
		}
	}
	return c.Hosts[0], nil
}

// HostByName returns the host whose name or url equals name.
func (c Config) HostByName(name string) (Host, error) {
	for _, host := range c.Hosts {
		if host.Name == name || host.URL == name {
			return host, nil
		}
	}
	return Host{}, fmt.Errorf("host %q not found in config", name)
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// Validate reports configuration that can never reach a host: a host without a url.
// A config with no hosts is valid here; commands that score check for hosts when they need one.
func (c Config) Validate() error {
	for i, host := range c.Hosts {
		if strings.TrimSpace(host.URL) == "" {
			return fmt.Errorf("host %d (%s) has no url", i, host.Name)
		}
	}
	return nil
}
