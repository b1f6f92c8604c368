package appconfig

import (
	"fmt"
	"io"
)

// ShowConfig prints the current configuration summary.
func ShowConfig(out io.Writer, file string, cfg *Config, fallback Config) {
	if file == "" {
		fmt.Fprintln(out, "No config file loaded (using defaults).")
	} else {
		fmt.Fprintf(out, "Config file: %s\n\n", file)
	}

	if cfg == nil {
		cfg = &fallback
	}

	fmt.Fprintln(out, "Current configuration:")
	fmt.Fprintf(out, "  Debug:           %v\n", cfg.Debug)
	fmt.Fprintf(out, "  Metrics:         %v\n", cfg.Metrics)
	fmt.Fprintf(out, "  Request Timeout: %s\n", cfg.RequestTimeout())
	fmt.Fprintf(out, "  Log File:        %s\n", cfg.LogFilePath())
	fmt.Fprintf(out, "  Output Dir:      %s\n", cfg.ResultsDir())
	for _, host := range cfg.Hosts {
		fmt.Fprintf(out, "  Host:            %s (%s) %s %v\n", host.Name, host.Type, host.URL, host.Models)
	}

	sweep := cfg.SweepSettings()
	fmt.Fprintln(out, "Sweep:")
	fmt.Fprintf(out, "  Template:        %s\n", sweep.Template)
	fmt.Fprintf(out, "  Configs Dir:     %s\n", sweep.ConfigsDir)
	fmt.Fprintf(out, "  Jobs Dir:        %s\n", sweep.JobsDir)
	fmt.Fprintf(out, "  Workspace:       %s\n", sweep.Workspace)
	fmt.Fprintf(out, "  Image:           %s\n", sweep.Image)
	fmt.Fprintf(out, "  Cluster:         %s\n", sweep.Cluster)
}
