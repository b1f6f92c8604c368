// internal/commands/show.go
package prefbench

import (
	"fmt"

	"github.com/mwiater/prefbench/internal/appconfig"
	"github.com/mwiater/prefbench/internal/results"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show configuration and saved results",
}

var showConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the current configuration",
	Run: func(cmd *cobra.Command, args []string) {
		appconfig.ShowConfig(cmd.OutOrStdout(), viper.ConfigFileUsed(), GetConfig(), appconfig.Config{})
	},
}

var showResultsCmd = &cobra.Command{
	Use:   "results <summary.json>",
	Short: "Render a saved run summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		summary, err := results.ReadSummary(args[0])
		if err != nil {
			return fmt.Errorf("read results: %w", err)
		}
		renderSummary(cmd.OutOrStdout(), summary)
		return nil
	},
}

func init() {
	showCmd.AddCommand(showConfigCmd)
	showCmd.AddCommand(showResultsCmd)
}
