package commands

import (
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pulse",
	Short: "ProfitPulse - listed-firm profitability scoring",
	Long: `ProfitPulse Unified CLI

Offline scoring pipeline plus a read-only REST API. The pipeline turns a
firm-year financial panel into a composite ProfitScore, next-year
profitability predictions and a published artifact set; the API serves
those artifacts.

Usage:
  go run ./cmd/pulse [command]

Examples:
  go run ./cmd/pulse run
  go run ./cmd/pulse api
  go run ./cmd/pulse schedule --cron "0 30 2 * * *"
  go run ./cmd/pulse warehouse load`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}
