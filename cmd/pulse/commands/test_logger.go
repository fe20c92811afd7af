package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/profitpulse/backend/pkg/config"
	"github.com/profitpulse/backend/pkg/logger"
)

// testLoggerCmd represents the test-logger command
var testLoggerCmd = &cobra.Command{
	Use:   "test-logger",
	Short: "Exercise the structured logger",
	Long: `Prints sample log lines in both output formats so a deployment
can verify its LOG_LEVEL / LOG_FORMAT settings.

Example:
  go run ./cmd/pulse test-logger`,
	RunE: runTestLogger,
}

func init() {
	rootCmd.AddCommand(testLoggerCmd)
}

func runTestLogger(cmd *cobra.Command, args []string) error {
	fmt.Println("=== ProfitPulse Logger Test ===")

	fmt.Println("\n1. JSON format")
	jsonLog := logger.New(&config.Config{Env: "production", LogLevel: "info", LogFormat: "json"})
	jsonLog.Info("pipeline run started")
	jsonLog.WithFields(map[string]interface{}{
		"firms": 85,
		"years": 10,
	}).Info("panel loaded")

	fmt.Println("\n2. Console format")
	consoleLog := logger.New(&config.Config{Env: "development", LogLevel: "debug", LogFormat: "console"})
	consoleLog.Debug("fit window selected")
	consoleLog.WithField("model", "gradient_boost").Info("training finished")

	fmt.Println("\n3. Error context")
	consoleLog.WithError(errors.New("missing column REV")).Error("panel rejected")

	fmt.Println("\nLogger test completed")
	return nil
}
