package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/profitpulse/backend/internal/pipeline"
	"github.com/profitpulse/backend/pkg/config"
	"github.com/profitpulse/backend/pkg/logger"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scoring pipeline once",
	Long: `Runs the full scoring pipeline and publishes a new artifact set.

Stages:
  load       - read the firm-year panel (xlsx or csv)
  preprocess - winsorize and standardize the proxies
  score      - PCA composite ProfitScore
  label      - t -> t+1 profitability labels
  train      - SVM / random forest / gradient boosting ensemble
  evaluate   - held-out test metrics
  export     - publish CSV/JSON artifacts atomically

Example:
  go run ./cmd/pulse run
  go run ./cmd/pulse run --input Data.xlsx --out artifacts_profitpulse`,
	RunE: runPipeline,
}

var (
	runInput string
	runOut   string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runInput, "input", "", "input panel file (overrides INPUT_PATH)")
	runCmd.Flags().StringVar(&runOut, "out", "", "artifact directory (overrides ARTIFACTS_DIR)")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if runInput != "" {
		cfg.Pipeline.InputPath = runInput
	}
	if runOut != "" {
		cfg.ArtifactsDir = runOut
	}

	log := logger.New(cfg)

	runner, err := pipeline.NewRunner(cfg, log)
	if err != nil {
		return fmt.Errorf("build pipeline runner: %w", err)
	}

	// Ctrl+C aborts the run before anything is published
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("pipeline run: %w", err)
	}

	fmt.Printf("Published artifact set to %s\n", cfg.ArtifactsDir)
	fmt.Printf("  company view : %d rows\n", len(result.Bundle.CompanyView))
	fmt.Printf("  screener %d  : %d rows\n", result.Bundle.ScreenerYear, len(result.Bundle.Screener))
	fmt.Printf("  predictions  : %d rows\n", len(result.Bundle.Predictions))
	fmt.Printf("  alerts       : %d rows\n", len(result.Bundle.Alerts))
	for kind, m := range result.Metrics {
		fmt.Printf("  %-14s acc=%.3f f1=%.3f auc=%.3f\n", kind, m.Accuracy, m.F1, m.AUC)
	}
	return nil
}
