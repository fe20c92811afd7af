package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/profitpulse/backend/internal/artifact"
	"github.com/profitpulse/backend/internal/warehouse"
	"github.com/profitpulse/backend/pkg/config"
	"github.com/profitpulse/backend/pkg/database"
	"github.com/profitpulse/backend/pkg/logger"
)

// warehouseCmd represents the warehouse command
var warehouseCmd = &cobra.Command{
	Use:   "warehouse",
	Short: "Postgres warehouse for the exported tables",
	Long: `Loads a published artifact set into Postgres so the exported
tables can be queried with SQL. Requires DATABASE_URL.

Subcommands:
  load  - replace the warehouse content with the current artifact set

Example:
  go run ./cmd/pulse warehouse load
  go run ./cmd/pulse warehouse load --dir artifacts_profitpulse`,
}

var warehouseLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load the current artifact set into Postgres",
	RunE:  runWarehouseLoad,
}

var warehouseDir string

func init() {
	rootCmd.AddCommand(warehouseCmd)
	warehouseCmd.AddCommand(warehouseLoadCmd)

	warehouseLoadCmd.Flags().StringVar(&warehouseDir, "dir", "", "artifact directory (overrides ARTIFACTS_DIR)")
}

func runWarehouseLoad(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if warehouseDir != "" {
		cfg.ArtifactsDir = warehouseDir
	}

	log := logger.New(cfg)

	snap, err := artifact.Read(cfg.ArtifactsDir)
	if err != nil {
		return fmt.Errorf("read artifact set: %w", err)
	}

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	loader := warehouse.NewLoader(db.Pool, log)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := loader.EnsureSchema(ctx); err != nil {
		return err
	}
	if err := loader.Load(ctx, snap); err != nil {
		return err
	}

	fmt.Printf("Warehouse loaded from %s (%d predictions, %d screener rows)\n",
		cfg.ArtifactsDir, len(snap.Predictions), len(snap.Screener))
	return nil
}
