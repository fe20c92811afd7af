package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/profitpulse/backend/pkg/config"
	"github.com/profitpulse/backend/pkg/database"
)

// testDBCmd represents the test-db command
var testDBCmd = &cobra.Command{
	Use:   "test-db",
	Short: "Test the warehouse database connection",
	Long: `Tests the Postgres connection used by the warehouse and prints
pool statistics.

Example:
  go run ./cmd/pulse test-db`,
	RunE: runTestDB,
}

func init() {
	rootCmd.AddCommand(testDBCmd)
}

func runTestDB(cmd *cobra.Command, args []string) error {
	fmt.Println("=== ProfitPulse Database Connection Test ===")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	fmt.Printf("Config loaded (ENV: %s)\n", cfg.Env)
	fmt.Printf("Database URL: %s\n\n", maskPassword(cfg.Database.URL))

	fmt.Println("Connecting to database...")
	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	fmt.Println("Database connection established")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status, err := db.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	fmt.Println("Health check results:")
	fmt.Printf("  Healthy       : %v\n", status.Healthy)
	fmt.Printf("  Response time : %v\n", status.ResponseTime)
	fmt.Printf("  Total conns   : %d\n", status.TotalConns)
	fmt.Printf("  Idle conns    : %d\n", status.IdleConns)

	fmt.Println("\nAll checks passed")
	return nil
}

// maskPassword hides the credential part of a connection URL
func maskPassword(url string) string {
	if len(url) < 55 {
		if len(url) < 30 {
			return "***"
		}
		return url[:30] + "***"
	}
	return url[:30] + "***" + url[len(url)-25:]
}
