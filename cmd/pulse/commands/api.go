package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/profitpulse/backend/internal/api"
	"github.com/profitpulse/backend/internal/artifact"
	"github.com/profitpulse/backend/pkg/config"
	"github.com/profitpulse/backend/pkg/logger"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the read-only API server",
	Long: `Starts the REST API server over the published artifact set.

The server never touches the raw panel or the models; it serves the
exported tables and swaps to a new artifact set on /api/admin/reload.

Endpoints:
  GET  /health                - health check
  GET  /api/meta              - coverage and model metrics
  GET  /api/screener          - filtered screener table
  GET  /api/company/{id}      - one firm's history and predictions
  POST /api/compare           - side-by-side firm comparison
  GET  /api/summary           - cross-sectional statistics
  GET  /api/alerts            - exported alerts
  GET  /api/alerts/top-risk   - sharpest chance drops
  GET  /api/about             - methodology snapshot
  POST /api/admin/reload      - swap in a new artifact set
  GET  /ws                    - reload notifications

Example:
  go run ./cmd/pulse api
  go run ./cmd/pulse api --port 8090`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (overrides PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if apiPort != "" {
		cfg.Port = apiPort
	}

	log := logger.New(cfg)

	store := artifact.NewStore(cfg.ArtifactsDir, log)
	if err := store.Load(); err != nil {
		// Serve anyway; every data endpoint answers 503 until a
		// reload succeeds.
		log.WithError(err).Warn("no artifact set available at startup")
	}

	hub := api.NewHub(log)
	router := api.NewRouter(cfg, store, hub, log)
	server := api.New(cfg, log, router)

	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("Server running on http://localhost:%s\n", cfg.Port)
	fmt.Println("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	hub.Close()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
