package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/profitpulse/backend/internal/artifact"
	"github.com/profitpulse/backend/internal/scheduler"
	"github.com/profitpulse/backend/pkg/config"
	"github.com/profitpulse/backend/pkg/logger"
)

// scheduleCmd represents the schedule command
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the pipeline on a cron schedule",
	Long: `Starts a daemon that reruns the scoring pipeline on a cron
schedule and republishes the artifact set after every run.

The cron expression uses six fields (with seconds), e.g.
"0 30 2 * * *" runs every day at 02:30.

Example:
  go run ./cmd/pulse schedule
  go run ./cmd/pulse schedule --cron "0 30 2 * * *" --now`,
	RunE: runSchedule,
}

var (
	scheduleCron string
	scheduleNow  bool
)

func init() {
	rootCmd.AddCommand(scheduleCmd)

	scheduleCmd.Flags().StringVar(&scheduleCron, "cron", "0 30 2 * * *", "cron expression for the refresh job")
	scheduleCmd.Flags().BoolVar(&scheduleNow, "now", false, "also run the pipeline immediately on startup")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg)
	store := artifact.NewStore(cfg.ArtifactsDir, log)

	sched := scheduler.New(log)
	job := scheduler.NewRefreshJob(cfg, store, scheduleCron, nil, log)
	if err := sched.AddJob(job); err != nil {
		return fmt.Errorf("register refresh job: %w", err)
	}

	sched.Start()
	if scheduleNow {
		if err := sched.RunNow(job.Name()); err != nil {
			return err
		}
	}

	fmt.Printf("Scheduler running, refresh at %q\n", scheduleCron)
	fmt.Println("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	sched.Stop()
	return nil
}
