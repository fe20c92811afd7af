package scheduler

import (
	"context"
	"fmt"

	"github.com/profitpulse/backend/internal/artifact"
	"github.com/profitpulse/backend/internal/pipeline"
	"github.com/profitpulse/backend/pkg/config"
	"github.com/profitpulse/backend/pkg/logger"
)

// RefreshJob reruns the scoring pipeline and swaps the API's snapshot
// to the freshly published artifact set.
type RefreshJob struct {
	cfg      *config.Config
	store    *artifact.Store
	logger   *logger.Logger
	schedule string

	// onSwap runs after the new snapshot is installed, e.g. to notify
	// websocket subscribers or reload the warehouse.
	onSwap func(*artifact.Snapshot)
}

func NewRefreshJob(cfg *config.Config, store *artifact.Store, schedule string, onSwap func(*artifact.Snapshot), log *logger.Logger) *RefreshJob {
	return &RefreshJob{
		cfg:      cfg,
		store:    store,
		logger:   log,
		schedule: schedule,
		onSwap:   onSwap,
	}
}

func (j *RefreshJob) Name() string     { return "artifact_refresh" }
func (j *RefreshJob) Schedule() string { return j.schedule }

func (j *RefreshJob) Run(ctx context.Context) error {
	runner, err := pipeline.NewRunner(j.cfg, j.logger)
	if err != nil {
		return fmt.Errorf("build pipeline runner: %w", err)
	}

	result, err := runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("pipeline run: %w", err)
	}
	j.logger.WithFields(map[string]interface{}{
		"company_view": len(result.Bundle.CompanyView),
		"predictions":  len(result.Bundle.Predictions),
	}).Info("artifact set refreshed")

	if j.store == nil {
		return nil
	}
	if err := j.store.Load(); err != nil {
		return fmt.Errorf("reload artifact snapshot: %w", err)
	}
	if j.onSwap != nil {
		snap, err := j.store.Snapshot()
		if err != nil {
			return err
		}
		j.onSwap(snap)
	}
	return nil
}
