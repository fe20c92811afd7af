package warehouse

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/profitpulse/backend/internal/artifact"
	"github.com/profitpulse/backend/internal/contracts"
	"github.com/profitpulse/backend/internal/export"
	"github.com/profitpulse/backend/pkg/config"
	"github.com/profitpulse/backend/pkg/logger"
)

// Integration test; set TEST_DATABASE_URL to run it.
func TestLoader_Load(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	defer pool.Close()

	log := logger.New(&config.Config{LogLevel: "error", LogFormat: "json", Env: "development"})
	loader := NewLoader(pool, log)
	require.NoError(t, loader.EnsureSchema(ctx))

	snap := &artifact.Snapshot{
		Manifest: export.Manifest{GeneratedAt: time.Now().UTC(), DefaultModel: string(contracts.ModelBoost)},
		CompanyView: []contracts.CompanyRow{
			{FirmID: "AAA", Year: 2023, ProfitScore: 1.2, Label: 1, Proxies: []float64{0.1, 0.2, 0.05, 1.5, 0.08}},
		},
		Predictions: []contracts.Prediction{
			{FirmID: "AAA", Year: 2023, TargetYear: 2024, Model: contracts.ModelBoost, Chance: 0.7, PredLabel: 1, ProfitScore: 1.2, TrueLabel: 1},
		},
		Screener: []contracts.ScreenerRow{
			{FirmID: "AAA", Year: 2023, TargetYear: 2024, ProfitScore: 1.2, Chance: 0.7, Risk: contracts.RiskLow, Reason: "r", ActionTip: "t"},
		},
		Alerts: []contracts.AlertRow{
			{FirmID: "AAA", Year: 2023, Type: contracts.AlertBorderline, Message: "m"},
		},
		Metrics: map[contracts.ModelKind]contracts.ModelMetrics{
			contracts.ModelBoost: {Accuracy: 0.9, Precision: 0.9, Recall: 0.8, F1: 0.85, AUC: 0.92},
		},
	}

	require.NoError(t, loader.Load(ctx, snap))
	// a second load replaces, not accumulates
	require.NoError(t, loader.Load(ctx, snap))

	var n int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM analytics.predictions`).Scan(&n))
	assert.Equal(t, 1, n)
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM analytics.model_metrics`).Scan(&n))
	assert.Equal(t, 1, n)
}
