package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/profitpulse/backend/internal/artifact"
	"github.com/profitpulse/backend/internal/contracts"
	"github.com/profitpulse/backend/pkg/config"
	"github.com/profitpulse/backend/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	return logger.New(&config.Config{LogLevel: "error", LogFormat: "json", Env: "development"})
}

// writePanelCSV builds a deterministic six-firm panel over 2015-2020:
// three firms with growing profits and three with persistent losses, so
// both outcome classes appear in every year.
func writePanelCSV(t *testing.T) string {
	t.Helper()

	var b strings.Builder
	b.WriteString("FIRM_ID,YEAR,NI_P,NI_AT,TA,EQ_P,SH_ISS,EPS_B,REV\n")
	for f := 0; f < 6; f++ {
		for year := 2015; year <= 2020; year++ {
			dy := year - 2015
			var ni float64
			if f < 3 {
				ni = 100 + 15*float64(f) + 6*float64(dy)
			} else {
				ni = -(70 + 12*float64(f-3) + 5*float64(dy))
			}
			ta := 1000 + 120*float64(f) + 25*float64(dy)
			eq := 500 + 60*float64(f) + 12*float64(dy)
			sh := 40 + 5*float64(f)
			rev := 700 + 90*float64(f) + 30*float64(dy)
			eps := ni / sh
			fmt.Fprintf(&b, "F%02d,%d,%g,%g,%g,%g,%g,%g,%g\n", f, year, ni, ni, ta, eq, sh, eps, rev)
		}
	}

	path := filepath.Join(t.TempDir(), "panel.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func testConfig(t *testing.T, inputPath string) *config.Config {
	t.Helper()
	return &config.Config{
		Env:       "development",
		LogLevel:  "error",
		LogFormat: "json",
		Pipeline: config.PipelineConfig{
			InputPath:             inputPath,
			ParValue:              100,
			WinsorQ:               0.01,
			PCAK:                  3,
			TrainTargetEndYear:    2019,
			TestTargetYears:       []int{2020},
			PreprocessFitPredYear: 2018,
			MinFitRows:            2,
			LabelRule:             "positive",
			DefaultModel:          "gradient_boost",
			ProbaThreshold:        0.50,
			RiskHighCut:           0.40,
			RiskLowCut:            0.60,
			BorderlineAbsP:        0.10,
			ScreenerYear:          2019,
			AlertsYearFrom:        2016,
			AlertsYearTo:          2020,
			AlertChanceDrop:       0.15,
			Seed:                  42,
		},
		ArtifactsDir: filepath.Join(t.TempDir(), "artifacts"),
	}
}

func TestBuildEndToEnd(t *testing.T) {
	cfg := testConfig(t, writePanelCSV(t))
	runner, err := NewRunner(cfg, testLogger(t))
	require.NoError(t, err)

	res, err := runner.Build(context.Background())
	require.NoError(t, err)

	// 6 firms x 6 years scored, 6 x 5 predictor years in the panel
	assert.Len(t, res.Bundle.CompanyView, 36)
	assert.Len(t, res.Bundle.Predictions, 30*len(contracts.AllModelKinds()))
	assert.Equal(t, 24, res.TrainRows)
	assert.Equal(t, 6, res.TestRows)

	// one screener row per firm for the chosen predictor year
	require.Len(t, res.Bundle.Screener, 6)
	for _, row := range res.Bundle.Screener {
		assert.Equal(t, 2019, row.Year)
		assert.Equal(t, 2020, row.TargetYear)
		assert.GreaterOrEqual(t, row.Chance, 0.0)
		assert.LessOrEqual(t, row.Chance, 1.0)
		assert.NotEmpty(t, row.Reason)
		assert.NotEmpty(t, row.ActionTip)
	}

	// screener sorted high risk first, then ascending chance
	for i := 1; i < len(res.Bundle.Screener); i++ {
		prev, cur := res.Bundle.Screener[i-1], res.Bundle.Screener[i]
		assert.LessOrEqual(t, prev.Risk.Rank(), cur.Risk.Rank())
		if prev.Risk == cur.Risk {
			assert.LessOrEqual(t, prev.Chance, cur.Chance)
		}
	}

	require.Len(t, res.Metrics, len(contracts.AllModelKinds()))
	for kind, m := range res.Metrics {
		assert.GreaterOrEqual(t, m.Accuracy, 0.5, "accuracy for %s", kind)
	}

	// the separable panel should be forecast nearly perfectly by the trees
	assert.GreaterOrEqual(t, res.Metrics[contracts.ModelBoost].Accuracy, 0.9)

	meth := res.Bundle.Methodology
	assert.Equal(t, contracts.ProxyColumns, meth.FeatureColumns)
	assert.Equal(t, 6, meth.FirmCount)
	assert.Equal(t, 2015, meth.YearMin)
	assert.Equal(t, 2020, meth.YearMax)
	assert.Equal(t, "positive", meth.LabelRule)
	assert.Equal(t, 3, meth.PCAK)
	assert.Len(t, meth.PCAWeights, 3)
}

func TestRunPublishesLoadableArtifacts(t *testing.T) {
	cfg := testConfig(t, writePanelCSV(t))
	runner, err := NewRunner(cfg, testLogger(t))
	require.NoError(t, err)

	res, err := runner.Run(context.Background())
	require.NoError(t, err)

	snap, err := artifact.Read(cfg.ArtifactsDir)
	require.NoError(t, err)
	assert.Equal(t, res.Bundle.CompanyView, snap.CompanyView)
	assert.Equal(t, res.Bundle.Predictions, snap.Predictions)
	assert.Equal(t, 2019, snap.ScreenerYear)
}

func TestPredictionsConsistentWithThreshold(t *testing.T) {
	cfg := testConfig(t, writePanelCSV(t))
	runner, err := NewRunner(cfg, testLogger(t))
	require.NoError(t, err)

	res, err := runner.Build(context.Background())
	require.NoError(t, err)

	for _, p := range res.Bundle.Predictions {
		want := 0
		if p.Chance >= 0.50 {
			want = 1
		}
		assert.Equal(t, want, p.PredLabel)
		assert.Equal(t, p.Year+1, p.TargetYear)
	}
}

func TestStageErrorsAreTagged(t *testing.T) {
	cfg := testConfig(t, filepath.Join(t.TempDir(), "absent.csv"))
	runner, err := NewRunner(cfg, testLogger(t))
	require.NoError(t, err)

	_, err = runner.Build(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage load")
	assert.True(t, contracts.IsDataError(err))
}

func TestCancelledContextAborts(t *testing.T) {
	cfg := testConfig(t, writePanelCSV(t))
	runner, err := NewRunner(cfg, testLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = runner.Build(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBadExplainRulesPathFails(t *testing.T) {
	cfg := testConfig(t, writePanelCSV(t))
	cfg.Pipeline.ExplainRulesPath = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := NewRunner(cfg, testLogger(t))
	require.Error(t, err)
	assert.True(t, contracts.IsDataError(err))
}
