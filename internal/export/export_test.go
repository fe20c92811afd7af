package export

import (
	"encoding/csv"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/profitpulse/backend/internal/contracts"
	"github.com/profitpulse/backend/pkg/config"
	"github.com/profitpulse/backend/pkg/logger"
)

func testWriter(t *testing.T) *Writer {
	t.Helper()
	return NewWriter(logger.New(&config.Config{LogLevel: "error", LogFormat: "json", Env: "development"}))
}

func sampleBundle() Bundle {
	return Bundle{
		CompanyView: []contracts.CompanyRow{
			{
				FirmID:      "A",
				Year:        2020,
				ProfitScore: 0.123456789012345,
				Label:       1,
				Proxies:     []float64{0.1, 0.2, 0.3, 1234.5, 0.05},
				PCs:         []float64{1.1, -0.2, 0.01},
			},
		},
		Screener: []contracts.ScreenerRow{
			{
				FirmID:      "A",
				Year:        2023,
				TargetYear:  2024,
				ProfitScore: 0.42,
				Chance:      0.61,
				Risk:        contracts.RiskLow,
				Borderline:  false,
				Reason:      "Margins hold, \"quoted\" text survives",
				ActionTip:   "Keep watching",
				Proxies:     []float64{0.1, 0.2, 0.3, 1234.5, 0.05},
			},
		},
		ScreenerYear: 2023,
		Predictions: []contracts.Prediction{
			{
				FirmID:      "A",
				Year:        2020,
				TargetYear:  2021,
				Model:       contracts.ModelBoost,
				Chance:      0.7071067811865476,
				PredLabel:   1,
				ProfitScore: 0.42,
				TrueLabel:   0,
			},
		},
		Metrics: map[contracts.ModelKind]contracts.ModelMetrics{
			contracts.ModelBoost: {Accuracy: 0.8, Precision: 0.75, Recall: 0.6, F1: 2 * 0.75 * 0.6 / 1.35, AUC: 0.83},
			contracts.ModelSVM:   {Accuracy: 1.0, AUC: math.NaN()},
		},
		Methodology: contracts.Methodology{
			FeatureColumns: contracts.ProxyColumns,
			LabelRule:      "positive",
			DefaultModel:   "gradient_boost",
			PCAK:           3,
		},
		Alerts: []contracts.AlertRow{
			{FirmID: "A", Year: 2020, Type: contracts.AlertBorderline, Message: "score near zero"},
		},
		AlertsYearFrom: 2016,
		AlertsYearTo:   2023,
	}
}

func readCSVFile(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWritePublishesAllFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "artifacts")
	require.NoError(t, testWriter(t).Write(dir, sampleBundle()))

	for _, name := range []string{
		CompanyViewFile,
		"screener_2023.csv",
		PredictionsFile,
		MetricsFile,
		MethodologyFile,
		"alerts_2016_2023.csv",
		ManifestFile,
	} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, "missing %s", name)
	}

	// staging dir must not survive
	_, err := os.Stat(dir + ".staging")
	assert.True(t, os.IsNotExist(err))
}

func TestFloatsRoundTripLossless(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "artifacts")
	b := sampleBundle()
	require.NoError(t, testWriter(t).Write(dir, b))

	rows := readCSVFile(t, filepath.Join(dir, PredictionsFile))
	require.Len(t, rows, 2)

	chance, err := strconv.ParseFloat(rows[1][4], 64)
	require.NoError(t, err)
	assert.Equal(t, b.Predictions[0].Chance, chance)

	score, err := strconv.ParseFloat(rows[1][6], 64)
	require.NoError(t, err)
	assert.Equal(t, b.Predictions[0].ProfitScore, score)
}

func TestCompanyViewHeaderIncludesComponents(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "artifacts")
	require.NoError(t, testWriter(t).Write(dir, sampleBundle()))

	rows := readCSVFile(t, filepath.Join(dir, CompanyViewFile))
	want := append([]string{"firm_id", "year", "profit_score", "label"}, contracts.ProxyColumns...)
	want = append(want, "pc1", "pc2", "pc3")
	assert.Equal(t, want, rows[0])
}

func TestScreenerQuotedTextSurvives(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "artifacts")
	b := sampleBundle()
	require.NoError(t, testWriter(t).Write(dir, b))

	rows := readCSVFile(t, filepath.Join(dir, "screener_2023.csv"))
	require.Len(t, rows, 2)
	assert.Equal(t, b.Screener[0].Reason, rows[1][7])
}

func TestMetricsNaNAUCBecomesNull(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "artifacts")
	require.NoError(t, testWriter(t).Write(dir, sampleBundle()))

	raw, err := os.ReadFile(filepath.Join(dir, MetricsFile))
	require.NoError(t, err)

	var decoded map[string]struct {
		Accuracy float64  `json:"accuracy"`
		AUC      *float64 `json:"auc"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))

	require.Contains(t, decoded, "svm_rbf")
	assert.Nil(t, decoded["svm_rbf"].AUC)
	require.Contains(t, decoded, "gradient_boost")
	require.NotNil(t, decoded["gradient_boost"].AUC)
	assert.InDelta(t, 0.83, *decoded["gradient_boost"].AUC, 1e-12)
}

func TestManifestListsEveryFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "artifacts")
	require.NoError(t, testWriter(t).Write(dir, sampleBundle()))

	raw, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	require.NoError(t, err)

	var m Manifest
	require.NoError(t, json.Unmarshal(raw, &m))

	assert.Equal(t, "gradient_boost", m.DefaultModel)
	assert.False(t, m.GeneratedAt.IsZero())
	require.Len(t, m.Files, 6)

	byName := make(map[string]int)
	for _, f := range m.Files {
		byName[f.Name] = f.Rows
	}
	assert.Equal(t, 1, byName[CompanyViewFile])
	assert.Equal(t, 1, byName["screener_2023.csv"])
	assert.Equal(t, 1, byName["alerts_2016_2023.csv"])
}

func TestWriteReplacesPreviousArtifacts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "artifacts")
	w := testWriter(t)
	require.NoError(t, w.Write(dir, sampleBundle()))

	// leave a stray file behind; a second publish must not keep it
	stray := filepath.Join(dir, "stale.csv")
	require.NoError(t, os.WriteFile(stray, []byte("old"), 0o644))

	require.NoError(t, w.Write(dir, sampleBundle()))
	_, err := os.Stat(stray)
	assert.True(t, os.IsNotExist(err))
}

func TestWriteLeavesNoSiblingDirs(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "artifacts")
	w := testWriter(t)
	require.NoError(t, w.Write(dir, sampleBundle()))
	require.NoError(t, w.Write(dir, sampleBundle()))

	for _, sibling := range []string{dir + ".staging", dir + ".old"} {
		_, err := os.Stat(sibling)
		assert.True(t, os.IsNotExist(err), sibling)
	}
}

func TestWriteKeepsPreviousSetWhenPublishBlocked(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits do not bind root")
	}

	dir := filepath.Join(t.TempDir(), "artifacts")
	w := testWriter(t)
	require.NoError(t, w.Write(dir, sampleBundle()))

	// An unremovable retired-set path blocks the publish before the
	// previous set is touched; it must survive untouched.
	old := dir + ".old"
	require.NoError(t, os.MkdirAll(old, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(old, "x"), []byte("x"), 0o644))
	require.NoError(t, os.Chmod(old, 0o555))
	t.Cleanup(func() { os.Chmod(old, 0o755) })

	err := w.Write(dir, sampleBundle())
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dir, ManifestFile))
	assert.NoError(t, statErr, "previous artifact set must still be readable")
}
