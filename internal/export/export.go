// Package export writes the published artifact set: the CSV tables and
// JSON documents the API serves. Files are written into a staging
// directory and moved into place with a single rename, so readers never
// observe a half-written artifact set.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/profitpulse/backend/internal/contracts"
	"github.com/profitpulse/backend/pkg/logger"
)

// Artifact file names. The screener and alerts names carry their year
// window so a directory listing shows what the set covers.
const (
	CompanyViewFile = "company_view.csv"
	PredictionsFile = "predictions_all.csv"
	MetricsFile     = "model_metrics.json"
	MethodologyFile = "methodology_snapshot.json"
	ManifestFile    = "manifest.json"
)

func ScreenerFile(year int) string {
	return fmt.Sprintf("screener_%d.csv", year)
}

func AlertsFile(from, to int) string {
	return fmt.Sprintf("alerts_%d_%d.csv", from, to)
}

// Bundle is everything one pipeline run publishes.
type Bundle struct {
	CompanyView  []contracts.CompanyRow
	Screener     []contracts.ScreenerRow
	ScreenerYear int

	Predictions []contracts.Prediction
	Metrics     map[contracts.ModelKind]contracts.ModelMetrics
	Methodology contracts.Methodology

	Alerts         []contracts.AlertRow
	AlertsYearFrom int
	AlertsYearTo   int
}

// Manifest indexes the artifact set and records when it was produced.
type Manifest struct {
	GeneratedAt  time.Time      `json:"generated_at"`
	DefaultModel string         `json:"default_model"`
	Files        []ManifestItem `json:"files"`
}

type ManifestItem struct {
	Name string `json:"name"`
	Rows int    `json:"rows"`
}

// Writer publishes artifact bundles to a directory.
type Writer struct {
	logger *logger.Logger
}

func NewWriter(log *logger.Logger) *Writer {
	return &Writer{logger: log}
}

// Write materializes the bundle under dir. All files land in a sibling
// staging directory first; only after every file is written does the
// staging directory replace dir.
func (w *Writer) Write(dir string, b Bundle) error {
	staging := dir + ".staging"
	if err := os.RemoveAll(staging); err != nil {
		return fmt.Errorf("clear staging dir: %w", err)
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	manifest := Manifest{
		GeneratedAt:  time.Now().UTC(),
		DefaultModel: b.Methodology.DefaultModel,
	}

	steps := []struct {
		name  string
		rows  int
		write func(path string) error
	}{
		{CompanyViewFile, len(b.CompanyView), func(p string) error { return writeCompanyView(p, b.CompanyView) }},
		{ScreenerFile(b.ScreenerYear), len(b.Screener), func(p string) error { return writeScreener(p, b.Screener) }},
		{PredictionsFile, len(b.Predictions), func(p string) error { return writePredictions(p, b.Predictions) }},
		{MetricsFile, len(b.Metrics), func(p string) error { return writeMetrics(p, b.Metrics) }},
		{MethodologyFile, 1, func(p string) error { return writeJSON(p, b.Methodology) }},
		{AlertsFile(b.AlertsYearFrom, b.AlertsYearTo), len(b.Alerts), func(p string) error { return writeAlerts(p, b.Alerts) }},
	}

	for _, s := range steps {
		if err := s.write(filepath.Join(staging, s.name)); err != nil {
			return fmt.Errorf("write %s: %w", s.name, err)
		}
		manifest.Files = append(manifest.Files, ManifestItem{Name: s.name, Rows: s.rows})
	}

	if err := writeJSON(filepath.Join(staging, ManifestFile), manifest); err != nil {
		return fmt.Errorf("write %s: %w", ManifestFile, err)
	}

	// Move the previous set aside instead of deleting it up front, so a
	// reader finds either the old or the new complete set and a failed
	// publish never destroys the last good run.
	old := dir + ".old"
	if err := os.RemoveAll(old); err != nil {
		return fmt.Errorf("clear old artifact dir: %w", err)
	}
	hadPrevious := true
	if err := os.Rename(dir, old); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("retire previous artifact dir: %w", err)
		}
		hadPrevious = false
	}
	if err := os.Rename(staging, dir); err != nil {
		if hadPrevious {
			if restoreErr := os.Rename(old, dir); restoreErr != nil {
				return fmt.Errorf("publish artifact dir: %w (restore failed: %v)", err, restoreErr)
			}
		}
		return fmt.Errorf("publish artifact dir: %w", err)
	}
	if err := os.RemoveAll(old); err != nil {
		return fmt.Errorf("remove retired artifact dir: %w", err)
	}

	w.logger.WithFields(map[string]interface{}{
		"dir":   dir,
		"files": len(manifest.Files),
	}).Info("artifact set published")
	return nil
}

func writeCompanyView(path string, rows []contracts.CompanyRow) error {
	header := []string{"firm_id", "year", "profit_score", "label"}
	header = append(header, contracts.ProxyColumns...)
	k := 0
	if len(rows) > 0 {
		k = len(rows[0].PCs)
	}
	for i := 1; i <= k; i++ {
		header = append(header, fmt.Sprintf("pc%d", i))
	}

	return writeCSV(path, header, len(rows), func(i int) []string {
		r := rows[i]
		rec := []string{r.FirmID, strconv.Itoa(r.Year), formatFloat(r.ProfitScore), strconv.Itoa(r.Label)}
		for _, v := range r.Proxies {
			rec = append(rec, formatFloat(v))
		}
		for _, v := range r.PCs {
			rec = append(rec, formatFloat(v))
		}
		return rec
	})
}

func writeScreener(path string, rows []contracts.ScreenerRow) error {
	header := []string{"firm_id", "year", "target_year", "profit_score", "chance", "risk", "borderline", "reason", "action_tip"}
	header = append(header, contracts.ProxyColumns...)

	return writeCSV(path, header, len(rows), func(i int) []string {
		r := rows[i]
		rec := []string{
			r.FirmID,
			strconv.Itoa(r.Year),
			strconv.Itoa(r.TargetYear),
			formatFloat(r.ProfitScore),
			formatFloat(r.Chance),
			string(r.Risk),
			strconv.FormatBool(r.Borderline),
			r.Reason,
			r.ActionTip,
		}
		for _, v := range r.Proxies {
			rec = append(rec, formatFloat(v))
		}
		return rec
	})
}

func writePredictions(path string, rows []contracts.Prediction) error {
	header := []string{"firm_id", "year", "target_year", "model", "chance", "pred_label", "profit_score", "true_label"}

	return writeCSV(path, header, len(rows), func(i int) []string {
		r := rows[i]
		return []string{
			r.FirmID,
			strconv.Itoa(r.Year),
			strconv.Itoa(r.TargetYear),
			string(r.Model),
			formatFloat(r.Chance),
			strconv.Itoa(r.PredLabel),
			formatFloat(r.ProfitScore),
			strconv.Itoa(r.TrueLabel),
		}
	})
}

func writeAlerts(path string, rows []contracts.AlertRow) error {
	header := []string{"firm_id", "year", "type", "message"}

	return writeCSV(path, header, len(rows), func(i int) []string {
		r := rows[i]
		return []string{r.FirmID, strconv.Itoa(r.Year), string(r.Type), r.Message}
	})
}

// metricsJSON mirrors ModelMetrics but tolerates a NaN AUC, which
// encoding/json cannot emit, by writing null instead.
type metricsJSON struct {
	Accuracy  float64   `json:"accuracy"`
	Precision float64   `json:"precision"`
	Recall    float64   `json:"recall"`
	F1        float64   `json:"f1"`
	AUC       *float64  `json:"auc"`
	Confusion [2][2]int `json:"confusion"`
}

func writeMetrics(path string, metrics map[contracts.ModelKind]contracts.ModelMetrics) error {
	out := make(map[contracts.ModelKind]metricsJSON, len(metrics))
	for kind, m := range metrics {
		mj := metricsJSON{
			Accuracy:  m.Accuracy,
			Precision: m.Precision,
			Recall:    m.Recall,
			F1:        m.F1,
			Confusion: m.Confusion,
		}
		if !math.IsNaN(m.AUC) {
			auc := m.AUC
			mj.AUC = &auc
		}
		out[kind] = mj
	}
	return writeJSON(path, out)
}

func writeCSV(path string, header []string, n int, record func(i int) []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := cw.Write(record(i)); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return f.Close()
}

func writeJSON(path string, v interface{}) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(raw, '\n'), 0o644)
}

// formatFloat uses the shortest representation that parses back to the
// identical float64, so CSV round-trips are lossless.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
