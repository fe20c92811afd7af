// Package artifact is the read side of the published artifact set. It
// parses the exported directory back into typed rows, validates the
// manifest, and swaps the in-memory snapshot atomically so API readers
// never see a partially loaded set.
package artifact

import (
	"encoding/csv"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/profitpulse/backend/internal/contracts"
	"github.com/profitpulse/backend/internal/export"
	"github.com/profitpulse/backend/pkg/logger"
)

// Snapshot is one fully loaded artifact set.
type Snapshot struct {
	Manifest     export.Manifest
	CompanyView  []contracts.CompanyRow
	Screener     []contracts.ScreenerRow
	ScreenerYear int
	Predictions  []contracts.Prediction
	Metrics      map[contracts.ModelKind]contracts.ModelMetrics
	Methodology  contracts.Methodology
	Alerts       []contracts.AlertRow
	LoadedAt     time.Time

	companyByFirm map[string][]contracts.CompanyRow
	predsByFirm   map[string][]contracts.Prediction
}

// Company returns the company-view time series for one firm, in the
// export's year order.
func (s *Snapshot) Company(firmID string) []contracts.CompanyRow {
	return s.companyByFirm[firmID]
}

// PredictionsFor returns every prediction row for one firm.
func (s *Snapshot) PredictionsFor(firmID string) []contracts.Prediction {
	return s.predsByFirm[firmID]
}

// FirmIDs lists the firms present in the company view, in first-seen order.
func (s *Snapshot) FirmIDs() []string {
	seen := make(map[string]bool, len(s.companyByFirm))
	var out []string
	for _, r := range s.CompanyView {
		if !seen[r.FirmID] {
			seen[r.FirmID] = true
			out = append(out, r.FirmID)
		}
	}
	return out
}

// Store holds the current snapshot behind an atomic pointer.
type Store struct {
	dir     string
	logger  *logger.Logger
	current atomic.Pointer[Snapshot]
}

func NewStore(dir string, log *logger.Logger) *Store {
	return &Store{dir: dir, logger: log}
}

// Snapshot returns the current set, or an error when nothing has been
// loaded yet.
func (st *Store) Snapshot() (*Snapshot, error) {
	s := st.current.Load()
	if s == nil {
		return nil, contracts.NewDataError("no artifact set loaded")
	}
	return s, nil
}

// Load parses the artifact directory and, on success, installs the new
// snapshot. A failed load leaves the previous snapshot in place.
func (st *Store) Load() error {
	snap, err := Read(st.dir)
	if err != nil {
		return err
	}
	st.current.Store(snap)
	st.logger.WithFields(map[string]interface{}{
		"dir":          st.dir,
		"generated_at": snap.Manifest.GeneratedAt,
		"firms":        len(snap.companyByFirm),
	}).Info("artifact snapshot loaded")
	return nil
}

// Read parses one artifact directory without touching any store.
func Read(dir string) (*Snapshot, error) {
	manifest, err := readManifest(filepath.Join(dir, export.ManifestFile))
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Manifest: manifest,
		Metrics:  make(map[contracts.ModelKind]contracts.ModelMetrics),
		LoadedAt: time.Now().UTC(),
	}

	for _, item := range manifest.Files {
		path := filepath.Join(dir, item.Name)
		if _, statErr := os.Stat(path); statErr != nil {
			return nil, contracts.NewDataError("manifest lists %s but the file is missing", item.Name)
		}

		switch {
		case item.Name == export.CompanyViewFile:
			snap.CompanyView, err = readCompanyView(path)
		case item.Name == export.PredictionsFile:
			snap.Predictions, err = readPredictions(path)
		case item.Name == export.MetricsFile:
			snap.Metrics, err = readMetrics(path)
		case item.Name == export.MethodologyFile:
			err = readJSON(path, &snap.Methodology)
		case strings.HasPrefix(item.Name, "screener_"):
			snap.ScreenerYear, err = trailingYear(item.Name, "screener_")
			if err == nil {
				snap.Screener, err = readScreener(path)
			}
		case strings.HasPrefix(item.Name, "alerts_"):
			snap.Alerts, err = readAlerts(path)
		default:
			err = contracts.NewDataError("manifest lists unknown artifact %s", item.Name)
		}
		if err != nil {
			return nil, contracts.WrapDataError(err, "load %s", item.Name)
		}
	}

	if snap.CompanyView == nil || snap.Predictions == nil || snap.Screener == nil {
		return nil, contracts.NewDataError("artifact set is incomplete: manifest misses a required table")
	}

	snap.companyByFirm = make(map[string][]contracts.CompanyRow)
	for _, r := range snap.CompanyView {
		snap.companyByFirm[r.FirmID] = append(snap.companyByFirm[r.FirmID], r)
	}
	snap.predsByFirm = make(map[string][]contracts.Prediction)
	for _, p := range snap.Predictions {
		snap.predsByFirm[p.FirmID] = append(snap.predsByFirm[p.FirmID], p)
	}
	return snap, nil
}

func readManifest(path string) (export.Manifest, error) {
	var m export.Manifest
	if err := readJSON(path, &m); err != nil {
		return m, contracts.WrapDataError(err, "read manifest")
	}
	if len(m.Files) == 0 {
		return m, contracts.NewDataError("manifest lists no files")
	}
	return m, nil
}

func readJSON(path string, v interface{}) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// readMetrics restores the NaN AUC that the writer serialized as null.
func readMetrics(path string) (map[contracts.ModelKind]contracts.ModelMetrics, error) {
	var raw map[contracts.ModelKind]struct {
		Accuracy  float64   `json:"accuracy"`
		Precision float64   `json:"precision"`
		Recall    float64   `json:"recall"`
		F1        float64   `json:"f1"`
		AUC       *float64  `json:"auc"`
		Confusion [2][2]int `json:"confusion"`
	}
	if err := readJSON(path, &raw); err != nil {
		return nil, err
	}

	out := make(map[contracts.ModelKind]contracts.ModelMetrics, len(raw))
	for kind, m := range raw {
		metrics := contracts.ModelMetrics{
			Accuracy:  m.Accuracy,
			Precision: m.Precision,
			Recall:    m.Recall,
			F1:        m.F1,
			AUC:       math.NaN(),
			Confusion: m.Confusion,
		}
		if m.AUC != nil {
			metrics.AUC = *m.AUC
		}
		out[kind] = metrics
	}
	return out, nil
}

func readCSV(path string, minCols int) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, contracts.NewDataError("empty csv file")
	}
	if len(rows[0]) < minCols {
		return nil, contracts.NewDataError("expected at least %d columns, got %d", minCols, len(rows[0]))
	}
	return rows[1:], nil
}

func readCompanyView(path string) ([]contracts.CompanyRow, error) {
	d := len(contracts.ProxyColumns)
	records, err := readCSV(path, 4+d)
	if err != nil {
		return nil, err
	}

	out := make([]contracts.CompanyRow, 0, len(records))
	for _, rec := range records {
		row := contracts.CompanyRow{FirmID: rec[0]}
		if row.Year, err = strconv.Atoi(rec[1]); err != nil {
			return nil, err
		}
		if row.ProfitScore, err = parseFloat(rec[2]); err != nil {
			return nil, err
		}
		if row.Label, err = strconv.Atoi(rec[3]); err != nil {
			return nil, err
		}
		if row.Proxies, err = parseFloats(rec[4 : 4+d]); err != nil {
			return nil, err
		}
		if row.PCs, err = parseFloats(rec[4+d:]); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

func readScreener(path string) ([]contracts.ScreenerRow, error) {
	d := len(contracts.ProxyColumns)
	records, err := readCSV(path, 9+d)
	if err != nil {
		return nil, err
	}

	out := make([]contracts.ScreenerRow, 0, len(records))
	for _, rec := range records {
		row := contracts.ScreenerRow{
			FirmID:    rec[0],
			Risk:      contracts.RiskLevel(rec[5]),
			Reason:    rec[7],
			ActionTip: rec[8],
		}
		if row.Year, err = strconv.Atoi(rec[1]); err != nil {
			return nil, err
		}
		if row.TargetYear, err = strconv.Atoi(rec[2]); err != nil {
			return nil, err
		}
		if row.ProfitScore, err = parseFloat(rec[3]); err != nil {
			return nil, err
		}
		if row.Chance, err = parseFloat(rec[4]); err != nil {
			return nil, err
		}
		if row.Borderline, err = strconv.ParseBool(rec[6]); err != nil {
			return nil, err
		}
		if row.Proxies, err = parseFloats(rec[9 : 9+d]); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

func readPredictions(path string) ([]contracts.Prediction, error) {
	records, err := readCSV(path, 8)
	if err != nil {
		return nil, err
	}

	out := make([]contracts.Prediction, 0, len(records))
	for _, rec := range records {
		p := contracts.Prediction{FirmID: rec[0]}
		if p.Year, err = strconv.Atoi(rec[1]); err != nil {
			return nil, err
		}
		if p.TargetYear, err = strconv.Atoi(rec[2]); err != nil {
			return nil, err
		}
		if p.Model, err = contracts.ParseModelKind(rec[3]); err != nil {
			return nil, err
		}
		if p.Chance, err = parseFloat(rec[4]); err != nil {
			return nil, err
		}
		if p.PredLabel, err = strconv.Atoi(rec[5]); err != nil {
			return nil, err
		}
		if p.ProfitScore, err = parseFloat(rec[6]); err != nil {
			return nil, err
		}
		if p.TrueLabel, err = strconv.Atoi(rec[7]); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func readAlerts(path string) ([]contracts.AlertRow, error) {
	records, err := readCSV(path, 4)
	if err != nil {
		return nil, err
	}

	out := make([]contracts.AlertRow, 0, len(records))
	for _, rec := range records {
		row := contracts.AlertRow{
			FirmID:  rec[0],
			Type:    contracts.AlertType(rec[2]),
			Message: rec[3],
		}
		if row.Year, err = strconv.Atoi(rec[1]); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

func parseFloat(s string) (float64, error) {
	if s == "" || s == "NaN" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := parseFloat(f)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// trailingYear extracts the first number after the prefix, e.g. 2023
// from screener_2023.csv.
func trailingYear(name, prefix string) (int, error) {
	rest := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".csv")
	rest = strings.SplitN(rest, "_", 2)[0]
	year, err := strconv.Atoi(rest)
	if err != nil {
		return 0, contracts.NewDataError("cannot parse year from artifact name %s", name)
	}
	return year, nil
}
