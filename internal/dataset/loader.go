package dataset

import (
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/profitpulse/backend/internal/contracts"
	"github.com/profitpulse/backend/pkg/logger"
)

// Required input columns. NI_P / NI_AT are special-cased: at least one
// of the two must be present.
var requiredColumns = []string{"FIRM_ID", "YEAR", "TA", "EQ_P", "SH_ISS", "EPS_B", "REV"}

// Loader reads the raw firm-year panel from a tabular file
type Loader struct {
	parValue float64
	logger   *logger.Logger
}

// NewLoader creates a new Loader
func NewLoader(parValue float64, log *logger.Logger) *Loader {
	return &Loader{
		parValue: parValue,
		logger:   log,
	}
}

// Load reads observations from an .xlsx or .csv file. Rows with a
// missing firm identifier or unparsable year are dropped; unparsable
// numeric fields become NaN and are handled downstream.
func (l *Loader) Load(path string) ([]contracts.Observation, error) {
	records, err := l.readTable(path)
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, contracts.NewDataError("input file %s has no data rows", path)
	}

	header := records[0]
	idx, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	obs := make([]contracts.Observation, 0, len(records)-1)
	dropped := 0
	for _, rec := range records[1:] {
		o, ok := parseObservation(rec, idx)
		if !ok {
			dropped++
			continue
		}
		obs = append(obs, o)
	}

	if len(obs) == 0 {
		return nil, contracts.NewDataError("input file %s contains no usable firm-year rows", path)
	}

	l.logger.WithFields(map[string]interface{}{
		"path":    path,
		"rows":    len(obs),
		"dropped": dropped,
	}).Info("Loaded raw panel")

	return obs, nil
}

// BuildProxies derives the ratio rows for all observations and returns
// only rows where every proxy is finite.
func (l *Loader) BuildProxies(obs []contracts.Observation) []contracts.ProxyRow {
	rows := make([]contracts.ProxyRow, 0, len(obs))
	incomplete := 0
	for _, o := range obs {
		p := contracts.BuildProxy(o, l.parValue)
		if !p.Complete() {
			incomplete++
			continue
		}
		rows = append(rows, p)
	}

	l.logger.WithFields(map[string]interface{}{
		"rows":       len(rows),
		"incomplete": incomplete,
	}).Info("Built proxy rows")

	return rows
}

// readTable returns all rows of the file, header first
func (l *Loader) readTable(path string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return readExcel(path)
	case ".csv":
		return readCSV(path)
	default:
		return nil, contracts.NewDataError("unsupported input format %q (want .xlsx or .csv)", filepath.Ext(path))
	}
}

func readExcel(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, contracts.WrapDataError(err, "open input file %s", path)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, contracts.NewDataError("input file %s has no sheets", path)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, contracts.WrapDataError(err, "read sheet %s", sheets[0])
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, contracts.WrapDataError(err, "open input file %s", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, contracts.WrapDataError(err, "parse csv %s", path)
	}
	return rows, nil
}

// columnIndex maps header names to positions and verifies required columns
func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToUpper(strings.TrimSpace(name))] = i
	}

	missing := make([]string, 0)
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, contracts.NewDataError("missing required columns: %s", strings.Join(missing, ", "))
	}

	_, hasNIP := idx["NI_P"]
	_, hasNIAT := idx["NI_AT"]
	if !hasNIP && !hasNIAT {
		return nil, contracts.NewDataError("need NI_P or NI_AT to compute ROA/ROE/ROC/NPM")
	}

	return idx, nil
}

func parseObservation(rec []string, idx map[string]int) (contracts.Observation, bool) {
	firm := strings.TrimSpace(cell(rec, idx, "FIRM_ID"))
	if firm == "" {
		return contracts.Observation{}, false
	}

	year, ok := parseYear(cell(rec, idx, "YEAR"))
	if !ok {
		return contracts.Observation{}, false
	}

	return contracts.Observation{
		FirmID:          firm,
		Year:            year,
		NetIncomeParent: parseNumber(cell(rec, idx, "NI_P")),
		NetIncomeTotal:  parseNumber(cell(rec, idx, "NI_AT")),
		TotalAssets:     parseNumber(cell(rec, idx, "TA")),
		Equity:          parseNumber(cell(rec, idx, "EQ_P")),
		SharesIssued:    parseNumber(cell(rec, idx, "SH_ISS")),
		EPSBasic:        parseNumber(cell(rec, idx, "EPS_B")),
		Revenue:         parseNumber(cell(rec, idx, "REV")),
		GrossProfit:     parseNumber(cell(rec, idx, "GP")),
		Price:           parseNumber(cell(rec, idx, "PRICE")),
	}, true
}

func cell(rec []string, idx map[string]int, col string) string {
	i, ok := idx[col]
	if !ok || i >= len(rec) {
		return ""
	}
	return rec[i]
}

// parseYear accepts a plain year, a numeric cell or a date form
func parseYear(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	if y, err := strconv.Atoi(s); err == nil {
		if y < 1900 || y > 2200 {
			return 0, false
		}
		return y, true
	}

	// Excel cells sometimes come through as floats
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		y := int(f)
		if y >= 1900 && y <= 2200 {
			return y, true
		}
		return 0, false
	}

	for _, layout := range []string{"2006-01-02", "01-02-06", "1/2/2006", "2006/01/02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Year(), true
		}
	}

	return 0, false
}

// parseNumber returns NaN for empty or unparsable cells
func parseNumber(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// Describe summarizes a loaded panel for logging and the methodology snapshot
func Describe(obs []contracts.Observation) (firms int, yearMin, yearMax int) {
	seen := make(map[string]struct{})
	for _, o := range obs {
		seen[o.FirmID] = struct{}{}
		if yearMin == 0 || o.Year < yearMin {
			yearMin = o.Year
		}
		if o.Year > yearMax {
			yearMax = o.Year
		}
	}
	return len(seen), yearMin, yearMax
}
