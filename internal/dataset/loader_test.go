package dataset

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/profitpulse/backend/internal/contracts"
	"github.com/profitpulse/backend/pkg/config"
	"github.com/profitpulse/backend/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	return logger.New(&config.Config{LogLevel: "error", LogFormat: "json", Env: "development"})
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "panel.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validCSV = `FIRM_ID,YEAR,NI_P,NI_AT,TA,EQ_P,SH_ISS,EPS_B,REV
AAA,2018,120,110,1000,600,50,2.4,800
AAA,2019,130,120,1100,650,50,2.6,850
BBB,2018,-40,,500,200,20,-2.0,300
BBB,2019,10,,520,210,20,0.5,310
,2019,10,10,520,210,20,0.5,310
CCC,bad-year,10,10,520,210,20,0.5,310
`

func TestLoader_LoadCSV(t *testing.T) {
	loader := NewLoader(10000, testLogger(t))

	obs, err := loader.Load(writeCSV(t, validCSV))
	require.NoError(t, err)

	// Empty firm and unparsable year rows are dropped
	assert.Len(t, obs, 4)

	assert.Equal(t, "AAA", obs[0].FirmID)
	assert.Equal(t, 2018, obs[0].Year)
	assert.Equal(t, 120.0, obs[0].NetIncomeParent)

	// BBB has no NI_AT: the cell parses to NaN, NI_P is used
	assert.True(t, math.IsNaN(obs[2].NetIncomeTotal))
	assert.Equal(t, -40.0, obs[2].NetIncome())

	firms, yearMin, yearMax := Describe(obs)
	assert.Equal(t, 2, firms)
	assert.Equal(t, 2018, yearMin)
	assert.Equal(t, 2019, yearMax)
}

func TestLoader_MissingFile(t *testing.T) {
	loader := NewLoader(10000, testLogger(t))

	_, err := loader.Load(filepath.Join(t.TempDir(), "absent.csv"))
	require.Error(t, err)
	assert.True(t, contracts.IsDataError(err))
}

func TestLoader_MissingColumns(t *testing.T) {
	loader := NewLoader(10000, testLogger(t))

	path := writeCSV(t, "FIRM_ID,YEAR,NI_P,TA\nAAA,2018,120,1000\n")
	_, err := loader.Load(path)
	require.Error(t, err)
	assert.True(t, contracts.IsDataError(err))
	assert.Contains(t, err.Error(), "EQ_P")
}

func TestLoader_NeedsNetIncomeColumn(t *testing.T) {
	loader := NewLoader(10000, testLogger(t))

	path := writeCSV(t, "FIRM_ID,YEAR,TA,EQ_P,SH_ISS,EPS_B,REV\nAAA,2018,1000,600,50,2.4,800\n")
	_, err := loader.Load(path)
	require.Error(t, err)
	assert.True(t, contracts.IsDataError(err))
	assert.Contains(t, err.Error(), "NI_P or NI_AT")
}

func TestLoader_UnsupportedExtension(t *testing.T) {
	loader := NewLoader(10000, testLogger(t))

	path := filepath.Join(t.TempDir(), "panel.parquet")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	_, err := loader.Load(path)
	require.Error(t, err)
	assert.True(t, contracts.IsDataError(err))
}

func TestLoader_BuildProxies(t *testing.T) {
	loader := NewLoader(10, testLogger(t))

	obs := []contracts.Observation{
		{FirmID: "AAA", Year: 2018, NetIncomeParent: 120, TotalAssets: 1000, Equity: 600, SharesIssued: 50, EPSBasic: 2.4, Revenue: 800},
		// Zero revenue: NPM is NaN, row excluded
		{FirmID: "BBB", Year: 2018, NetIncomeParent: 10, TotalAssets: 100, Equity: 50, SharesIssued: 5, EPSBasic: 1, Revenue: 0},
	}

	rows := loader.BuildProxies(obs)
	require.Len(t, rows, 1)
	assert.Equal(t, "AAA", rows[0].FirmID)
	assert.InDelta(t, 0.12, rows[0].ROA, 1e-12)
}

func TestParseYear(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"2020", 2020, true},
		{" 2020 ", 2020, true},
		{"2020.0", 2020, true},
		{"2020-12-31", 2020, true},
		{"12/31/2020", 2020, true},
		{"1/2/2021", 2021, true},
		{"", 0, false},
		{"n/a", 0, false},
		{"999999", 0, false},
	}

	for _, tt := range tests {
		got, ok := parseYear(tt.in)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("parseYear(%q) = (%d, %v), want (%d, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
