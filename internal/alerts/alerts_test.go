package alerts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/profitpulse/backend/internal/contracts"
)

func testConfig() Config {
	return Config{
		RiskHighCut:   0.40,
		RiskLowCut:    0.60,
		BorderlineAbs: 0.10,
		ChanceDrop:    0.15,
		YearFrom:      2016,
		YearTo:        2023,
	}
}

func pred(firm string, year int, chance, score float64) contracts.Prediction {
	return contracts.Prediction{
		FirmID:      firm,
		Year:        year,
		TargetYear:  year + 1,
		Model:       contracts.ModelBoost,
		Chance:      chance,
		ProfitScore: score,
	}
}

func typesOf(rows []contracts.AlertRow) []contracts.AlertType {
	out := make([]contracts.AlertType, len(rows))
	for i, r := range rows {
		out[i] = r.Type
	}
	return out
}

func TestRiskChangeAlert(t *testing.T) {
	d := NewDetector(testConfig())

	rows := d.Scan([]contracts.Prediction{
		pred("A", 2018, 0.70, 1.0), // Low risk
		pred("A", 2019, 0.63, 1.0), // still Low, no alert
		pred("A", 2020, 0.50, 1.0), // Low -> Medium
	})

	require.Len(t, rows, 1)
	assert.Equal(t, contracts.AlertRiskChange, rows[0].Type)
	assert.Equal(t, "A", rows[0].FirmID)
	assert.Equal(t, 2020, rows[0].Year)
	assert.Contains(t, rows[0].Message, "Low")
	assert.Contains(t, rows[0].Message, "Medium")
}

func TestBorderlineAlert(t *testing.T) {
	d := NewDetector(testConfig())

	rows := d.Scan([]contracts.Prediction{
		pred("B", 2019, 0.55, 0.05),  // borderline
		pred("B", 2020, 0.55, -0.09), // borderline
		pred("B", 2021, 0.55, 0.10),  // exactly at cut, not borderline
	})

	require.Len(t, rows, 2)
	assert.Equal(t, []contracts.AlertType{contracts.AlertBorderline, contracts.AlertBorderline}, typesOf(rows))
	assert.Equal(t, 2019, rows[0].Year)
	assert.Equal(t, 2020, rows[1].Year)
}

func TestChanceDropAlert(t *testing.T) {
	d := NewDetector(testConfig())

	rows := d.Scan([]contracts.Prediction{
		pred("C", 2019, 0.80, 1.0),
		pred("C", 2020, 0.65, 1.0), // drop exactly 0.15 -> alert
		pred("C", 2021, 0.55, 1.0), // drop 0.10 -> no alert, but Low -> Medium
	})

	require.Len(t, rows, 2)
	assert.Equal(t, contracts.AlertChanceDrop, rows[0].Type)
	assert.Equal(t, 2020, rows[0].Year)
	assert.Equal(t, contracts.AlertRiskChange, rows[1].Type)
	assert.Equal(t, 2021, rows[1].Year)
}

func TestGapYearsBreakComparisons(t *testing.T) {
	d := NewDetector(testConfig())

	// 2018 then 2021: not consecutive, no year-over-year alerts
	rows := d.Scan([]contracts.Prediction{
		pred("D", 2018, 0.90, 1.0),
		pred("D", 2021, 0.20, 1.0),
	})
	assert.Empty(t, rows)
}

func TestYearWindowFilters(t *testing.T) {
	cfg := testConfig()
	cfg.YearFrom, cfg.YearTo = 2020, 2020
	d := NewDetector(cfg)

	rows := d.Scan([]contracts.Prediction{
		pred("E", 2019, 0.90, 0.01), // outside window
		pred("E", 2020, 0.20, 0.01), // inside: borderline + risk change + chance drop
		pred("E", 2021, 0.90, 0.01), // outside window
	})

	require.Len(t, rows, 3)
	for _, r := range rows {
		assert.Equal(t, 2020, r.Year)
	}
}

func TestScanOutputSorted(t *testing.T) {
	d := NewDetector(testConfig())

	rows := d.Scan([]contracts.Prediction{
		pred("Z", 2019, 0.55, 0.05),
		pred("A", 2019, 0.55, 0.05),
		pred("A", 2018, 0.55, 0.05),
	})

	require.Len(t, rows, 3)
	assert.Equal(t, "A", rows[0].FirmID)
	assert.Equal(t, 2018, rows[0].Year)
	assert.Equal(t, "A", rows[1].FirmID)
	assert.Equal(t, "Z", rows[2].FirmID)
}
