// Package alerts scans the prediction history of the default model and
// flags year-over-year changes an analyst would want to see: risk
// bucket moves, borderline composite scores, and sharp drops in the
// predicted chance of next-year profitability.
package alerts

import (
	"fmt"
	"math"
	"sort"

	"github.com/profitpulse/backend/internal/contracts"
)

// Config holds the alert thresholds.
type Config struct {
	RiskHighCut   float64 // chance below -> High
	RiskLowCut    float64 // chance above -> Low
	BorderlineAbs float64 // |ProfitScore| below -> borderline
	ChanceDrop    float64 // prev chance minus current chance at or above -> drop
	YearFrom      int
	YearTo        int
}

// Detector builds alert rows from a prediction history.
type Detector struct {
	cfg Config
}

func NewDetector(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// Scan walks each firm's predictions in year order and emits alerts for
// predictor years inside [YearFrom, YearTo]. Output is sorted by firm,
// year, then alert type for stable exports.
func (d *Detector) Scan(preds []contracts.Prediction) []contracts.AlertRow {
	byFirm := make(map[string][]contracts.Prediction)
	for _, p := range preds {
		byFirm[p.FirmID] = append(byFirm[p.FirmID], p)
	}

	var out []contracts.AlertRow
	for firm, series := range byFirm {
		sort.Slice(series, func(i, j int) bool { return series[i].Year < series[j].Year })

		for i, cur := range series {
			if cur.Year < d.cfg.YearFrom || cur.Year > d.cfg.YearTo {
				continue
			}

			if math.Abs(cur.ProfitScore) < d.cfg.BorderlineAbs {
				out = append(out, contracts.AlertRow{
					FirmID: firm,
					Year:   cur.Year,
					Type:   contracts.AlertBorderline,
					Message: fmt.Sprintf("composite score %.3f is within %.2f of zero",
						cur.ProfitScore, d.cfg.BorderlineAbs),
				})
			}

			if i == 0 || series[i-1].Year != cur.Year-1 {
				continue // no consecutive prior year
			}
			prev := series[i-1]

			prevRisk := contracts.RiskBucket(prev.Chance, d.cfg.RiskHighCut, d.cfg.RiskLowCut)
			curRisk := contracts.RiskBucket(cur.Chance, d.cfg.RiskHighCut, d.cfg.RiskLowCut)
			if prevRisk != curRisk {
				out = append(out, contracts.AlertRow{
					FirmID: firm,
					Year:   cur.Year,
					Type:   contracts.AlertRiskChange,
					Message: fmt.Sprintf("risk moved from %s to %s (chance %.2f -> %.2f)",
						prevRisk, curRisk, prev.Chance, cur.Chance),
				})
			}

			if drop := prev.Chance - cur.Chance; drop >= d.cfg.ChanceDrop {
				out = append(out, contracts.AlertRow{
					FirmID: firm,
					Year:   cur.Year,
					Type:   contracts.AlertChanceDrop,
					Message: fmt.Sprintf("predicted chance fell %.2f points year over year (%.2f -> %.2f)",
						drop, prev.Chance, cur.Chance),
				})
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.FirmID != b.FirmID {
			return a.FirmID < b.FirmID
		}
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.Type < b.Type
	})
	return out
}
