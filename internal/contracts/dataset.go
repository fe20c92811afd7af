package contracts

import "math"

// ProxyColumns is the canonical feature order used everywhere a feature
// vector appears: preprocessing artifacts, PCA loadings, model inputs
// and exported views all index features in this order.
var ProxyColumns = []string{"x1_roa", "x2_roe", "x3_roc", "x4_eps", "x5_npm"}

// PrettyProxyNames maps canonical columns to display names
var PrettyProxyNames = map[string]string{
	"x1_roa": "ROA",
	"x2_roe": "ROE",
	"x3_roc": "ROC",
	"x4_eps": "EPS",
	"x5_npm": "NPM",
}

// Observation is one raw firm-year record as loaded from the input file.
// Absent numeric fields are NaN. Immutable once loaded.
type Observation struct {
	FirmID string
	Year   int

	NetIncomeParent float64 // NI_P
	NetIncomeTotal  float64 // NI_AT
	TotalAssets     float64 // TA
	Equity          float64 // EQ_P
	SharesIssued    float64 // SH_ISS
	EPSBasic        float64 // EPS_B
	Revenue         float64 // REV
	GrossProfit     float64 // GP (optional)
	Price           float64 // PRICE (optional)
}

// NetIncome returns the net income figure used for ratio construction:
// parent-company income when reported, total income otherwise.
func (o Observation) NetIncome() float64 {
	if !math.IsNaN(o.NetIncomeParent) {
		return o.NetIncomeParent
	}
	return o.NetIncomeTotal
}

// ProxyRow is an observation with its five derived financial ratios.
// Created once per observation, never mutated afterward.
type ProxyRow struct {
	FirmID string
	Year   int

	ROA float64 // net income / total assets
	ROE float64 // net income / equity
	ROC float64 // net income / paid-up capital
	EPS float64 // basic earnings per share
	NPM float64 // net income / revenue
}

// Vector returns the proxy values in ProxyColumns order
func (p ProxyRow) Vector() []float64 {
	return []float64{p.ROA, p.ROE, p.ROC, p.EPS, p.NPM}
}

// Complete reports whether all five proxies are finite
func (p ProxyRow) Complete() bool {
	for _, v := range p.Vector() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// BuildProxy derives the ratio row from a raw observation. Divisions by
// zero and non-finite results become NaN rather than propagating Inf.
func BuildProxy(o Observation, parValue float64) ProxyRow {
	ni := o.NetIncome()
	paidUpCap := o.SharesIssued * parValue

	row := ProxyRow{
		FirmID: o.FirmID,
		Year:   o.Year,
		ROA:    safeDiv(ni, o.TotalAssets),
		ROE:    safeDiv(ni, o.Equity),
		ROC:    safeDiv(ni, paidUpCap),
		EPS:    o.EPSBasic,
		NPM:    safeDiv(ni, o.Revenue),
	}
	return row
}

func safeDiv(a, b float64) float64 {
	if b == 0 || math.IsNaN(a) || math.IsNaN(b) {
		return math.NaN()
	}
	v := a / b
	if math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}

// ScoredRow is a proxy row after preprocessing and scoring: winsorized
// proxy values, standardized z-scores, principal-component values, the
// composite ProfitScore and the point-in-time label.
type ScoredRow struct {
	FirmID string
	Year   int

	Proxies     []float64 // winsorized, ProxyColumns order
	Z           []float64 // standardized, ProxyColumns order
	PCs         []float64
	ProfitScore float64
	Label       int
}

// ZFor returns the z-score for a canonical column name
func (s ScoredRow) ZFor(col string) float64 {
	for i, c := range ProxyColumns {
		if c == col && i < len(s.Z) {
			return s.Z[i]
		}
	}
	return math.NaN()
}

// PanelRow aligns year-t features with the year t+1 outcome for the same
// firm. Only rows with an existing t+1 observation carry a label.
type PanelRow struct {
	ScoredRow

	TargetYear int // Year + 1
	LabelT1    int // outcome label derived from ProfitScore(t+1)
}
