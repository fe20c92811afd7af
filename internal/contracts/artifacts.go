package contracts

// Bounds holds the winsorization cutoffs for one feature
type Bounds struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// FittedPreprocess is the preprocessing artifact: per-feature winsor
// bounds and post-clip standardization parameters, computed once from
// the training partition. It is produced only by preprocess.Fit, which
// takes training rows as its sole data argument — transforming any
// partition requires this already-fitted value, so a transform can never
// recompute statistics from the rows it is given.
type FittedPreprocess struct {
	Columns  []string          `json:"columns"`
	Quantile float64           `json:"quantile"`
	Bounds   map[string]Bounds `json:"bounds"`
	Mean     []float64         `json:"mean"` // Columns order
	Std      []float64         `json:"std"`  // Columns order
	FitRows  int               `json:"fit_rows"`
}

// FittedPCA is the principal-component artifact fit on standardized
// training features. Weights are the explained-variance ratios of the
// kept components normalized to sum to 1.
type FittedPCA struct {
	Columns           []string    `json:"columns"`
	Components        [][]float64 `json:"components"` // k rows of len(Columns) loadings
	ExplainedVar      []float64   `json:"explained_var"`
	ExplainedVarRatio []float64   `json:"explained_var_ratio"` // vs total variance
	Weights           []float64   `json:"weights"`             // normalized over kept k
	FitRows           int         `json:"fit_rows"`
}

// K returns the number of kept components
func (f FittedPCA) K() int {
	return len(f.Components)
}

// Project computes the component values for one standardized row
func (f FittedPCA) Project(z []float64) []float64 {
	pcs := make([]float64, len(f.Components))
	for i, comp := range f.Components {
		var sum float64
		for j, loading := range comp {
			sum += loading * z[j]
		}
		pcs[i] = sum
	}
	return pcs
}

// CompositeScore computes the ProfitScore for projected component values
func (f FittedPCA) CompositeScore(pcs []float64) float64 {
	var score float64
	for i, w := range f.Weights {
		score += pcs[i] * w
	}
	return score
}

// Methodology is the exported "about the model" snapshot: everything a
// reader needs to know about how the artifact set was produced.
type Methodology struct {
	FeatureColumns     []string          `json:"feature_columns"`
	FirmCount          int               `json:"firm_count"`
	YearMin            int               `json:"year_min"`
	YearMax            int               `json:"year_max"`
	LabelRule          string            `json:"label_rule"`
	LabelThreshold     float64           `json:"label_threshold"`
	WinsorQuantile     float64           `json:"winsor_quantile"`
	WinsorBounds       map[string]Bounds `json:"winsor_bounds"`
	PCAK               int               `json:"pca_k"`
	PCAExplainedRatio  []float64         `json:"pca_explained_ratio"`
	PCAWeights         []float64         `json:"pca_weights"`
	FitWindowPredYear  int               `json:"fit_window_pred_year_end"`
	TrainTargetEndYear int               `json:"train_target_end_year"`
	TestTargetYears    []int             `json:"test_target_years"`
	DefaultModel       string            `json:"default_model"`
	RiskHighCut        float64           `json:"risk_high_cut"`
	RiskLowCut         float64           `json:"risk_low_cut"`
	BorderlineAbsP     float64           `json:"borderline_abs_p"`
}
