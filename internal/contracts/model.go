package contracts

import "fmt"

// ModelKind enumerates the closed set of classifiers in the ensemble.
// No dynamic plugin dispatch: the three kinds share one train/predict/
// evaluate contract and nothing else is loadable.
type ModelKind string

const (
	ModelSVM    ModelKind = "svm_rbf"
	ModelForest ModelKind = "random_forest"
	ModelBoost  ModelKind = "gradient_boost"
)

// AllModelKinds returns the ensemble members in training order
func AllModelKinds() []ModelKind {
	return []ModelKind{ModelSVM, ModelForest, ModelBoost}
}

// ParseModelKind validates a model kind string
func ParseModelKind(s string) (ModelKind, error) {
	switch ModelKind(s) {
	case ModelSVM, ModelForest, ModelBoost:
		return ModelKind(s), nil
	}
	return "", fmt.Errorf("unknown model kind: %q", s)
}

// DisplayName returns the human-readable model name used in the UI
func (k ModelKind) DisplayName() string {
	switch k {
	case ModelSVM:
		return "SVM (RBF)"
	case ModelForest:
		return "Random Forest"
	case ModelBoost:
		return "Gradient Boost"
	}
	return string(k)
}

// LabelRule enumerates the outcome-label construction rules
type LabelRule string

const (
	RulePositive  LabelRule = "positive"  // ProfitScore(t+1) > 0
	RuleMedian    LabelRule = "median"    // ProfitScore(t+1) > median over training rows
	RuleThreshold LabelRule = "threshold" // ProfitScore(t+1) > caller-supplied constant
)

// ParseLabelRule validates a label rule string
func ParseLabelRule(s string) (LabelRule, error) {
	switch LabelRule(s) {
	case RulePositive, RuleMedian, RuleThreshold:
		return LabelRule(s), nil
	}
	return "", fmt.Errorf("unknown label rule: %q", s)
}

// Prediction is one (firm, predictor year, model) output row
type Prediction struct {
	FirmID      string
	Year        int
	TargetYear  int
	Model       ModelKind
	Chance      float64 // calibrated P(label=1), in [0,1]
	PredLabel   int
	ProfitScore float64
	TrueLabel   int
}

// ModelMetrics summarizes out-of-sample performance for one model
type ModelMetrics struct {
	Accuracy  float64   `json:"accuracy"`
	Precision float64   `json:"precision"`
	Recall    float64   `json:"recall"`
	F1        float64   `json:"f1"`
	AUC       float64   `json:"auc"`
	Confusion [2][2]int `json:"confusion"` // [actual][predicted]
}

// RiskLevel buckets a predicted chance for display
type RiskLevel string

const (
	RiskHigh   RiskLevel = "High"
	RiskMedium RiskLevel = "Medium"
	RiskLow    RiskLevel = "Low"
)

// RiskBucket maps a chance to a risk level under the configured cuts
func RiskBucket(chance, highCut, lowCut float64) RiskLevel {
	if chance < highCut {
		return RiskHigh
	}
	if chance > lowCut {
		return RiskLow
	}
	return RiskMedium
}

// Rank orders risk levels for sorting: High first
func (r RiskLevel) Rank() int {
	switch r {
	case RiskHigh:
		return 0
	case RiskMedium:
		return 1
	case RiskLow:
		return 2
	}
	return 9
}
