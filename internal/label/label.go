// Package label converts ProfitScores into binary outcome labels.
// The comparator is strictly greater-than under every rule, and the
// median/threshold reference value is fitted from training scores only:
// a Reference is produced by FitReference and consumed by Apply, never
// recomputed from the rows being labeled.
package label

import (
	"sort"

	"github.com/profitpulse/backend/internal/contracts"
)

// Reference is the fitted labeling rule: the rule name plus the
// threshold the scores are compared against.
type Reference struct {
	Rule      contracts.LabelRule
	Threshold float64
}

// FitReference computes the reference value for a rule.
//   - positive: threshold 0
//   - median: the median ProfitScore over training rows
//   - threshold: the caller-supplied constant
func FitReference(rule contracts.LabelRule, trainScores []float64, customThreshold float64) (Reference, error) {
	switch rule {
	case contracts.RulePositive:
		return Reference{Rule: rule, Threshold: 0}, nil
	case contracts.RuleMedian:
		if len(trainScores) == 0 {
			return Reference{}, &contracts.InsufficientDataError{Op: "label median", Need: 1, Got: 0}
		}
		return Reference{Rule: rule, Threshold: median(trainScores)}, nil
	case contracts.RuleThreshold:
		return Reference{Rule: rule, Threshold: customThreshold}, nil
	}
	return Reference{}, contracts.NewDataError("unknown label rule %q", rule)
}

// Label returns 1 when the score strictly exceeds the reference
// threshold, 0 otherwise. A score equal to the threshold labels 0.
func (r Reference) Label(score float64) int {
	if score > r.Threshold {
		return 1
	}
	return 0
}

// Apply labels every scored row under the fitted reference
func Apply(rows []contracts.ScoredRow, ref Reference) []contracts.ScoredRow {
	out := make([]contracts.ScoredRow, len(rows))
	for i, row := range rows {
		labeled := row
		labeled.Label = ref.Label(row.ProfitScore)
		out[i] = labeled
	}
	return out
}

// Describe returns the rule summary string recorded in the methodology
// snapshot, e.g. "ProfitScore(t+1) > 0".
func (r Reference) Describe() string {
	switch r.Rule {
	case contracts.RulePositive:
		return "ProfitScore(t+1) > 0"
	case contracts.RuleMedian:
		return "ProfitScore(t+1) > median(train)"
	case contracts.RuleThreshold:
		return "ProfitScore(t+1) > threshold"
	}
	return string(r.Rule)
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
