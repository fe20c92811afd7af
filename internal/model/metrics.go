package model

import (
	"math"
	"sort"

	"github.com/profitpulse/backend/internal/contracts"
)

// ComputeMetrics evaluates hard predictions and calibrated probabilities
// against the true labels. Precision, recall and F1 fall back to zero
// when their denominator is zero; AUC is NaN when only one class is
// present in the truth.
func ComputeMetrics(trueLabels, predLabels []int, probs []float64) contracts.ModelMetrics {
	var m contracts.ModelMetrics
	n := len(trueLabels)
	if n == 0 {
		m.AUC = math.NaN()
		return m
	}

	var correct int
	for i := 0; i < n; i++ {
		m.Confusion[trueLabels[i]][predLabels[i]]++
		if trueLabels[i] == predLabels[i] {
			correct++
		}
	}
	m.Accuracy = float64(correct) / float64(n)

	tp := float64(m.Confusion[1][1])
	fp := float64(m.Confusion[0][1])
	fn := float64(m.Confusion[1][0])

	if tp+fp > 0 {
		m.Precision = tp / (tp + fp)
	}
	if tp+fn > 0 {
		m.Recall = tp / (tp + fn)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}

	m.AUC = rocAUC(trueLabels, probs)
	return m
}

// rocAUC computes the area under the ROC curve by the rank statistic
// (Mann-Whitney U), averaging ranks across probability ties.
func rocAUC(trueLabels []int, probs []float64) float64 {
	n := len(trueLabels)
	var pos int
	for _, label := range trueLabels {
		pos += label
	}
	neg := n - pos
	if pos == 0 || neg == 0 {
		return math.NaN()
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		return probs[idx[a]] < probs[idx[b]]
	})

	// Ranks with tie averaging, then sum ranks of positives
	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j < n && probs[idx[j]] == probs[idx[i]] {
			j++
		}
		avg := float64(i+j+1) / 2 // ranks are 1-based
		for k := i; k < j; k++ {
			ranks[idx[k]] = avg
		}
		i = j
	}

	var rankSum float64
	for i, label := range trueLabels {
		if label == 1 {
			rankSum += ranks[i]
		}
	}

	p := float64(pos)
	return (rankSum - p*(p+1)/2) / (p * float64(neg))
}
