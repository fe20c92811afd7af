package model

import (
	"math"
	"math/rand"

	"github.com/profitpulse/backend/internal/contracts"
)

// boostClassifier is a stochastic gradient-boosted tree ensemble on
// logistic loss. Each round fits a shallow CART tree to the residuals
// and replaces its leaf values with a Newton step.
type boostClassifier struct {
	trees    []*tree
	baseline float64 // initial log-odds

	rounds       int
	maxDepth     int
	learningRate float64
	subsample    float64
	seed         int64
}

func newBoostClassifier(rounds, maxDepth int, learningRate, subsample float64, seed int64) *boostClassifier {
	return &boostClassifier{
		rounds:       rounds,
		maxDepth:     maxDepth,
		learningRate: learningRate,
		subsample:    subsample,
		seed:         seed,
	}
}

func (b *boostClassifier) Kind() contracts.ModelKind {
	return contracts.ModelBoost
}

func (b *boostClassifier) Train(X [][]float64, y []int) error {
	n := len(X)
	if n == 0 {
		return &contracts.InsufficientDataError{Op: "gradient_boost train", Need: 2, Got: 0}
	}

	var pos int
	for _, label := range y {
		pos += label
	}
	if pos == 0 || pos == n {
		return &contracts.InsufficientDataError{Op: "gradient_boost train: single-class labels", Need: 2, Got: 1}
	}

	p0 := float64(pos) / float64(n)
	b.baseline = math.Log(p0 / (1 - p0))

	// Raw scores accumulated over rounds
	raw := make([]float64, n)
	for i := range raw {
		raw[i] = b.baseline
	}

	residual := make([]float64, n)
	unit := make([]float64, n)
	for i := range unit {
		unit[i] = 1
	}

	rng := rand.New(rand.NewSource(b.seed))
	cfg := treeConfig{maxDepth: b.maxDepth, minLeaf: 1, mtry: 0}
	sampleSize := int(math.Max(1, math.Round(b.subsample*float64(n))))

	b.trees = make([]*tree, 0, b.rounds)
	for round := 0; round < b.rounds; round++ {
		for i := range residual {
			residual[i] = float64(y[i]) - sigmoid(raw[i])
		}

		idx := sampleWithoutReplacement(n, sampleSize, rng)
		t := fitTree(X, residual, unit, idx, cfg, rng)

		// Newton step per leaf: Σ residual / Σ p(1-p) over the round's
		// training samples in that leaf
		leafNum := map[*treeNode]float64{}
		leafDen := map[*treeNode]float64{}
		for _, i := range idx {
			leaf := t.apply(X[i])
			p := sigmoid(raw[i])
			leafNum[leaf] += residual[i]
			leafDen[leaf] += p * (1 - p)
		}
		for leaf, num := range leafNum {
			den := leafDen[leaf]
			if den < 1e-12 {
				leaf.value = 0
				continue
			}
			leaf.value = num / den
		}

		for i := range raw {
			raw[i] += b.learningRate * t.predict(X[i])
		}
		b.trees = append(b.trees, t)
	}

	return nil
}

func (b *boostClassifier) PredictProba(X [][]float64) []float64 {
	probs := make([]float64, len(X))
	for i, x := range X {
		raw := b.baseline
		for _, t := range b.trees {
			raw += b.learningRate * t.predict(x)
		}
		probs[i] = sigmoid(raw)
	}
	return probs
}

func sigmoid(v float64) float64 {
	return 1 / (1 + math.Exp(-v))
}

func sampleWithoutReplacement(n, k int, rng *rand.Rand) []int {
	perm := rng.Perm(n)
	if k >= n {
		return perm
	}
	return perm[:k]
}
