package model

import (
	"math"
	"math/rand"

	"github.com/profitpulse/backend/internal/contracts"
)

// forestClassifier is a bagged ensemble of CART trees with balanced
// class weights and per-node feature subsampling.
type forestClassifier struct {
	trees []*tree

	numTrees int
	minLeaf  int
	seed     int64
}

func newForestClassifier(numTrees, minLeaf int, seed int64) *forestClassifier {
	return &forestClassifier{
		numTrees: numTrees,
		minLeaf:  minLeaf,
		seed:     seed,
	}
}

func (f *forestClassifier) Kind() contracts.ModelKind {
	return contracts.ModelForest
}

func (f *forestClassifier) Train(X [][]float64, y []int) error {
	n := len(X)
	if n == 0 {
		return &contracts.InsufficientDataError{Op: "random_forest train", Need: 2, Got: 0}
	}

	classWeight := balancedClassWeights(y)

	target := make([]float64, n)
	weight := make([]float64, n)
	for i, label := range y {
		target[i] = float64(label)
		weight[i] = classWeight[label]
	}

	d := len(X[0])
	mtry := int(math.Max(1, math.Floor(math.Sqrt(float64(d)))))

	rng := rand.New(rand.NewSource(f.seed))
	cfg := treeConfig{maxDepth: 0, minLeaf: f.minLeaf, mtry: mtry}

	f.trees = make([]*tree, f.numTrees)
	for t := 0; t < f.numTrees; t++ {
		// Bootstrap sample with replacement
		idx := make([]int, n)
		for i := range idx {
			idx[i] = rng.Intn(n)
		}
		f.trees[t] = fitTree(X, target, weight, idx, cfg, rng)
	}

	return nil
}

func (f *forestClassifier) PredictProba(X [][]float64) []float64 {
	probs := make([]float64, len(X))
	for i, x := range X {
		var sum float64
		for _, t := range f.trees {
			sum += t.predict(x)
		}
		probs[i] = sum / float64(len(f.trees))
	}
	return probs
}

// balancedClassWeights gives each class weight n / (2 * count(class)),
// so both classes contribute equally regardless of imbalance.
func balancedClassWeights(y []int) map[int]float64 {
	counts := map[int]int{}
	for _, label := range y {
		counts[label]++
	}

	n := float64(len(y))
	weights := make(map[int]float64, len(counts))
	for label, c := range counts {
		weights[label] = n / (2 * float64(c))
	}
	// A missing class never appears in training rows, so its weight is
	// irrelevant; default to 1 for safety.
	for _, label := range []int{0, 1} {
		if _, ok := weights[label]; !ok {
			weights[label] = 1
		}
	}
	return weights
}
