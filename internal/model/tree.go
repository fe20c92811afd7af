package model

import (
	"math/rand"
	"sort"
)

// treeConfig controls CART growth
type treeConfig struct {
	maxDepth int
	minLeaf  int // minimum samples per side of a split
	mtry     int // features considered per node; 0 means all
}

// treeNode is one node of a fitted CART tree. Leaves carry the weighted
// mean of their targets; for 0/1 targets with class weights that mean
// is the leaf's class-1 probability.
type treeNode struct {
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
	value     float64
	leaf      bool
}

// tree is a weighted least-squares CART tree. For binary 0/1 targets,
// minimizing weighted squared error picks the same splits as Gini
// impurity (both reduce to p(1-p) per side), so one implementation
// serves the forest's classification trees and the booster's
// residual-regression trees.
type tree struct {
	root *treeNode
	cfg  treeConfig
}

// fitTree grows a tree on the sample set given by idx
func fitTree(X [][]float64, target, weight []float64, idx []int, cfg treeConfig, rng *rand.Rand) *tree {
	t := &tree{cfg: cfg}
	t.root = t.build(X, target, weight, idx, 0, rng)
	return t
}

func (t *tree) build(X [][]float64, target, weight []float64, idx []int, depth int, rng *rand.Rand) *treeNode {
	node := &treeNode{value: weightedMean(target, weight, idx), leaf: true}

	if len(idx) < 2*t.cfg.minLeaf {
		return node
	}
	if t.cfg.maxDepth > 0 && depth >= t.cfg.maxDepth {
		return node
	}
	if pureTargets(target, idx) {
		return node
	}

	feature, threshold, ok := t.bestSplit(X, target, weight, idx, rng)
	if !ok {
		return node
	}

	var leftIdx, rightIdx []int
	for _, i := range idx {
		if X[i][feature] <= threshold {
			leftIdx = append(leftIdx, i)
		} else {
			rightIdx = append(rightIdx, i)
		}
	}
	if len(leftIdx) < t.cfg.minLeaf || len(rightIdx) < t.cfg.minLeaf {
		return node
	}

	node.leaf = false
	node.feature = feature
	node.threshold = threshold
	node.left = t.build(X, target, weight, leftIdx, depth+1, rng)
	node.right = t.build(X, target, weight, rightIdx, depth+1, rng)
	return node
}

// bestSplit scans candidate features for the split minimizing weighted
// within-node squared error. Candidate thresholds are midpoints between
// consecutive distinct sorted values.
func (t *tree) bestSplit(X [][]float64, target, weight []float64, idx []int, rng *rand.Rand) (int, float64, bool) {
	d := len(X[idx[0]])
	features := make([]int, d)
	for i := range features {
		features[i] = i
	}
	if t.cfg.mtry > 0 && t.cfg.mtry < d {
		rng.Shuffle(d, func(i, j int) { features[i], features[j] = features[j], features[i] })
		features = features[:t.cfg.mtry]
	}

	bestScore := parentSSE(target, weight, idx)
	bestFeature, bestThreshold := -1, 0.0
	improved := false

	order := append([]int(nil), idx...)
	for _, f := range features {
		sort.Slice(order, func(a, b int) bool { return X[order[a]][f] < X[order[b]][f] })

		// Sweep split points with running sums on each side
		var wL, wtL, wttL float64
		wR, wtR, wttR := sums(target, weight, order)

		for k := 0; k < len(order)-1; k++ {
			i := order[k]
			w, tv := weight[i], target[i]
			wL += w
			wtL += w * tv
			wttL += w * tv * tv
			wR -= w
			wtR -= w * tv
			wttR -= w * tv * tv

			if X[order[k]][f] == X[order[k+1]][f] {
				continue
			}
			if k+1 < t.cfg.minLeaf || len(order)-(k+1) < t.cfg.minLeaf {
				continue
			}
			if wL <= 0 || wR <= 0 {
				continue
			}

			// SSE = Σw·t² − (Σw·t)²/Σw on each side
			score := (wttL - wtL*wtL/wL) + (wttR - wtR*wtR/wR)
			if score < bestScore-1e-12 {
				bestScore = score
				bestFeature = f
				bestThreshold = (X[order[k]][f] + X[order[k+1]][f]) / 2
				improved = true
			}
		}
	}

	return bestFeature, bestThreshold, improved
}

// predict returns the leaf value for one sample
func (t *tree) predict(x []float64) float64 {
	node := t.root
	for !node.leaf {
		if x[node.feature] <= node.threshold {
			node = node.left
		} else {
			node = node.right
		}
	}
	return node.value
}

// apply returns the leaf node a sample falls into, for leaf-wise updates
func (t *tree) apply(x []float64) *treeNode {
	node := t.root
	for !node.leaf {
		if x[node.feature] <= node.threshold {
			node = node.left
		} else {
			node = node.right
		}
	}
	return node
}

func weightedMean(target, weight []float64, idx []int) float64 {
	var sw, swt float64
	for _, i := range idx {
		sw += weight[i]
		swt += weight[i] * target[i]
	}
	if sw == 0 {
		return 0
	}
	return swt / sw
}

func pureTargets(target []float64, idx []int) bool {
	first := target[idx[0]]
	for _, i := range idx[1:] {
		if target[i] != first {
			return false
		}
	}
	return true
}

func parentSSE(target, weight []float64, idx []int) float64 {
	sw, swt, swtt := sums(target, weight, idx)
	if sw == 0 {
		return 0
	}
	return swtt - swt*swt/sw
}

func sums(target, weight []float64, idx []int) (sw, swt, swtt float64) {
	for _, i := range idx {
		w, tv := weight[i], target[i]
		sw += w
		swt += w * tv
		swtt += w * tv * tv
	}
	return sw, swt, swtt
}
