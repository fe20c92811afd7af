// Package score builds the ProfitScore composite: a principal-component
// decomposition fit on standardized training features, with each kept
// component weighted by its share of explained variance.
package score

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/profitpulse/backend/internal/contracts"
)

// Fit computes the PCA artifact from standardized training rows only.
// The weight of component i is its explained variance normalized over
// the k kept components so the weights sum to 1.
func Fit(stdTrainRows []contracts.ScoredRow, columns []string, k int, minRows int) (contracts.FittedPCA, error) {
	d := len(columns)
	if k < 1 || k > d {
		return contracts.FittedPCA{}, contracts.NewDataError("pca: k=%d out of range for %d features", k, d)
	}

	need := minRows
	if need < 2 {
		need = 2
	}
	if len(stdTrainRows) < need {
		return contracts.FittedPCA{}, &contracts.InsufficientDataError{
			Op:   "pca fit",
			Need: need,
			Got:  len(stdTrainRows),
		}
	}

	n := len(stdTrainRows)
	data := make([]float64, 0, n*d)
	for _, row := range stdTrainRows {
		if len(row.Z) != d {
			return contracts.FittedPCA{}, contracts.NewDataError("pca: row %s/%d has %d features, want %d", row.FirmID, row.Year, len(row.Z), d)
		}
		data = append(data, row.Z...)
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(mat.NewDense(n, d, data), nil); !ok {
		return contracts.FittedPCA{}, &contracts.InsufficientDataError{
			Op:   "pca fit: decomposition failed",
			Need: need,
			Got:  n,
		}
	}

	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	vars := pc.VarsTo(nil)

	// The decomposition yields min(n, d) components; fewer rows than k
	// cannot support the requested dimensionality.
	if len(vars) < k {
		return contracts.FittedPCA{}, &contracts.InsufficientDataError{
			Op:   "pca fit",
			Need: k,
			Got:  len(vars),
		}
	}

	var totalVar float64
	for _, v := range vars {
		totalVar += v
	}
	if totalVar == 0 {
		return contracts.FittedPCA{}, &contracts.InsufficientDataError{
			Op:   "pca fit: zero total variance",
			Need: need,
			Got:  n,
		}
	}

	art := contracts.FittedPCA{
		Columns:           columns,
		Components:        make([][]float64, k),
		ExplainedVar:      make([]float64, k),
		ExplainedVarRatio: make([]float64, k),
		Weights:           make([]float64, k),
		FitRows:           n,
	}

	var keptVar float64
	for i := 0; i < k; i++ {
		keptVar += vars[i]
	}

	for i := 0; i < k; i++ {
		loadings := make([]float64, d)
		for j := 0; j < d; j++ {
			loadings[j] = vecs.At(j, i)
		}
		fixSign(loadings)

		art.Components[i] = loadings
		art.ExplainedVar[i] = vars[i]
		art.ExplainedVarRatio[i] = vars[i] / totalVar
		art.Weights[i] = vars[i] / keptVar
	}

	return art, nil
}

// fixSign flips a component so its largest-magnitude loading is
// positive. Eigenvectors are sign-ambiguous; pinning the sign makes
// runs reproducible across decompositions.
func fixSign(loadings []float64) {
	maxAbs, maxIdx := 0.0, 0
	for j, v := range loadings {
		if a := math.Abs(v); a > maxAbs {
			maxAbs, maxIdx = a, j
		}
	}
	if loadings[maxIdx] < 0 {
		for j := range loadings {
			loadings[j] = -loadings[j]
		}
	}
}

// Score projects each row onto the fitted components and computes the
// ProfitScore as the weighted component sum. Rows may come from any
// partition; only the artifact carries fitted state.
func Score(rows []contracts.ScoredRow, art contracts.FittedPCA) []contracts.ScoredRow {
	out := make([]contracts.ScoredRow, len(rows))
	for i, row := range rows {
		scored := row
		scored.PCs = art.Project(row.Z)
		scored.ProfitScore = art.CompositeScore(scored.PCs)
		out[i] = scored
	}
	return out
}
