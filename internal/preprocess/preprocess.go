// Package preprocess fits winsorization bounds and standardization
// parameters on the training window and applies them to any partition.
// The fitted artifact is the only bridge between Fit and Transform:
// Transform never recomputes a statistic from the rows it is given, so
// no statistic used to transform test data can depend on test data.
package preprocess

import (
	"math"
	"sort"

	"github.com/profitpulse/backend/internal/contracts"
)

// Fit computes per-feature winsor bounds at (q, 1-q) and the post-clip
// mean and standard deviation, from training rows only.
func Fit(trainRows []contracts.ProxyRow, columns []string, quantile float64, minRows int) (contracts.FittedPreprocess, error) {
	need := minRows
	if need < 2 {
		need = 2
	}
	if len(trainRows) < need {
		return contracts.FittedPreprocess{}, &contracts.InsufficientDataError{
			Op:   "preprocess fit",
			Need: need,
			Got:  len(trainRows),
		}
	}

	art := contracts.FittedPreprocess{
		Columns:  columns,
		Quantile: quantile,
		Bounds:   make(map[string]contracts.Bounds, len(columns)),
		Mean:     make([]float64, len(columns)),
		Std:      make([]float64, len(columns)),
		FitRows:  len(trainRows),
	}

	for ci, col := range columns {
		pos, err := columnPos(col)
		if err != nil {
			return contracts.FittedPreprocess{}, err
		}

		values := make([]float64, len(trainRows))
		for i, row := range trainRows {
			values[i] = row.Vector()[pos]
		}

		lo := quantileLinear(values, quantile)
		hi := quantileLinear(values, 1-quantile)
		art.Bounds[col] = contracts.Bounds{Lower: lo, Upper: hi}

		// Mean/std are computed after clipping, matching the transform path
		clipped := make([]float64, len(values))
		for i, v := range values {
			clipped[i] = clip(v, lo, hi)
		}
		mean, std := meanStd(clipped)
		if std == 0 {
			return contracts.FittedPreprocess{}, &contracts.InsufficientDataError{
				Op:   "preprocess fit: feature " + col + " has zero variance",
				Need: 2,
				Got:  1,
			}
		}
		art.Mean[ci] = mean
		art.Std[ci] = std
	}

	return art, nil
}

// Transform clips each feature to the fitted bounds and standardizes it
// with the fitted mean/std. Output order matches input order; the result
// carries both the winsorized proxies and the z-scores.
func Transform(rows []contracts.ProxyRow, art contracts.FittedPreprocess) ([]contracts.ScoredRow, error) {
	out := make([]contracts.ScoredRow, len(rows))
	for i, row := range rows {
		vec := row.Vector()

		proxies := make([]float64, len(art.Columns))
		z := make([]float64, len(art.Columns))
		for ci, col := range art.Columns {
			pos, err := columnPos(col)
			if err != nil {
				return nil, err
			}
			b := art.Bounds[col]
			w := clip(vec[pos], b.Lower, b.Upper)
			proxies[ci] = w
			z[ci] = (w - art.Mean[ci]) / art.Std[ci]
		}

		out[i] = contracts.ScoredRow{
			FirmID:  row.FirmID,
			Year:    row.Year,
			Proxies: proxies,
			Z:       z,
		}
	}
	return out, nil
}

func columnPos(col string) (int, error) {
	for i, c := range contracts.ProxyColumns {
		if c == col {
			return i, nil
		}
	}
	return 0, contracts.NewDataError("unknown feature column %q", col)
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// quantileLinear is the linearly interpolated sample quantile
// (position q*(n-1), the convention the bounds were published under)
func quantileLinear(values []float64, q float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}

	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// meanStd returns the mean and population standard deviation, the
// definition the standardizer was published under
func meanStd(values []float64) (float64, float64) {
	n := float64(len(values))

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / n

	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / n)
}
