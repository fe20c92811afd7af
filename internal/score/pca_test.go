package score

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/profitpulse/backend/internal/contracts"
)

// synthRows builds standardized-looking rows with correlated features
func synthRows(n int, seed int64) []contracts.ScoredRow {
	rng := rand.New(rand.NewSource(seed))
	rows := make([]contracts.ScoredRow, n)
	for i := range rows {
		base := rng.NormFloat64()
		rows[i] = contracts.ScoredRow{
			FirmID: "F",
			Year:   2000 + i,
			Z: []float64{
				base + 0.1*rng.NormFloat64(),
				base + 0.1*rng.NormFloat64(),
				0.5*base + rng.NormFloat64(),
				rng.NormFloat64(),
				-base + 0.2*rng.NormFloat64(),
			},
		}
	}
	return rows
}

func TestFit_WeightsNormalized(t *testing.T) {
	rows := synthRows(200, 1)

	art, err := Fit(rows, contracts.ProxyColumns, 3, 2)
	require.NoError(t, err)

	require.Len(t, art.Weights, 3)
	require.Len(t, art.Components, 3)
	require.Len(t, art.Components[0], 5)

	var sum float64
	for _, w := range art.Weights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-12)

	// Components come out in descending explained-variance order
	assert.GreaterOrEqual(t, art.ExplainedVar[0], art.ExplainedVar[1])
	assert.GreaterOrEqual(t, art.ExplainedVar[1], art.ExplainedVar[2])

	// Ratios are against total variance, so k of them sum below 1
	var ratioSum float64
	for _, r := range art.ExplainedVarRatio {
		ratioSum = ratioSum + r
	}
	assert.Less(t, ratioSum, 1.0+1e-12)
}

func TestFit_SignConvention(t *testing.T) {
	rows := synthRows(100, 2)

	art, err := Fit(rows, contracts.ProxyColumns, 2, 2)
	require.NoError(t, err)

	for i, comp := range art.Components {
		maxAbs, maxVal := 0.0, 0.0
		for _, v := range comp {
			if math.Abs(v) > maxAbs {
				maxAbs, maxVal = math.Abs(v), v
			}
		}
		assert.Positive(t, maxVal, "component %d dominant loading must be positive", i)
	}
}

func TestScore_MatchesArtifactRecomputation(t *testing.T) {
	rows := synthRows(150, 3)

	art, err := Fit(rows, contracts.ProxyColumns, 3, 2)
	require.NoError(t, err)

	scored := Score(rows, art)
	require.Len(t, scored, len(rows))

	// Recomputing the score from the stored artifact must match the
	// persisted value, within floating-point tolerance.
	for _, row := range scored {
		var recomputed float64
		for i, comp := range art.Components {
			var pc float64
			for j, loading := range comp {
				pc += loading * row.Z[j]
			}
			recomputed += pc * art.Weights[i]
		}
		assert.InDelta(t, recomputed, row.ProfitScore, 1e-10)
	}
}

func TestScore_IndependentOfRowOrder(t *testing.T) {
	train := synthRows(100, 4)
	art, err := Fit(train, contracts.ProxyColumns, 3, 2)
	require.NoError(t, err)

	test := synthRows(30, 5)
	shuffled := append([]contracts.ScoredRow(nil), test...)
	rng := rand.New(rand.NewSource(6))
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	a := Score(test, art)
	b := Score(shuffled, art)

	scores := func(rows []contracts.ScoredRow) map[int]float64 {
		m := make(map[int]float64)
		for _, r := range rows {
			m[r.Year] = r.ProfitScore
		}
		return m
	}
	ma, mb := scores(a), scores(b)
	for year, s := range ma {
		assert.Equal(t, s, mb[year], "year %d", year)
	}
}

func TestFit_InsufficientRows(t *testing.T) {
	_, err := Fit(synthRows(1, 7), contracts.ProxyColumns, 3, 2)
	require.Error(t, err)
	assert.True(t, contracts.IsInsufficientData(err))
}

func TestFit_FewerRowsThanComponents(t *testing.T) {
	// Two rows pass the minimum-rows gate but can only support two
	// components; asking for three must fail typed, not panic.
	_, err := Fit(synthRows(2, 9), contracts.ProxyColumns, 3, 2)
	require.Error(t, err)
	assert.True(t, contracts.IsInsufficientData(err))
}

func TestFit_KOutOfRange(t *testing.T) {
	_, err := Fit(synthRows(50, 8), contracts.ProxyColumns, 6, 2)
	require.Error(t, err)
	assert.True(t, contracts.IsDataError(err))
}
