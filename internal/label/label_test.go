package label

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/profitpulse/backend/internal/contracts"
)

func TestPositiveRule(t *testing.T) {
	ref, err := FitReference(contracts.RulePositive, nil, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, ref.Label(0.37))
	assert.Equal(t, 0, ref.Label(-0.02))
	assert.Equal(t, 0, ref.Label(0)) // strict comparator
}

func TestMedianRule_StrictComparator(t *testing.T) {
	// Training median = 0.10
	trainScores := []float64{-0.3, 0.05, 0.10, 0.15, 0.4}
	ref, err := FitReference(contracts.RuleMedian, trainScores, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.10, ref.Threshold)

	assert.Equal(t, 0, ref.Label(0.10)) // equal to median labels 0
	assert.Equal(t, 1, ref.Label(0.11))
	assert.Equal(t, 0, ref.Label(0.09))
}

func TestMedianRule_EvenCount(t *testing.T) {
	ref, err := FitReference(contracts.RuleMedian, []float64{1, 2, 3, 4}, 0)
	require.NoError(t, err)
	assert.Equal(t, 2.5, ref.Threshold)
}

func TestMedianRule_NoTrainingScores(t *testing.T) {
	_, err := FitReference(contracts.RuleMedian, nil, 0)
	require.Error(t, err)
	assert.True(t, contracts.IsInsufficientData(err))
}

func TestThresholdRule(t *testing.T) {
	ref, err := FitReference(contracts.RuleThreshold, nil, 0.25)
	require.NoError(t, err)

	assert.Equal(t, 1, ref.Label(0.26))
	assert.Equal(t, 0, ref.Label(0.25))
	assert.Equal(t, 0, ref.Label(-1))
}

func TestUnknownRule(t *testing.T) {
	_, err := FitReference(contracts.LabelRule("quantile"), nil, 0)
	require.Error(t, err)
	assert.True(t, contracts.IsDataError(err))
}

func TestApply(t *testing.T) {
	rows := []contracts.ScoredRow{
		{FirmID: "AAA", Year: 2020, ProfitScore: 0.5},
		{FirmID: "BBB", Year: 2020, ProfitScore: -0.5},
		{FirmID: "CCC", Year: 2020, ProfitScore: 0},
	}

	ref, err := FitReference(contracts.RulePositive, nil, 0)
	require.NoError(t, err)

	labeled := Apply(rows, ref)
	require.Len(t, labeled, 3)
	assert.Equal(t, 1, labeled[0].Label)
	assert.Equal(t, 0, labeled[1].Label)
	assert.Equal(t, 0, labeled[2].Label)

	// Input rows are not mutated
	assert.Equal(t, 0, rows[0].Label)
}
