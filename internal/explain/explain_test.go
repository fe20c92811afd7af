package explain

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/profitpulse/backend/internal/contracts"
)

func TestDefaultRulesFirstMatchWins(t *testing.T) {
	eng := Default()

	tests := []struct {
		name       string
		f          Features
		wantReason string
	}{
		{
			name:       "leverage driven roe",
			f:          Features{ZROE: 0.8, ZROA: -0.3, ZNPM: 0, DeltaZEPS: 0, DeltaZNPM: 0},
			wantReason: "High ROE looks driven by leverage rather than asset productivity.",
		},
		{
			name:       "weak core returns",
			f:          Features{ZROA: -0.6, ZROE: -0.7, ZNPM: 0, DeltaZEPS: 0, DeltaZNPM: 0},
			wantReason: "Returns on both assets and equity sit well below the cross-section.",
		},
		{
			name:       "margin level erosion",
			f:          Features{ZNPM: -0.6, DeltaZEPS: 0, DeltaZNPM: 0},
			wantReason: "Net margin is weak or eroding quickly versus last year.",
		},
		{
			name:       "margin delta erosion",
			f:          Features{ZNPM: 0.2, DeltaZNPM: -1.5, DeltaZEPS: 0},
			wantReason: "Net margin is weak or eroding quickly versus last year.",
		},
		{
			name:       "eps volatility",
			f:          Features{DeltaZEPS: -1.4, DeltaZNPM: 0},
			wantReason: "Earnings per share moved sharply against its own history.",
		},
		{
			name:       "neutral fallback",
			f:          Features{ZROA: 0.1, ZROE: 0.1, ZNPM: 0.1, DeltaZEPS: 0.1, DeltaZNPM: 0.1},
			wantReason: "Profitability profile is close to the cross-sectional average.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason, tip := eng.Explain(tt.f)
			assert.Equal(t, tt.wantReason, reason)
			assert.NotEmpty(t, tip)
		})
	}
}

func TestLeverageRuleOutranksWeakReturns(t *testing.T) {
	// z_roe 0.7 satisfies the leverage rule before the margin rule can fire
	reason, _ := Default().Explain(Features{ZROE: 0.7, ZROA: -0.9, ZNPM: -0.9})
	assert.Equal(t, "High ROE looks driven by leverage rather than asset productivity.", reason)
}

func TestNaNDeltasNeverMatch(t *testing.T) {
	// first observed year: deltas are NaN, delta rules must stay silent
	f := Features{ZNPM: 0.3, DeltaZEPS: math.NaN(), DeltaZNPM: math.NaN()}
	reason, _ := Default().Explain(f)
	assert.Equal(t, "Profitability profile is close to the cross-sectional average.", reason)
}

func TestLoadYAMLRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := `rules:
  - name: hot_streak
    all:
      - field: score
        op: gt
        value: 1.0
      - field: chance
        op: gte
        value: 0.8
    reason: Strong composite with high model confidence.
    tip: Verify the run is not a single-year spike.
default_reason: Nothing notable.
default_tip: Keep watching.
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	eng, err := Load(path)
	require.NoError(t, err)

	reason, tip := eng.Explain(Features{Score: 1.2, Chance: 0.85})
	assert.Equal(t, "Strong composite with high model confidence.", reason)
	assert.Equal(t, "Verify the run is not a single-year spike.", tip)

	reason, tip = eng.Explain(Features{Score: 0.2, Chance: 0.85})
	assert.Equal(t, "Nothing notable.", reason)
	assert.Equal(t, "Keep watching.", tip)
}

func TestLoadRejectsUnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := `rules:
  - name: bad
    all:
      - field: z_bogus
        op: gt
        value: 0
    reason: never
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := Load(path)
	assert.True(t, contracts.IsDataError(err))
}

func TestLoadRejectsEmptyRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules: []\n"), 0o644))

	_, err := Load(path)
	assert.True(t, contracts.IsDataError(err))
}

func TestFeaturesFor(t *testing.T) {
	// ProxyColumns order: x1_roa, x2_roe, x3_roc, x4_eps, x5_npm
	cur := contracts.ScoredRow{
		Z:           []float64{0.5, 0.4, 0.0, 1.0, -0.2},
		ProfitScore: 0.7,
	}
	prev := contracts.ScoredRow{
		Z: []float64{0.0, 0.0, 0.0, 0.2, 0.3},
	}

	f := FeaturesFor(cur, &prev, 0.6)
	assert.InDelta(t, 0.5, f.ZROA, 1e-12)
	assert.InDelta(t, 0.8, f.DeltaZEPS, 1e-12)
	assert.InDelta(t, -0.5, f.DeltaZNPM, 1e-12)
	assert.InDelta(t, 0.6, f.Chance, 1e-12)

	first := FeaturesFor(cur, nil, 0.6)
	assert.True(t, math.IsNaN(first.DeltaZEPS))
	assert.True(t, math.IsNaN(first.DeltaZNPM))
}
