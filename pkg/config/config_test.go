package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8090", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "artifacts_profitpulse", cfg.ArtifactsDir)

	p := cfg.Pipeline
	assert.Equal(t, 0.01, p.WinsorQ)
	assert.Equal(t, 3, p.PCAK)
	assert.Equal(t, 2020, p.TrainTargetEndYear)
	assert.Equal(t, []int{2021, 2022, 2023, 2024}, p.TestTargetYears)
	assert.Equal(t, 2019, p.PreprocessFitPredYear)
	assert.Equal(t, "positive", p.LabelRule)
	assert.Equal(t, "gradient_boost", p.DefaultModel)
	assert.Equal(t, 0.40, p.RiskHighCut)
	assert.Equal(t, 0.60, p.RiskLowCut)
	assert.Equal(t, 0.10, p.BorderlineAbsP)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("LABEL_RULE", "median")
	t.Setenv("TEST_TARGET_YEARS", "2022, 2023")
	t.Setenv("WINSOR_Q", "0.05")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, "median", cfg.Pipeline.LabelRule)
	assert.Equal(t, []int{2022, 2023}, cfg.Pipeline.TestTargetYears)
	assert.Equal(t, 0.05, cfg.Pipeline.WinsorQ)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad env", "ENV", "testing"},
		{"bad label rule", "LABEL_RULE", "quantile"},
		{"bad default model", "DEFAULT_MODEL", "xgboost2"},
		{"winsor out of range", "WINSOR_Q", "0.7"},
		{"risk cuts inverted", "RISK_HIGH_CUT", "0.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_MalformedNumbersFallBack(t *testing.T) {
	t.Setenv("PCA_K", "three")
	t.Setenv("TEST_TARGET_YEARS", "2022,not-a-year")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Pipeline.PCAK)
	assert.Equal(t, []int{2021, 2022, 2023, 2024}, cfg.Pipeline.TestTargetYears)
}
