package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureFlags_Defaults(t *testing.T) {
	ff := LoadFeatureFlags()

	// Pipeline guards ship enabled, the experimental scorer does not.
	assert.True(t, ff.IsEnabled(FeaturePipelineChecksumGuard, nil))
	assert.True(t, ff.IsEnabled(FeaturePipelineVerificationGate, nil))
	assert.True(t, ff.IsEnabled(FeaturePipelineDebounce, nil))
	assert.True(t, ff.IsEnabled(FeatureAPIScoreBreakdown, nil))
	assert.False(t, ff.IsEnabled(FeatureExperimentalLookupScoring, nil))

	assert.False(t, ff.IsEnabled("no.such.feature", nil))
}

func TestFeatureFlags_EnvOverride(t *testing.T) {
	t.Setenv("FEATURE_PIPELINE_DEBOUNCE", "false")
	t.Setenv("FEATURE_EXPERIMENTAL_LOOKUP_SCORING", "true")

	ff := LoadFeatureFlags()

	assert.False(t, ff.IsEnabled(FeaturePipelineDebounce, nil))
	assert.True(t, ff.IsEnabled(FeatureExperimentalLookupScoring, nil))
}

func TestFeatureFlags_PercentRolloutIsConsistent(t *testing.T) {
	ff := LoadFeatureFlags()
	require.NoError(t, ff.SetRolloutPercent(FeatureAPIScoreBreakdown, 50))

	ctx := &FeatureContext{UserID: "u-rollout"}
	first := ff.IsEnabled(FeatureAPIScoreBreakdown, ctx)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, ff.IsEnabled(FeatureAPIScoreBreakdown, ctx))
	}
}

func TestFeatureFlags_UserOverrideWins(t *testing.T) {
	ff := LoadFeatureFlags()
	require.NoError(t, ff.DisableFeature(FeatureAPIScoreBreakdown))

	ff.SetUserOverride("u-special", FeatureAPIScoreBreakdown, true)
	assert.True(t, ff.IsEnabled(FeatureAPIScoreBreakdown, &FeatureContext{UserID: "u-special"}))
	assert.False(t, ff.IsEnabled(FeatureAPIScoreBreakdown, &FeatureContext{UserID: "u-other"}))

	ff.ClearUserOverrides("u-special")
	assert.False(t, ff.IsEnabled(FeatureAPIScoreBreakdown, &FeatureContext{UserID: "u-special"}))
}

func TestFeatureFlags_RolloutPercentValidation(t *testing.T) {
	ff := LoadFeatureFlags()

	assert.ErrorIs(t, ff.SetRolloutPercent(FeatureAPIScoreBreakdown, 101), ErrInvalidRolloutPercent)
	assert.ErrorIs(t, ff.SetRolloutPercent("no.such.feature", 10), ErrFeatureNotFound)
}
