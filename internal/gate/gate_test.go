package gate

import (
	"testing"

	"github.com/driftboard/driftboard/internal/agile"
	"github.com/driftboard/driftboard/pkg/board"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrumConfig(t *testing.T) *board.AgileConfig {
	t.Helper()
	cfg, err := agile.Resolve("scrum", nil)
	require.NoError(t, err)
	return &cfg
}

func basicConfig(t *testing.T) *board.AgileConfig {
	t.Helper()
	cfg, err := agile.Resolve("basic", nil)
	require.NoError(t, err)
	return &cfg
}

func TestRequireFeature(t *testing.T) {
	scrum := scrumConfig(t)
	basic := basicConfig(t)

	require.NoError(t, RequireFeature(scrum, board.FeatureSprints, "sprint.start"))

	err := RequireFeature(basic, board.FeatureSprints, "sprint.start")
	require.Error(t, err)

	var disabled *board.FeatureDisabledError
	require.ErrorAs(t, err, &disabled)
	assert.Equal(t, "sprint.start", disabled.Operation)
	assert.Equal(t, board.FeatureSprints, disabled.Feature)
}

func TestRequireFeature_NilConfigDisablesEverything(t *testing.T) {
	for _, f := range board.AllFeatures {
		err := RequireFeature(nil, f, "op")
		assert.Error(t, err, "feature %s should be disabled under nil config", f)
	}
}

func TestRequireFeatures_Conjunction(t *testing.T) {
	scrum := scrumConfig(t)

	require.NoError(t, RequireFeatures(scrum, []board.Feature{board.FeatureSprints, board.FeatureStoryPoints}, "burndown.view"))

	err := RequireFeatures(scrum, []board.Feature{board.FeatureSprints, board.FeatureEpics}, "epic.assign")
	require.Error(t, err)

	var disabled *board.FeatureDisabledError
	require.ErrorAs(t, err, &disabled)
	assert.Equal(t, board.FeatureEpics, disabled.Feature)
}

func TestValidateStoryPoints(t *testing.T) {
	scrum := scrumConfig(t)

	require.NoError(t, ValidateStoryPoints(scrum, 5))
	require.NoError(t, ValidateStoryPoints(scrum, 89))

	// Exact membership, not range containment.
	err := ValidateStoryPoints(scrum, 4)
	require.Error(t, err)

	var invalid *board.InvalidStoryPointsError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, float64(4), invalid.Points)

	assert.Error(t, ValidateStoryPoints(nil, 5))
}

func TestValidateFeatureDependencies(t *testing.T) {
	tests := []struct {
		name      string
		features  board.Features
		feature   board.Feature
		wantUnmet []board.Feature
	}{
		{
			name:     "sprints with story points met",
			features: board.Features{StoryPoints: true},
			feature:  board.FeatureSprints,
		},
		{
			name:      "sprints without story points",
			features:  board.Features{},
			feature:   board.FeatureSprints,
			wantUnmet: []board.Feature{board.FeatureStoryPoints},
		},
		{
			name:      "burndown with neither dependency",
			features:  board.Features{},
			feature:   board.FeatureBurndownCharts,
			wantUnmet: []board.Feature{board.FeatureSprints, board.FeatureStoryPoints},
		},
		{
			name:      "burndown with only story points",
			features:  board.Features{StoryPoints: true},
			feature:   board.FeatureBurndownCharts,
			wantUnmet: []board.Feature{board.FeatureSprints},
		},
		{
			name:     "independent feature has no dependencies",
			features: board.Features{},
			feature:  board.FeatureLabels,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &board.AgileConfig{Features: tt.features}
			err := ValidateFeatureDependencies(cfg, tt.feature)

			if len(tt.wantUnmet) == 0 {
				assert.NoError(t, err)
				return
			}

			var depErr *board.FeatureDependencyError
			require.ErrorAs(t, err, &depErr)
			assert.Equal(t, tt.feature, depErr.Feature)
			assert.Equal(t, tt.wantUnmet, depErr.Unmet)
		})
	}
}

func TestValidateConfigDependencies(t *testing.T) {
	ok := &board.AgileConfig{Features: board.Features{StoryPoints: true, Sprints: true, BurndownCharts: true}}
	assert.NoError(t, ValidateConfigDependencies(ok))

	// Burndown enabled while sprints is off must fail.
	bad := &board.AgileConfig{Features: board.Features{StoryPoints: true, BurndownCharts: true}}
	assert.Error(t, ValidateConfigDependencies(bad))

	assert.NoError(t, ValidateConfigDependencies(nil))
}

func TestCheckCardFields(t *testing.T) {
	scrum := scrumConfig(t)
	basic := basicConfig(t)

	points := 8.0
	prio := board.PriorityHigh
	estimate := 120
	epic := "9f1c9a40-91a5-4dbb-8d53-6a9f9a40e111"

	t.Run("gated fields pass under scrum", func(t *testing.T) {
		err := CheckCardFields(scrum, &board.CardPatch{
			StoryPoints: &points,
			Priority:    &prio,
		}, "card.update")
		assert.NoError(t, err)
	})

	t.Run("story points rejected under basic", func(t *testing.T) {
		err := CheckCardFields(basic, &board.CardPatch{StoryPoints: &points}, "card.update")
		var disabled *board.FeatureDisabledError
		require.ErrorAs(t, err, &disabled)
		assert.Equal(t, board.FeatureStoryPoints, disabled.Feature)
	})

	t.Run("estimates require time tracking", func(t *testing.T) {
		err := CheckCardFields(scrum, &board.CardPatch{OriginalEstimateMins: &estimate}, "card.update")
		var disabled *board.FeatureDisabledError
		require.ErrorAs(t, err, &disabled)
		assert.Equal(t, board.FeatureTimeTracking, disabled.Feature)
	})

	t.Run("epic reference requires epics", func(t *testing.T) {
		err := CheckCardFields(scrum, &board.CardPatch{EpicID: &epic}, "card.update")
		var disabled *board.FeatureDisabledError
		require.ErrorAs(t, err, &disabled)
		assert.Equal(t, board.FeatureEpics, disabled.Feature)
	})

	t.Run("off-scale story points rejected even when enabled", func(t *testing.T) {
		offScale := 4.0
		err := CheckCardFields(scrum, &board.CardPatch{StoryPoints: &offScale}, "card.update")
		var invalid *board.InvalidStoryPointsError
		require.ErrorAs(t, err, &invalid)
	})

	t.Run("ungated fields always pass", func(t *testing.T) {
		title := "retitle"
		assert.NoError(t, CheckCardFields(basic, &board.CardPatch{Title: &title}, "card.update"))
		assert.NoError(t, CheckCardFields(nil, &board.CardPatch{Title: &title}, "card.update"))
	})

	t.Run("nil patch passes", func(t *testing.T) {
		assert.NoError(t, CheckCardFields(basic, nil, "card.update"))
	})
}
