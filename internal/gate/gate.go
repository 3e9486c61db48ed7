// Package gate enforces a board's resolved capability set: it validates that
// an operation's fields are permitted by the configuration before any
// mutation happens. A nil configuration is treated as all-features-disabled.
package gate

import (
	"github.com/driftboard/driftboard/pkg/board"
)

// featureDependencies is the fixed dependency table. A feature can only be
// enabled when every listed dependency is enabled too. Features absent from
// the table are independent.
var featureDependencies = map[board.Feature][]board.Feature{
	board.FeatureSprints:        {board.FeatureStoryPoints},
	board.FeatureBurndownCharts: {board.FeatureSprints, board.FeatureStoryPoints},
}

// cardFieldFeature maps each gated card field to the feature that must be
// enabled for the field to be present. A fixed table rather than a
// dynamically indexed map, so the keys are checked at compile time.
type cardFieldFeature struct {
	Field   string
	Feature board.Feature
	Set     func(*board.CardPatch) bool
}

var cardFieldFeatures = []cardFieldFeature{
	{"story_points", board.FeatureStoryPoints, func(p *board.CardPatch) bool { return p.StoryPoints != nil }},
	{"priority", board.FeaturePriorities, func(p *board.CardPatch) bool { return p.Priority != nil }},
	{"original_estimate_mins", board.FeatureTimeTracking, func(p *board.CardPatch) bool { return p.OriginalEstimateMins != nil }},
	{"remaining_estimate_mins", board.FeatureTimeTracking, func(p *board.CardPatch) bool { return p.RemainingEstimateMins != nil }},
	{"epic_id", board.FeatureEpics, func(p *board.CardPatch) bool { return p.EpicID != nil }},
	{"sprint_id", board.FeatureSprints, func(p *board.CardPatch) bool { return p.SprintID != nil }},
}

// RequireFeature fails with a FeatureDisabledError unless the named feature
// is enabled. A nil config disables everything.
func RequireFeature(cfg *board.AgileConfig, feature board.Feature, operation string) error {
	if cfg == nil || !cfg.Features.Enabled(feature) {
		return &board.FeatureDisabledError{Operation: operation, Feature: feature}
	}
	return nil
}

// RequireFeatures is the conjunction of RequireFeature over all named
// features; the first disabled feature is reported.
func RequireFeatures(cfg *board.AgileConfig, features []board.Feature, operation string) error {
	for _, f := range features {
		if err := RequireFeature(cfg, f, operation); err != nil {
			return err
		}
	}
	return nil
}

// ValidateStoryPoints fails with an InvalidStoryPointsError unless the value
// is an exact member of the configured scale.
func ValidateStoryPoints(cfg *board.AgileConfig, points float64) error {
	if cfg != nil {
		for _, v := range cfg.StoryPointScale {
			if v == points {
				return nil
			}
		}
	}
	var scale []float64
	if cfg != nil {
		scale = cfg.StoryPointScale
	}
	return &board.InvalidStoryPointsError{Points: points, Scale: scale}
}

// ValidateFeatureDependencies fails with a FeatureDependencyError listing
// every unmet dependency of the named feature. Enabling burndown charts with
// sprints or story points disabled is the canonical rejection.
func ValidateFeatureDependencies(cfg *board.AgileConfig, feature board.Feature) error {
	deps := featureDependencies[feature]
	if len(deps) == 0 {
		return nil
	}

	var unmet []board.Feature
	for _, dep := range deps {
		if cfg == nil || !cfg.Features.Enabled(dep) {
			unmet = append(unmet, dep)
		}
	}

	if len(unmet) > 0 {
		return &board.FeatureDependencyError{Feature: feature, Unmet: unmet}
	}
	return nil
}

// ValidateConfigDependencies checks the dependency table for every feature a
// configuration enables. Used when a settings edit or template change
// produces a new configuration.
func ValidateConfigDependencies(cfg *board.AgileConfig) error {
	if cfg == nil {
		return nil
	}
	for _, f := range board.AllFeatures {
		if !cfg.Features.Enabled(f) {
			continue
		}
		if err := ValidateFeatureDependencies(cfg, f); err != nil {
			return err
		}
	}
	return nil
}

// CheckCardFields validates every gated field present in a card patch against
// the board's configuration. Story points additionally have to be a member of
// the configured scale. Consulted before every card mutation; runs entirely
// before any position or store state is touched.
func CheckCardFields(cfg *board.AgileConfig, patch *board.CardPatch, operation string) error {
	if patch == nil {
		return nil
	}

	for _, ff := range cardFieldFeatures {
		if !ff.Set(patch) {
			continue
		}
		if err := RequireFeature(cfg, ff.Feature, operation); err != nil {
			return err
		}
	}

	if patch.StoryPoints != nil {
		if err := ValidateStoryPoints(cfg, *patch.StoryPoints); err != nil {
			return err
		}
	}

	if patch.Priority != nil {
		if err := patch.Priority.Validate(); err != nil {
			return &board.ConfigValidationError{Field: "priority", Reason: err.Error()}
		}
	}

	return nil
}
