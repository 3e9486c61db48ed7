// Package agile derives a board's effective capability set from a template
// plus caller overrides, and plans template-to-template upgrades.
//
// Resolution is deterministic: the same template and the same overrides always
// yield the same configuration. Merges apply in a fixed order (baseline, then
// template, then overrides), shallow per top-level field and key-by-key for
// the features sub-map.
package agile

import (
	"fmt"

	"github.com/driftboard/driftboard/pkg/board"
)

// Resolve derives a board's effective AgileConfig from a template plus
// optional caller overrides. Overrides always apply last. The result is
// validated; a malformed result yields a ConfigValidationError naming the
// offending field.
func Resolve(templateName string, overrides *board.ConfigPatch) (board.AgileConfig, error) {
	tpl, err := LookupTemplate(templateName)
	if err != nil {
		return board.AgileConfig{}, err
	}

	cfg := Baseline()
	cfg = applyPatch(cfg, &tpl.Config)
	if overrides != nil {
		cfg = applyPatch(cfg, overrides)
	}

	if err := validateConfig(&cfg); err != nil {
		return board.AgileConfig{}, err
	}

	return cfg, nil
}

// MergeConfigs applies a partial update to an existing configuration, using
// the same merge algorithm as Resolve. A nil current config defaults to the
// baseline. Used for incremental board settings edits.
func MergeConfigs(current *board.AgileConfig, patch *board.ConfigPatch) (board.AgileConfig, error) {
	cfg := Baseline()
	if current != nil {
		cfg = *current
	}

	if patch != nil {
		cfg = applyPatch(cfg, patch)
	}

	if err := validateConfig(&cfg); err != nil {
		return board.AgileConfig{}, err
	}

	return cfg, nil
}

// applyPatch merges a partial update over a config. Scalars replace wholesale
// when present; the features sub-map merges key-by-key.
func applyPatch(cfg board.AgileConfig, patch *board.ConfigPatch) board.AgileConfig {
	if patch.Features != nil {
		cfg.Features = applyFeatures(cfg.Features, patch.Features)
	}
	if patch.StoryPointScale != nil {
		scale := make([]float64, len(patch.StoryPointScale))
		copy(scale, patch.StoryPointScale)
		cfg.StoryPointScale = scale
	}
	if patch.DefaultIssueType != nil {
		cfg.DefaultIssueType = *patch.DefaultIssueType
	}
	if patch.SprintDurationDays != nil {
		cfg.SprintDurationDays = *patch.SprintDurationDays
	}
	if patch.WorkingDaysPerWeek != nil {
		cfg.WorkingDaysPerWeek = *patch.WorkingDaysPerWeek
	}
	if patch.RequireEstimation != nil {
		cfg.RequireEstimation = *patch.RequireEstimation
	}
	return cfg
}

func applyFeatures(f board.Features, patch *board.FeaturesPatch) board.Features {
	if patch.Sprints != nil {
		f.Sprints = *patch.Sprints
	}
	if patch.StoryPoints != nil {
		f.StoryPoints = *patch.StoryPoints
	}
	if patch.Epics != nil {
		f.Epics = *patch.Epics
	}
	if patch.TimeTracking != nil {
		f.TimeTracking = *patch.TimeTracking
	}
	if patch.BurndownCharts != nil {
		f.BurndownCharts = *patch.BurndownCharts
	}
	if patch.CustomWorkflows != nil {
		f.CustomWorkflows = *patch.CustomWorkflows
	}
	if patch.Labels != nil {
		f.Labels = *patch.Labels
	}
	if patch.Priorities != nil {
		f.Priorities = *patch.Priorities
	}
	return f
}

// validateConfig rejects malformed configurations, naming the offending field.
func validateConfig(cfg *board.AgileConfig) error {
	if len(cfg.StoryPointScale) == 0 {
		return &board.ConfigValidationError{
			Field:  "storyPointScale",
			Reason: "scale cannot be empty",
		}
	}
	for i, v := range cfg.StoryPointScale {
		if v <= 0 {
			return &board.ConfigValidationError{
				Field:  "storyPointScale",
				Reason: fmt.Sprintf("entry %d is %v; all entries must be positive", i, v),
			}
		}
	}

	if cfg.SprintDurationDays < 1 || cfg.SprintDurationDays > 30 {
		return &board.ConfigValidationError{
			Field:  "sprintDurationDays",
			Reason: fmt.Sprintf("must be in [1,30], got %d", cfg.SprintDurationDays),
		}
	}

	if cfg.WorkingDaysPerWeek < 1 || cfg.WorkingDaysPerWeek > 7 {
		return &board.ConfigValidationError{
			Field:  "workingDaysPerWeek",
			Reason: fmt.Sprintf("must be in [1,7], got %d", cfg.WorkingDaysPerWeek),
		}
	}

	if err := cfg.DefaultIssueType.Validate(); err != nil {
		return &board.ConfigValidationError{
			Field:  "defaultIssueType",
			Reason: err.Error(),
		}
	}

	return nil
}
