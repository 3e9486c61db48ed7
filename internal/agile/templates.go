package agile

import (
	"github.com/driftboard/driftboard/pkg/board"
)

// Template is a named preset: the default column layout and the partial
// configuration applied over the baseline at board creation.
type Template struct {
	Name           string
	DefaultColumns []string
	Config         board.ConfigPatch
}

// Baseline returns the fixed starting configuration every resolution begins
// from: all features disabled, a ten-step Fibonacci story-point scale, 14-day
// sprints, 5 working days per week.
func Baseline() board.AgileConfig {
	return board.AgileConfig{
		Features:           board.Features{},
		StoryPointScale:    []float64{1, 2, 3, 5, 8, 13, 21, 34, 55, 89},
		DefaultIssueType:   board.IssueTypeTask,
		SprintDurationDays: 14,
		WorkingDaysPerWeek: 5,
		RequireEstimation:  false,
	}
}

func boolPtr(b bool) *bool { return &b }

// templates holds the built-in presets, keyed by name.
var templates = map[string]Template{
	"basic": {
		Name:           "basic",
		DefaultColumns: []string{"To Do", "In Progress", "Done"},
		Config:         board.ConfigPatch{},
	},
	"kanban": {
		Name:           "kanban",
		DefaultColumns: []string{"To Do", "In Progress", "Review", "Done"},
		Config: board.ConfigPatch{
			Features: &board.FeaturesPatch{
				Labels:     boolPtr(true),
				Priorities: boolPtr(true),
			},
		},
	},
	"scrum": {
		Name:           "scrum",
		DefaultColumns: []string{"Backlog", "To Do", "In Progress", "Review", "Done"},
		Config: board.ConfigPatch{
			Features: &board.FeaturesPatch{
				Sprints:        boolPtr(true),
				StoryPoints:    boolPtr(true),
				BurndownCharts: boolPtr(true),
				Priorities:     boolPtr(true),
			},
			RequireEstimation: boolPtr(true),
		},
	},
}

// LookupTemplate returns the built-in template with the given name.
// Unknown names yield a ConfigValidationError naming the template field.
func LookupTemplate(name string) (Template, error) {
	tpl, ok := templates[name]
	if !ok {
		return Template{}, &board.ConfigValidationError{
			Field:  "template",
			Reason: "unknown template " + name,
		}
	}
	return tpl, nil
}

// TemplateNames returns the names of all built-in templates.
func TemplateNames() []string {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	return names
}
