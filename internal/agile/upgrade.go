package agile

import (
	"fmt"

	"github.com/driftboard/driftboard/pkg/board"
)

// UpgradePlan describes what switching a board between templates would do.
// The plan is advisory: it mutates nothing. A separate apply step performs
// the position-manager calls it describes.
type UpgradePlan struct {
	FromTemplate string
	ToTemplate   string

	// NewConfig is the configuration the board would end up with.
	NewConfig board.AgileConfig

	// ColumnsToAdd lists target-template default columns absent from the
	// source template, in the target template's order. The apply step appends
	// them after the board's existing columns.
	ColumnsToAdd []string

	// ColumnsToRemove lists source-template default columns absent from the
	// target template. Only acted on when the caller chose not to preserve
	// existing columns.
	ColumnsToRemove []string

	// PreserveExisting records the caller's choice; when true the removal
	// candidates are informational only.
	PreserveExisting bool

	// Warnings are human-readable notes: columns slated for removal, features
	// the transition disables, features it newly enables.
	Warnings []string
}

// PlanUpgrade computes the advisory plan for moving a board from one template
// to another. Column comparison is by default-layout name; feature comparison
// is between the two templates' resolved configs (no overrides).
func PlanUpgrade(fromTemplate, toTemplate string, preserveExisting bool) (*UpgradePlan, error) {
	from, err := LookupTemplate(fromTemplate)
	if err != nil {
		return nil, err
	}
	to, err := LookupTemplate(toTemplate)
	if err != nil {
		return nil, err
	}

	fromCfg, err := Resolve(fromTemplate, nil)
	if err != nil {
		return nil, err
	}
	toCfg, err := Resolve(toTemplate, nil)
	if err != nil {
		return nil, err
	}

	plan := &UpgradePlan{
		FromTemplate:     fromTemplate,
		ToTemplate:       toTemplate,
		NewConfig:        toCfg,
		PreserveExisting: preserveExisting,
	}

	fromCols := make(map[string]bool, len(from.DefaultColumns))
	for _, name := range from.DefaultColumns {
		fromCols[name] = true
	}
	toCols := make(map[string]bool, len(to.DefaultColumns))
	for _, name := range to.DefaultColumns {
		toCols[name] = true
	}

	// Additions keep the target template's intra-add ordering.
	for _, name := range to.DefaultColumns {
		if !fromCols[name] {
			plan.ColumnsToAdd = append(plan.ColumnsToAdd, name)
		}
	}
	for _, name := range from.DefaultColumns {
		if !toCols[name] {
			plan.ColumnsToRemove = append(plan.ColumnsToRemove, name)
		}
	}

	for _, name := range plan.ColumnsToRemove {
		if preserveExisting {
			plan.Warnings = append(plan.Warnings,
				fmt.Sprintf("column %q is not part of template %q but will be kept", name, toTemplate))
		} else {
			plan.Warnings = append(plan.Warnings,
				fmt.Sprintf("column %q will be removed; relocate its cards before applying", name))
		}
	}

	for _, f := range board.AllFeatures {
		was := fromCfg.Features.Enabled(f)
		now := toCfg.Features.Enabled(f)
		switch {
		case was && !now:
			plan.Warnings = append(plan.Warnings,
				fmt.Sprintf("feature %q will be disabled; existing field values stop being editable", f))
		case !was && now:
			plan.Warnings = append(plan.Warnings,
				fmt.Sprintf("feature %q will be enabled", f))
		}
	}

	return plan, nil
}
