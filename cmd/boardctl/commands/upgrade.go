package commands

import (
	"github.com/spf13/cobra"

	"github.com/driftboard/driftboard/internal/printer"
)

var (
	upgradeTo      string
	upgradeApply   bool
	upgradeKeepAll bool
)

var upgradeCmd = &cobra.Command{
	Use:   "upgrade <board-id>",
	Short: "Plan or apply a template switch for a board",
	Long: `Plan or apply switching a board to another template.

Without --apply the command only prints the plan: columns that would be
added or removed and the feature changes the switch implies. With --apply
the plan is executed; a column that still holds cards blocks removal.

Examples:
  # See what moving to scrum would change
  boardctl upgrade 4f2a9c10-... --to scrum

  # Apply it, keeping columns the target template does not know
  boardctl upgrade 4f2a9c10-... --to scrum --apply --keep-columns`,
	Args: cobra.ExactArgs(1),
	RunE: runUpgrade,
}

func init() {
	upgradeCmd.Flags().StringVar(&upgradeTo, "to", "", "Target template (required)")
	upgradeCmd.Flags().BoolVar(&upgradeApply, "apply", false, "Apply the plan instead of only printing it")
	upgradeCmd.Flags().BoolVar(&upgradeKeepAll, "keep-columns", false, "Keep columns the target template does not define")
	_ = upgradeCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(upgradeCmd)
}

func runUpgrade(cmd *cobra.Command, args []string) error {
	orch, store, err := newOrchestrator()
	if err != nil {
		return printer.Error("Failed to connect to instance", err.Error(), nil)
	}
	defer store.Close()

	boardID := args[0]

	plan, err := orch.PlanTemplateUpgrade(cmd.Context(), boardID, upgradeTo, upgradeKeepAll)
	if err != nil {
		return printer.Error("Failed to plan upgrade", err.Error(), nil)
	}

	printer.Printf("Template switch: %s → %s\n", plan.FromTemplate, plan.ToTemplate)
	for _, name := range plan.ColumnsToAdd {
		printer.Printf("  + column %q\n", name)
	}
	for _, name := range plan.ColumnsToRemove {
		if plan.PreserveExisting {
			printer.Printf("  = column %q (kept)\n", name)
		} else {
			printer.Printf("  - column %q\n", name)
		}
	}
	for _, w := range plan.Warnings {
		printer.Warning("%s\n", w)
	}

	if !upgradeApply {
		printer.Info("\nDry run only. Re-run with --apply to execute.\n")
		return nil
	}

	if _, err := orch.ApplyTemplateUpgrade(cmd.Context(), boardID, upgradeTo, upgradeKeepAll); err != nil {
		return printer.Error("Failed to apply upgrade", err.Error(), []string{
			"Relocate cards out of columns slated for removal",
			"Or re-run with --keep-columns",
		})
	}

	printer.Success("Board switched to template %q\n", upgradeTo)
	return nil
}
