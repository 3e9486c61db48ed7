package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/driftboard/driftboard/internal/agile"
	"github.com/driftboard/driftboard/internal/printer"
)

var (
	createName     string
	createTemplate string
	createOwner    string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a board from a template",
	Long: `Create a board from a built-in template.

The template decides the default columns and the board's starting
capability set. Configuration can be adjusted afterwards per board.

Examples:
  # A plain three-column board
  boardctl create --name "Roadmap" --owner alice

  # A scrum board with sprints, story points and burndown charts
  boardctl create --name "Sprint 12" --owner alice --template scrum`,
	RunE: runCreate,
}

func init() {
	createCmd.Flags().StringVar(&createName, "name", "", "Board display name (required)")
	createCmd.Flags().StringVar(&createTemplate, "template", "basic", "Template: "+strings.Join(agile.TemplateNames(), ", "))
	createCmd.Flags().StringVar(&createOwner, "owner", "", "Owner user ID (required)")
	_ = createCmd.MarkFlagRequired("name")
	_ = createCmd.MarkFlagRequired("owner")
	rootCmd.AddCommand(createCmd)
}

func runCreate(cmd *cobra.Command, args []string) error {
	orch, store, err := newOrchestrator()
	if err != nil {
		return printer.Error("Failed to connect to instance", err.Error(), []string{
			"Check that --config points at a valid driftboard.yml",
			"Check that Redis is reachable",
		})
	}
	defer store.Close()

	b, cols, err := orch.CreateBoard(cmd.Context(), createOwner, createName, createTemplate, nil)
	if err != nil {
		return printer.Error("Failed to create board", err.Error(), nil)
	}

	printer.Success("Created board %q from template %q\n", b.Name, b.Template)
	printer.Printf("  ID:           %s\n", b.ID)
	printer.Printf("  Invite token: %s\n", b.InviteToken)
	printer.Printf("  Columns:\n")
	for _, col := range cols {
		printer.Printf("    %d. %s\n", col.Position, col.Name)
	}
	return nil
}
