package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/driftboard/driftboard/internal/printer"
	"github.com/driftboard/driftboard/pkg/board"
)

var showCmd = &cobra.Command{
	Use:   "show <board-id>",
	Short: "Show a board's columns, lanes and cards",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	orch, store, err := newOrchestrator()
	if err != nil {
		return printer.Error("Failed to connect to instance", err.Error(), nil)
	}
	defer store.Close()

	snap, err := orch.GetSnapshot(cmd.Context(), args[0])
	if err != nil {
		if board.IsNotFound(err) {
			return printer.Error("Board not found", "No board with ID "+args[0]+" exists on this instance.", nil)
		}
		return printer.Error("Failed to load board", err.Error(), nil)
	}

	printer.Printf("%s  (template: %s, owner: %s)\n", snap.Board.Name, snap.Board.Template, snap.Board.OwnerID)

	enabled := make([]string, 0)
	for _, f := range board.AllFeatures {
		if snap.Board.Config.Features.Enabled(f) {
			enabled = append(enabled, string(f))
		}
	}
	if len(enabled) > 0 {
		printer.Printf("Features: %v\n", enabled)
	}

	for _, lane := range snap.Lanes {
		printer.Printf("Lane %d: %s\n", lane.Position, lane.Name)
	}

	for _, col := range snap.Columns {
		printer.Printf("\n[%d] %s\n", col.Position, col.Name)
		for _, card := range snap.Cards[col.ID] {
			line := "  - " + card.Title
			if card.StoryPoints != nil {
				line += fmt.Sprintf(" (%v pts)", *card.StoryPoints)
			}
			if card.Priority != "" {
				line += " [" + string(card.Priority) + "]"
			}
			printer.Println(line)
		}
	}

	printer.Printf("\nMembers: %d\n", len(snap.Members))
	return nil
}
