package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/driftboard/driftboard/internal/printer"
	"github.com/driftboard/driftboard/pkg/board"
	"github.com/driftboard/driftboard/pkg/client"
)

var (
	watchURL   string
	watchToken string
)

var watchCmd = &cobra.Command{
	Use:   "watch <board-id>",
	Short: "Follow a board's real-time event feed",
	Long: `Follow a board's real-time event feed over the relay websocket.

Every card, column and presence event of the board's room is printed as
it happens. The connection reconnects automatically with exponential
backoff; interrupt with Ctrl-C.

Examples:
  boardctl watch 4f2a9c10-... --token tok-alice
  boardctl watch 4f2a9c10-... --url ws://boards.internal:8720/ws --token tok-alice`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchURL, "url", "ws://localhost:8720/ws", "Relay websocket endpoint")
	watchCmd.Flags().StringVar(&watchToken, "token", "", "Credential token (required)")
	_ = watchCmd.MarkFlagRequired("token")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	boardID := args[0]

	c, err := client.New(client.Options{
		URL:   watchURL,
		Token: watchToken,
		OnEvent: func(env *board.Envelope) {
			printer.Event(env)
		},
	})
	if err != nil {
		return printer.Error("Failed to create relay client", err.Error(), nil)
	}

	if err := c.Join(boardID); err != nil {
		return printer.Error("Failed to join board room", err.Error(), nil)
	}

	printer.Step("Watching board %s (Ctrl-C to stop)\n", boardID)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := c.Run(ctx); err != nil && ctx.Err() == nil {
		return printer.Error("Relay connection failed", err.Error(), []string{
			"Check that boardd is running at " + watchURL,
			"Check that the token is listed in the instance's auth config",
		})
	}
	return nil
}
