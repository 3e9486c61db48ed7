package commands

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/driftboard/driftboard/internal/config"
	"github.com/driftboard/driftboard/internal/orchestrator"
	"github.com/driftboard/driftboard/pkg/board"
)

var (
	version string
	commit  string
	date    string

	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "boardctl",
	Short: "Boardctl - Driftboard board administration",
	Long: `Boardctl administers Driftboard boards: creating boards from templates,
inspecting their columns, lanes and cards, switching templates, and
following a board's real-time event feed.

Boardctl talks directly to the instance's Redis store for administration
and to a boardd relay endpoint for watching.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "driftboard.yml", "Path to the instance configuration file")
}

// newOrchestrator loads the configured instance and returns an orchestrator
// over its store. The caller must Close the returned client.
func newOrchestrator() (*orchestrator.Orchestrator, *board.Client, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	store, err := board.NewClient(cfg.RedisOptions(), cfg.Instance)
	if err != nil {
		return nil, nil, err
	}

	orch := orchestrator.New(store, store, cfg.Instance+"/boardctl", zerolog.Nop())
	return orch, store, nil
}
