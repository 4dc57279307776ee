package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lexcodex/codebase/internal/runtime"
)

var (
	cfgFile string
	verbose bool
	quiet   bool

	cfg runtime.Config
)

// Execute runs the CLI with ctx, which is cancelled on interrupt by main.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// NewRootCmd wires the cobra tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "codebase",
		Short:         "Track how many lines of code live in your projects",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgFile == "" {
				cfgFile = runtime.DefaultConfigPath()
			}
			loaded, err := runtime.LoadConfig(cfgFile)
			if err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to config.yaml (default ~/.codebase/config.yaml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output")
	root.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only log errors")

	root.AddCommand(
		newProjectCmd(),
		newScanCmd(),
		newWatchCmd(),
		newSummaryCmd(),
		newHistoryCmd(),
		newPushCmd(),
		newServeCmd(),
		newConfigCmd(),
	)
	return root
}

// logLevel maps the verbosity flags onto slog, starting from base.
func logLevel(base slog.Level) slog.Level {
	switch {
	case verbose:
		return slog.LevelDebug
	case quiet:
		return slog.LevelError
	default:
		return base
	}
}
