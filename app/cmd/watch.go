package cmd

import (
	"context"
	"io"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/lexcodex/codebase/internal/tui"
)

func newWatchCmd() *cobra.Command {
	var (
		plain    bool
		fsWatch  bool
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rescan on an interval (and on file changes with --fs) until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("interval") {
				cfg.Interval = interval
			}
			if cmd.Flags().Changed("fs") {
				cfg.Watch = fsWatch
			}
			out := cmd.OutOrStdout()
			useTUI := !plain && interactive(out)
			logs := cmd.ErrOrStderr()
			if useTUI {
				logs = io.Discard
			}
			rt, err := openRuntimeTo(cmd, logs, slog.LevelInfo)
			if err != nil {
				return err
			}
			defer rt.Close()

			if !useTUI {
				rt.SetProgressSink(plainSink{w: cmd.ErrOrStderr()})
				return rt.Watch(cmd.Context())
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			program := tea.NewProgram(tui.New(false), tea.WithContext(ctx), tea.WithOutput(out))
			rt.SetProgressSink(tui.Sink{Program: program})
			watchErr := make(chan error, 1)
			go func() { watchErr <- rt.Watch(ctx) }()
			_, runErr := program.Run()
			interrupted := ctx.Err() != nil
			cancel()
			if err := <-watchErr; err != nil {
				return err
			}
			if runErr != nil && !interrupted {
				return runErr
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "Print progress lines instead of the interactive view")
	cmd.Flags().BoolVar(&fsWatch, "fs", false, "Also rescan when files under project roots change")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Override the configured scan interval (0 disables the timer)")
	return cmd
}
