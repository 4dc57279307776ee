package cmd

import (
	"fmt"
	"io"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/lexcodex/codebase/internal/tui"
)

func newScanCmd() *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan every tracked project now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			useTUI := !plain && interactive(out)
			logs := cmd.ErrOrStderr()
			if useTUI {
				// The log file still receives everything.
				logs = io.Discard
			}
			rt, err := openRuntimeTo(cmd, logs, slog.LevelWarn)
			if err != nil {
				return err
			}
			defer rt.Close()
			if rt.Catalog.Len() == 0 {
				fmt.Fprintln(out, "no projects tracked; add one with `codebase project add <title> <path>`")
				return nil
			}

			if !useTUI {
				res, err := rt.ScanNow(cmd.Context(), plainSink{w: cmd.ErrOrStderr()})
				if err != nil {
					return err
				}
				fmt.Fprintln(out, tui.Describe(res))
				return nil
			}

			program := tea.NewProgram(tui.New(true), tea.WithContext(cmd.Context()), tea.WithOutput(out))
			errCh := make(chan error, 1)
			go func() {
				_, err := rt.ScanNow(cmd.Context(), tui.Sink{Program: program})
				errCh <- err
			}()
			if _, err := program.Run(); err != nil && cmd.Context().Err() == nil {
				return err
			}
			return <-errCh
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "Print progress lines instead of the interactive view")
	return cmd
}
