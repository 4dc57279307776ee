package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	var (
		limit   int
		project string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent scans, or one project's volume over time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd, slog.LevelWarn)
			if err != nil {
				return err
			}
			defer rt.Close()
			out := cmd.OutOrStdout()

			if project != "" {
				snaps, err := rt.History.ProjectHistory(cmd.Context(), project, limit)
				if err != nil {
					return err
				}
				if len(snaps) == 0 {
					fmt.Fprintf(out, "no recorded scans for %s\n", project)
					return nil
				}
				t := table.New().
					Border(lipgloss.NormalBorder()).
					Headers("SCANNED", "LINES", "CHANGE", "FILES", "ERRORS")
				for i, s := range snaps {
					change := ""
					if i+1 < len(snaps) {
						change = signed(s.Volume.Lines - snaps[i+1].Volume.Lines)
					}
					t.Row(s.ScannedAt.Local().Format(time.DateTime), humanize.Comma(s.Volume.Lines), change,
						humanize.Comma(s.Volume.Files), fmt.Sprint(s.Errors))
				}
				fmt.Fprintln(out, t.String())
				return nil
			}

			runs, err := rt.History.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "no scans recorded yet")
				return nil
			}
			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("STARTED", "DURATION", "PROJECTS", "LINES", "FILES", "ERRORS")
			for _, r := range runs {
				t.Row(r.StartedAt.Local().Format(time.DateTime),
					r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String(),
					fmt.Sprint(r.Projects), humanize.Comma(r.Volume.Lines),
					humanize.Comma(r.Volume.Files), fmt.Sprint(r.Errors))
			}
			fmt.Fprintln(out, t.String())
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of entries to show (0 for all)")
	cmd.Flags().StringVarP(&project, "project", "p", "", "Show history for one project")
	return cmd
}

func signed(n int64) string {
	if n > 0 {
		return "+" + humanize.Comma(n)
	}
	return humanize.Comma(n)
}
