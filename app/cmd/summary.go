package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lexcodex/codebase/framework"
)

func newSummaryCmd() *cobra.Command {
	var (
		asJSON    bool
		maxErrors int
	)
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show totals across all, public and private projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd, slog.LevelWarn)
			if err != nil {
				return err
			}
			defer rt.Close()
			summary := rt.Summary()
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}
			renderSummary(out, summary, maxErrors)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the summary as JSON")
	cmd.Flags().IntVar(&maxErrors, "errors", 10, "Maximum number of errors to print (0 for all)")
	return cmd
}

func renderSummary(out io.Writer, s framework.Summary, maxErrors int) {
	sections := []struct {
		name string
		info framework.ProjectInfo
	}{
		{"All", s.All},
		{"Public", s.Public},
		{"Private", s.Private},
	}
	for _, section := range sections {
		fmt.Fprintln(out, headerStyle.Render(section.name))
		fmt.Fprintln(out, renderInfo(section.info))
	}
	renderErrors(out, s.All.Errors, maxErrors)
}

func renderErrors(out io.Writer, errs []string, max int) {
	if len(errs) == 0 {
		return
	}
	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("Errors (%d)", len(errs))))
	shown := errs
	if max > 0 && len(shown) > max {
		shown = shown[:max]
	}
	for _, e := range shown {
		fmt.Fprintf(out, "  %s\n", e)
	}
	if len(shown) < len(errs) {
		fmt.Fprintf(out, "  ... %d more\n", len(errs)-len(shown))
	}
}
