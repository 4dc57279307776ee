package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/lexcodex/codebase/framework"
	"github.com/lexcodex/codebase/framework/scan"
	"github.com/lexcodex/codebase/internal/runtime"
)

var headerStyle = lipgloss.NewStyle().Bold(true)

func newProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "project",
		Aliases: []string{"projects", "p"},
		Short:   "Manage tracked projects",
	}
	cmd.AddCommand(
		newProjectAddCmd(),
		newProjectRemoveCmd(),
		newProjectEditCmd(),
		newProjectListCmd(),
		newProjectShowCmd(),
	)
	return cmd
}

func newProjectAddCmd() *cobra.Command {
	var public bool
	cmd := &cobra.Command{
		Use:   "add [title] [path]",
		Short: "Track a new project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd, slog.LevelWarn)
			if err != nil {
				return err
			}
			defer rt.Close()
			if err := rt.Catalog.Add(cmd.Context(), framework.NewProject(args[0], args[1], public)); err != nil {
				return err
			}
			p, err := rt.Catalog.Get(strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s (%s) at %s\n", p.Title, visibility(p.IsPublic), p.Path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&public, "public", false, "Count the project under public totals")
	return cmd
}

func newProjectRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove [title]",
		Aliases: []string{"rm"},
		Short:   "Stop tracking a project",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd, slog.LevelWarn)
			if err != nil {
				return err
			}
			defer rt.Close()
			if err := rt.RemoveProject(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
			return nil
		},
	}
}

func newProjectEditCmd() *cobra.Command {
	var (
		title  string
		path   string
		public bool
	)
	cmd := &cobra.Command{
		Use:   "edit [title]",
		Short: "Rename a project, move it or change its visibility",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var edit runtime.ProjectEdit
			if cmd.Flags().Changed("title") {
				edit.Title = &title
			}
			if cmd.Flags().Changed("path") {
				edit.Path = &path
			}
			if cmd.Flags().Changed("public") {
				edit.IsPublic = &public
			}
			if edit == (runtime.ProjectEdit{}) {
				return fmt.Errorf("nothing to change: pass --title, --path or --public")
			}
			rt, err := openRuntime(cmd, slog.LevelWarn)
			if err != nil {
				return err
			}
			defer rt.Close()
			p, err := rt.Catalog.Edit(cmd.Context(), args[0], edit)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %s (%s) at %s\n", p.Title, visibility(p.IsPublic), p.Path)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&path, "path", "", "New root directory; clears recorded statistics")
	cmd.Flags().BoolVar(&public, "public", false, "Public visibility")
	return cmd
}

func newProjectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tracked projects, most recently scanned first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd, slog.LevelWarn)
			if err != nil {
				return err
			}
			defer rt.Close()
			projects := rt.Catalog.Projects()
			if len(projects) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no projects tracked; add one with `codebase project add <title> <path>`")
				return nil
			}
			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("TITLE", "VISIBILITY", "LINES", "FILES", "SIZE", "ERRORS", "LAST SCAN")
			for _, p := range projects {
				vol := p.Info.Volume
				t.Row(p.Title, visibility(p.IsPublic),
					humanize.Comma(vol.Lines), humanize.Comma(vol.Files),
					humanize.Bytes(uint64(vol.Bytes)),
					fmt.Sprint(len(p.Info.Errors)), lastScan(p))
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.String())
			return nil
		},
	}
}

func newProjectShowCmd() *cobra.Command {
	var maxErrors int
	cmd := &cobra.Command{
		Use:   "show [title]",
		Short: "Show a project's statistics and errors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd, slog.LevelWarn)
			if err != nil {
				return err
			}
			defer rt.Close()
			p, err := rt.Catalog.Get(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, headerStyle.Render(p.Title))
			fmt.Fprintf(out, "path:       %s\n", p.Path)
			fmt.Fprintf(out, "visibility: %s\n", visibility(p.IsPublic))
			fmt.Fprintf(out, "last scan:  %s\n", lastScan(p))
			fmt.Fprintln(out, renderInfo(p.Info))
			renderErrors(out, p.Info.Errors, maxErrors)
			return nil
		},
	}
	cmd.Flags().IntVar(&maxErrors, "errors", 20, "Maximum number of errors to print (0 for all)")
	return cmd
}

// renderInfo formats totals and a per-extension table.
func renderInfo(info framework.ProjectInfo) string {
	var b strings.Builder
	vol := info.Volume
	fmt.Fprintf(&b, "%s lines in %s files (%s)\n",
		humanize.Comma(vol.Lines), humanize.Comma(vol.Files), humanize.Bytes(uint64(vol.Bytes)))
	if len(info.ExtensionsVolume) == 0 {
		return b.String()
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("EXT", "LANGUAGE", "LINES", "FILES", "SHARE")
	for _, ext := range sortedExtensions(info.ExtensionsVolume) {
		ev := info.ExtensionsVolume[ext]
		share := 0.0
		if vol.Lines > 0 {
			share = float64(ev.Lines) * 100 / float64(vol.Lines)
		}
		t.Row(ext, scan.LanguageOf(ext), humanize.Comma(ev.Lines), humanize.Comma(ev.Files),
			fmt.Sprintf("%.1f%%", share))
	}
	b.WriteString(t.String())
	return b.String()
}
