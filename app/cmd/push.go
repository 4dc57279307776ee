package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

func newPushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Send the current statistics to the configured collector",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd, slog.LevelWarn)
			if err != nil {
				return err
			}
			defer rt.Close()
			if err := rt.Push(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pushed %d projects to %s\n", rt.Catalog.Len(), rt.Config.ReceiverURL)
			return nil
		},
	}
}
