package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lexcodex/codebase/server"
)

func newServeCmd() *cobra.Command {
	var (
		addr    string
		noHeart bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve status, summary and metrics over HTTP while rescanning on the interval",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				cfg.ServerAddr = addr
			}
			rt, err := openRuntime(cmd, slog.LevelInfo)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx := cmd.Context()
			if !noHeart {
				go func() {
					if err := rt.Watch(ctx); err != nil {
						rt.Logger.Error("heart stopped", "err", err)
					}
				}()
			}
			api := &server.APIServer{
				Service: rt,
				Metrics: rt.Metrics.Handler(),
				Logger:  rt.Logger,
			}
			return api.ServeContext(ctx, rt.Config.ServerAddr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, :8081)")
	cmd.Flags().BoolVar(&noHeart, "no-heart", false, "Only serve; scan when POST /api/scan is called")
	return cmd
}
