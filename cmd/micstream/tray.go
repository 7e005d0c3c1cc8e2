package main

import (
	"github.com/spf13/cobra"

	"github.com/petems/micstream/internal/logging"
	"github.com/petems/micstream/internal/server"
	"github.com/petems/micstream/internal/tray"
)

func newTrayCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tray",
		Short: "Run the server with a menu bar icon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := flags.open()
			if err != nil {
				return err
			}
			defer rt.host.Close()

			ctx := cmd.Context()
			srv := server.New(rt.app, rt.log)
			go func() {
				if err := srv.ListenAndServe(ctx, rt.cfg.Server.Listen); err != nil {
					rt.log.Error().Err(err).Msg("HTTP server error")
				}
			}()

			rt.log.Info().Msg("micstream starting...")
			// The tray owns shutdown of captures and aggregates.
			ui := tray.New(rt.app, rt.cfg, rt.log, logging.Path(), Version, Commit)
			return ui.Run(ctx)
		},
	}
}
