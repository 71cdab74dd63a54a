package cmd

import (
	"github.com/spf13/cobra"

	"github.com/JakeFAU/linkgraph-crawler/internal/server"
)

func newServeCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and crawl workers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := server.Build(cmd.Context(), rt.cfg, rt.logger)
			if err != nil {
				return err
			}
			return app.Run(cmd.Context())
		},
	}
}
