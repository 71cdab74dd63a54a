package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/linkgraph-crawler/internal/storage"
)

func newMigrateCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the link graph schema to the configured store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			backend, err := storage.Open(cmd.Context(), rt.cfg.Store, rt.logger)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := backend.Close(); cerr != nil {
					rt.logger.Warn("close store failed", zap.Error(cerr))
				}
			}()
			if err := backend.Migrate(cmd.Context()); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "schema applied to %s store\n", backend.Driver)
			return err
		},
	}
}
