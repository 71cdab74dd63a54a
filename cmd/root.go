package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/linkgraph-crawler/internal/config"
	"github.com/JakeFAU/linkgraph-crawler/internal/logging"
)

// runtime carries what PersistentPreRunE loaded to the subcommands.
type runtime struct {
	configPath string
	cfg        config.Config
	logger     *zap.Logger
}

func newRootCmd() *cobra.Command {
	rt := &runtime{}
	cmd := &cobra.Command{
		Use:           "linkcrawler",
		Short:         "Crawl websites into a persistent link graph.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(rt.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("logger init failed: %w", err)
			}
			zap.ReplaceGlobals(logger)
			rt.cfg = cfg
			rt.logger = logger
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if rt.logger != nil {
				_ = rt.logger.Sync() //nolint:errcheck // best-effort flush
			}
		},
	}

	cmd.PersistentFlags().StringVar(&rt.configPath, "config", "", "config file (yaml, json or toml)")

	cmd.AddCommand(
		newCrawlCmd(rt),
		newMarkdownCmd(rt),
		newServeCmd(rt),
		newMigrateCmd(rt),
	)
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "linkcrawler: %v\n", err)
		os.Exit(1)
	}
}
