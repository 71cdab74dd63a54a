package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/linkgraph-crawler/internal/crawljob"
)

func newMarkdownCmd(rt *runtime) *cobra.Command {
	var insecure bool
	cmd := &cobra.Command{
		Use:   "markdown URL",
		Short: "Fetch a single page and print it as markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := crawljob.NewService(crawljob.Options{
				Defaults:          rt.cfg.CrawlSettings(),
				MarkdownCacheSize: rt.cfg.Markdown.CacheSize,
				FallbackDNS:       rt.cfg.Crawler.FallbackDNS,
			}, rt.logger)
			if err != nil {
				return fmt.Errorf("crawl service init failed: %w", err)
			}
			out, err := service.PageAsMarkdown(cmd.Context(), args[0], insecure)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().BoolVar(&insecure, "insecure", false, "skip TLS certificate verification")
	return cmd
}
