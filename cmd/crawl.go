package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/linkgraph-crawler/internal/crawljob"
	"github.com/JakeFAU/linkgraph-crawler/internal/storage"
)

const createdByCLI = "cli"

func newCrawlCmd(rt *runtime) *cobra.Command {
	var (
		seeds          []string
		depth          int
		concurrency    int
		strategy       string
		followExternal bool
		collection     string
	)
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl from the given seeds and print run statistics",
		Long: `Runs one crawl in the foreground. Pages and links are written to the
configured store; the run statistics are printed as JSON.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := crawljob.Request{
				SeedURLs:     append(append([]string(nil), seeds...), args...),
				Strategy:     strategy,
				CollectionID: collection,
				CreatedBy:    createdByCLI,
			}
			flags := cmd.Flags()
			if flags.Changed("depth") {
				req.Depth = &depth
			}
			if flags.Changed("concurrency") {
				req.ConcurrentRequests = &concurrency
			}
			if flags.Changed("follow-external") {
				req.FollowExternal = &followExternal
			}

			ctx := cmd.Context()
			backend, err := storage.Open(ctx, rt.cfg.Store, rt.logger)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := backend.Close(); cerr != nil {
					rt.logger.Warn("close store failed", zap.Error(cerr))
				}
			}()

			service, err := crawljob.NewService(crawljob.Options{
				Defaults:          rt.cfg.CrawlSettings(),
				Store:             backend.Store,
				MarkdownCacheSize: rt.cfg.Markdown.CacheSize,
				FallbackDNS:       rt.cfg.Crawler.FallbackDNS,
			}, rt.logger)
			if err != nil {
				return fmt.Errorf("crawl service init failed: %w", err)
			}

			stats, err := service.CrawlWebsite(ctx, req)
			if err != nil {
				return fmt.Errorf("crawl: %w", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(stats); err != nil {
				return fmt.Errorf("write stats: %w", err)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVar(&seeds, "seed", nil, "seed URL (repeatable)")
	flags.IntVar(&depth, "depth", 0, "maximum crawl depth")
	flags.IntVar(&concurrency, "concurrency", 0, "concurrent requests")
	flags.StringVar(&strategy, "strategy", "", "breadth_first or depth_first")
	flags.BoolVar(&followExternal, "follow-external", false, "follow links to other hosts")
	flags.StringVar(&collection, "collection", "", "collection id stamped on written pages")
	return cmd
}
