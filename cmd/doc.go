// Package cmd implements the linkcrawler command line.
//
// Architecture overview:
//   - crawl runs one traversal in the foreground: seeds are normalized, pages are fetched through the Colly
//     fetcher, converted to markdown and persisted with their outgoing links in the configured link graph store
//     (memory, sqlite or postgres). The run Stats are printed as JSON.
//   - serve starts the HTTP API (internal/api) plus a bounded in-memory task queue drained by a fixed worker
//     pool. Crawls submitted over HTTP are polled by task id. SIGINT/SIGTERM drain the server and stop workers.
//   - markdown converts a single page without touching the link graph.
//   - migrate applies the link graph schema to the configured backend.
//
// Configuration comes from an optional --config file plus CRAWLER_* environment variables (for example
// CRAWLER_STORE_DRIVER=postgres, CRAWLER_STORE_POSTGRES_DSN, CRAWLER_CRAWLER_MAX_DEPTH).
package cmd
