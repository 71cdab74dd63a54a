// Package api hosts the HTTP server, middleware, and REST handlers for operator
// access. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/crawls to submit a crawl and GET /v1/crawls/{task_id} to poll it.
//   - POST /v1/pages/markdown for single-page conversion.
//   - GET /v1/pages?url= to read a persisted page from the link graph.
package api
