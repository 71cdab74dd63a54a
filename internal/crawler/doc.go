// Package crawler implements the link-graph crawl engine: URL utilities,
// robots policy caching, DNS resolution with fallback, the link graph
// persistence facade, and the breadth-first and depth-first traversal
// strategies that orchestrate them.
package crawler
