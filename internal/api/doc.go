// Package api hosts the read-only status server for a crawl directory.
// Notable routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/frontier for set sizes and the current level.
//   - GET /v1/frontier/{set}?limit=&offset= for the sorted titles of one set.
//   - GET /v1/titles/{title} for where one title stands.
package api
