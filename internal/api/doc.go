// Package api hosts the HTTP server, middleware, and JSON handlers for the
// book catalog. Notable routes:
//   - GET /api/books and /api/books/{id} for browsing stored records.
//   - POST /api/refresh to run a crawl on demand.
//   - GET /api/health and /healthz for probes.
//   - GET /metrics for Prometheus scraping.
package api
