// Package api hosts the admin HTTP server that runs beside a crawl. Routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/runs for the passes completed by this process.
//   - GET /v1/urls?year=&month=&limit=&offset= for the stored urls index.
package api
