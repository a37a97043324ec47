// Package api hosts the HTTP server, middleware, and REST handlers that
// drive scan jobs. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/jobs to upload a URL list, then POST /v1/jobs/{job_id}/advance
//     repeatedly until the response reports finished.
//   - GET /files/* for result files when the local storage backend is used.
package api
