// Package api hosts the HTTP server, middleware, and handlers. Notable routes:
//   - GET /healthz and /readyz for liveness and readiness checks.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/discover, /v1/agent and /v1/discover/stream run the pipeline.
//   - /v1/businesses/{business_id}/... reads stored results and records
//     feedback.
//   - /v1/users/{user_id}/conversations/{conversation_id}/messages exposes the
//     conversation log.
package api
