// Package http provides the HTTP REST API implementation.
//
// The HTTP server exposes endpoints for:
//   - Experiment execution and history
//   - Batch submission and comparison reports
//   - Avatar uploads to object storage
//   - Health checks
//   - Prometheus metrics
package http
