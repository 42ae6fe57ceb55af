// Package objectstore provides public object upload adapters.
//
// Implementations:
//   - gcs: Google Cloud Storage with public-read objects
//   - memory: In-memory for testing
package objectstore
