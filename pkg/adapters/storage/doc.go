// Package storage provides experiment and batch persistence adapters.
//
// Implementations:
//   - redis: Redis with JSON serialization and optional TTL
//   - sqlite: file-backed database for CLI use
//   - memory: In-memory for testing and development
package storage
