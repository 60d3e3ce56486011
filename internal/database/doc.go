// Package database provides SQLite catalog operations for the ingestion
// pipeline.
//
// It handles storage and retrieval of:
//   - Ingested media assets and their extracted metadata
//   - Albums and album membership
//   - Archive import history
//   - Small key-value state (rate-limiter timestamps, maintenance markers)
//
// The database uses WAL mode for improved concurrent read performance
// and includes automatic schema initialization.
package database
