// Package handlers provides HTTP request handlers for the photovault API.
//
// It includes handlers for:
//   - Chunked uploads and single-file finalization
//   - Archive import preview, commit, and progress polling
//   - Health checks
package handlers
