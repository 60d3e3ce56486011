// Package mediatypes defines the media classification tables shared by the
// ingestion pipeline: supported extensions, MIME allow-lists, and size limits.
package mediatypes
