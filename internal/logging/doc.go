// Package logging provides leveled logging for the importer and server.
// The level is read once from the LOG_LEVEL or DEBUG environment variables.
package logging
