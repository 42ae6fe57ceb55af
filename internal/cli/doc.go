// Package cli implements the promptlab command line interface.
//
// The serve command runs the full API server; the remaining commands
// run experiments in process against a local SQLite history.
package cli
