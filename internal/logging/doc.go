// Package logging builds the slog loggers used across vigil.
//
// It supports console and JSON output, multi-destination writers, and a
// handful of attribute helpers so call sites stay terse. Field name constants
// keep structured keys consistent between the pipeline and the CLI.
package logging
