// Package emoji provides symbol constants for CLI output.
package emoji

// Symbol constants give every command the same status vocabulary.
const (
	// Success marks a completed write or an updated registration.
	Success = "✓"

	// Error marks a failed step, grant or run.
	Error = "✗"

	// Warning marks a non-fatal problem.
	Warning = "!"

	// Unchanged marks a registration that already matched the catalog.
	Unchanged = "="

	// Planned marks a write a dry run would have issued.
	Planned = "~"

	// Unknown marks an unrecognized state.
	Unknown = "?"
)
