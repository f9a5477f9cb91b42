// Package launcher starts MCP server subprocesses for streaming sessions.
//
// Launch wraps os/exec with the shape the streaming gateway needs: a
// write-only stdin, independent stdout/stderr readers, an idempotent
// Terminate, and a Done channel that fires once the exit code is known.
// A killed process reports KilledExitCode (-1).
//
// Each Process is owned by exactly one streaming session; only the prompt
// router writes to stdin from outside the session, which is why Write is
// the one concurrency-safe mutator.
package launcher
