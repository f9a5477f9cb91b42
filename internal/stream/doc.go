// Package stream implements the SSE streaming core of mcp-sse-gateway.
//
// # Overview
//
// A streaming session turns a stored configuration into a live subprocess
// whose output is relayed to one HTTP client as Server-Sent Events, with an
// out-of-band side channel for sending input to the process.
//
// # Session Lifecycle
//
// A Session moves through: created -> registered -> launched -> streaming
// -> closed. The terminal transition fires exactly once regardless of which
// trigger arrives first:
//
//   - client disconnect (request context canceled)
//   - process exit (close event with the exit code is emitted first)
//   - a write failure on the response sink (client gone mid-stream)
//
// Teardown unregisters the session, terminates the process if still
// running, and stops the heartbeat. Once teardown begins no further
// message/error/heartbeat event reaches the sink; only the final close
// event is permitted.
//
// # Wire Format
//
// Each record is:
//
//	event: <name>
//	data: <payload>
//
// Event types: connected, message, error, close, heartbeat. Message
// payloads are raw subprocess output lines; all others are compact JSON.
//
// # Registry
//
// The Registry is the single piece of cross-session state. It is injected
// into sessions and the Router rather than living as a package global, and
// its lock covers only registry mutation, never event writes.
//
// # Prompt Routing
//
// Router.Route fans a prompt out to the stdin of every live session for a
// configuration. Delivery is best-effort per target; "no sessions" and
// "all writes failed" are distinct errors so the HTTP layer can answer
// 404 versus 500.
//
// # Concurrency
//
// Per session: one goroutine drains stdout, one drains stderr, one emits
// heartbeats. All three observe the session's done channel and the same
// single-fire teardown guard. A slow client blocks the draining goroutine
// that is writing; back-pressure is not buffered.
package stream
