// Package gateway orchestrates the mcp-sse-gateway server components.
//
// # Overview
//
// The gateway package is the central coordinator of the mcp-sse-gateway
// server. It owns the configuration store, the live session registry, the
// prompt router, and the HTTP server, and wires them together behind a
// single listener (plain TCP or a Tailscale tsnet node).
//
// # Gateway Struct
//
// The Gateway struct is the main entry point:
//
//	type Gateway struct {
//	    config      *config.Config
//	    store       store.Store
//	    registry    *stream.Registry
//	    router      *stream.Router
//	    httpServer  *http.Server
//	    tsnetServer *tsnet.Server
//	    // ... and more
//	}
//
// # HTTP API
//
// The gateway exposes HTTP endpoints in api.go:
//
//   - GET /api/configs - List stored configurations
//   - POST /api/configs - Create a configuration
//   - GET/PUT/DELETE /api/configs/{id} - Manage one configuration
//   - GET /sse/{id} - Stream a configuration's server as SSE
//   - POST /api/prompt/{id} - Forward a prompt to live streams
//   - GET /health - Liveness check
//   - GET /health/ready - Readiness check (store ping)
//
// # SSE Streaming
//
// GET /sse/{id} loads the configuration, launches its first mcpServers
// entry as a subprocess, and relays its output as Server-Sent Events:
//
//	event: connected
//	data: {"id": 1, "config": {...}}
//
//	event: message
//	data: <one stdout line>
//
//	event: close
//	data: {"code": 0}
//
// Event types: connected, message, error, close, heartbeat. The stream
// lives until the process exits or the client disconnects; disconnecting
// terminates the subprocess.
//
// # Lifecycle
//
// Start the gateway:
//
//	gw, err := gateway.New(cfg, logger)
//	ctx, cancel := context.WithCancel(context.Background())
//	go gw.Run(ctx)
//
// Graceful shutdown:
//
//	cancel()
//
// Run drains active sessions (terminating their subprocesses), stops the
// HTTP server, and closes the store with a 5 second timeout.
//
// # Key Files
//
//   - gateway.go: Gateway struct, listeners, Run/Shutdown, health
//   - api.go: HTTP handlers for CRUD, SSE, and prompt delivery
package gateway
