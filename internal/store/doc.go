// Package store provides persistence for MCP server configurations.
//
// # Overview
//
// A configuration is a named JSON blob describing launchable MCP servers:
//
//	{"mcpServers": {"echo": {"command": "cat", "args": []}}}
//
// Records are stored in SQLite (modernc.org/sqlite, pure Go) in the
// mcp_configs table with an autoincrement integer id.
//
// # Store Interface
//
// The Store interface covers the dashboard CRUD surface plus the single
// read the streaming gateway consumes:
//
//   - CreateConfig(ctx, name, config)
//   - GetConfig(ctx, id)
//   - ListConfigs(ctx)
//   - UpdateConfig(ctx, id, name, config)
//   - DeleteConfig(ctx, id)
//
// GetConfig returns ErrNotFound for unknown ids; callers translate this
// to HTTP 404 at the request boundary.
//
// # Server Spec Parsing
//
// ParseServerSpec decodes the mcpServers object preserving document order,
// so FirstServer deterministically returns the first configured entry even
// though Go maps would not preserve it.
package store
