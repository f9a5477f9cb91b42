// ABOUTME: Store interface and data types for mcp-sse-gateway persistence
// ABOUTME: Defines the MCPConfig record and the Store interface for database operations

package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// MCPConfig represents a stored MCP server configuration.
// The Config blob holds the mcpServers mapping:
//
//	{"mcpServers": {"<name>": {"command": "...", "args": ["..."]}}}
type MCPConfig struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Config    json.RawMessage `json:"config"`
	CreatedAt time.Time       `json:"createdAt"`
}

// ServerEntry is one named server from a configuration's mcpServers mapping.
type ServerEntry struct {
	Name    string   `json:"-"`
	Command string   `json:"command"`
	Args    []string `json:"args"`
}

// Store defines the interface for configuration persistence
type Store interface {
	CreateConfig(ctx context.Context, name string, config json.RawMessage) (*MCPConfig, error)
	GetConfig(ctx context.Context, id int64) (*MCPConfig, error)
	ListConfigs(ctx context.Context) ([]*MCPConfig, error)
	UpdateConfig(ctx context.Context, id int64, name string, config json.RawMessage) (*MCPConfig, error)
	DeleteConfig(ctx context.Context, id int64) error

	// Ping verifies the underlying database is reachable.
	Ping(ctx context.Context) error

	Close() error
}

// ParseServerSpec decodes the mcpServers mapping from a configuration blob,
// preserving the order entries appear in the JSON document. Go maps do not
// keep key order, so the object is walked token by token.
//
// Returns an error if the blob is not valid JSON or lacks an mcpServers object.
func ParseServerSpec(config json.RawMessage) ([]ServerEntry, error) {
	var outer struct {
		MCPServers json.RawMessage `json:"mcpServers"`
	}
	if err := json.Unmarshal(config, &outer); err != nil {
		return nil, fmt.Errorf("parsing config blob: %w", err)
	}
	if len(outer.MCPServers) == 0 {
		return nil, errors.New("config has no mcpServers property")
	}

	dec := json.NewDecoder(bytes.NewReader(outer.MCPServers))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("parsing mcpServers: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New("mcpServers must be a JSON object")
	}

	var entries []ServerEntry
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("parsing mcpServers: %w", err)
		}
		name, ok := keyTok.(string)
		if !ok {
			return nil, errors.New("mcpServers has a non-string key")
		}

		var entry ServerEntry
		if err := dec.Decode(&entry); err != nil {
			return nil, fmt.Errorf("parsing server %q: %w", name, err)
		}
		entry.Name = name
		entries = append(entries, entry)
	}

	return entries, nil
}

// FirstServer returns the first server entry from a configuration blob.
// When multiple servers are configured only the first is used; this mirrors
// the dashboard contract where one stream drives one server.
func FirstServer(config json.RawMessage) (*ServerEntry, error) {
	entries, err := ParseServerSpec(config)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, errors.New("config has no server entries")
	}
	return &entries[0], nil
}
