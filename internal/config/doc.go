// Package config loads and validates the mcp-sse-gateway YAML configuration.
//
// # File Format
//
// The configuration file is YAML with the following sections:
//
//	server:
//	  http_addr: "localhost:3000"
//
//	tailscale:
//	  enabled: false
//	  hostname: "mcp-gateway"
//	  auth_key: "${TS_AUTHKEY}"
//
//	database:
//	  path: "~/.local/share/mcp-gateway/gateway.db"
//
//	stream:
//	  heartbeat_interval: "30s"
//
//	logging:
//	  level: "info"
//	  format: "text"
//
// # Environment Variable Expansion
//
// Values in the format ${VAR_NAME} are replaced with the corresponding
// environment variable before parsing. Unset variables expand to the
// empty string.
//
// # Durations
//
// Duration fields accept Go duration strings ("30s", "1m30s"). The
// stream.heartbeat_interval defaults to 30s when omitted.
package config
