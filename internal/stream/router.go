// ABOUTME: Routes prompt payloads to the stdin of live sessions for a configuration
// ABOUTME: Best-effort per-target delivery with distinct no-session and all-failed errors

package stream

import (
	"encoding/json"
	"errors"
	"log/slog"
)

// Router errors
var (
	// ErrNoActiveSessions means no live session exists for the configuration
	ErrNoActiveSessions = errors.New("no active sessions for configuration")

	// ErrDeliveryFailed means sessions existed but none accepted the prompt
	ErrDeliveryFailed = errors.New("prompt delivery failed for all sessions")
)

// Router forwards prompt payloads to the processes of all live sessions
// streaming a given configuration.
type Router struct {
	registry *Registry
	logger   *slog.Logger
}

// NewRouter creates a Router over the given registry.
func NewRouter(registry *Registry, logger *slog.Logger) *Router {
	return &Router{
		registry: registry,
		logger:   logger,
	}
}

// Route serializes the prompt and writes it, newline-delimited, to the stdin
// of every live session for configID. Delivery is best-effort per target: a
// failed write is logged and does not abort delivery to the others.
//
// Returns the number of sessions reached and the number of candidates.
// Returns ErrNoActiveSessions when no session exists, ErrDeliveryFailed when
// candidates existed but every write failed.
func (r *Router) Route(configID int64, prompt json.RawMessage) (delivered, total int, err error) {
	sessions := r.registry.ListByConfig(configID)
	if len(sessions) == 0 {
		return 0, 0, ErrNoActiveSessions
	}

	// Record delimiter: one prompt per line on the process's stdin
	payload := make([]byte, 0, len(prompt)+1)
	payload = append(payload, prompt...)
	payload = append(payload, '\n')

	for _, s := range sessions {
		if werr := s.ForwardInput(payload); werr != nil {
			r.logger.Warn("prompt delivery failed",
				"connection_id", s.ID(),
				"config_id", configID,
				"error", werr,
			)
			continue
		}
		delivered++
		r.logger.Debug("prompt delivered", "connection_id", s.ID(), "config_id", configID)
	}

	if delivered == 0 {
		return 0, len(sessions), ErrDeliveryFailed
	}
	return delivered, len(sessions), nil
}
