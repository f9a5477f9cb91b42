// ABOUTME: Concurrency-safe registry of live streaming sessions
// ABOUTME: Maps connection ids to sessions and supports lookup by configuration id

package stream

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry tracks all live streaming sessions. It is the only state shared
// across sessions; all mutation goes through its lock.
type Registry struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	logger   *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		logger:   logger,
	}
}

// Register adds a session to the registry.
func (r *Registry) Register(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[s.ID()] = s
	r.logger.Info("client connected",
		"connection_id", s.ID(),
		"config_id", s.ConfigID(),
		"total_connections", len(r.sessions),
	)
}

// Unregister removes a session. Removing an unknown id is a no-op, so a
// session torn down twice cannot resurrect or double-log.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[id]; exists {
		delete(r.sessions, id)
		r.logger.Info("client disconnected",
			"connection_id", id,
			"total_connections", len(r.sessions),
		)
	}
}

// Get retrieves a session by connection id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	return s, ok
}

// ListByConfig returns all live sessions streaming the given configuration.
// Multiple simultaneous connections may share one configuration.
func (r *Registry) ListByConfig(configID int64) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sessions []*Session
	for _, s := range r.sessions {
		if s.ConfigID() == configID {
			sessions = append(sessions, s)
		}
	}
	return sessions
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll finalizes every live session. Used during gateway shutdown so no
// subprocess outlives the server.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	snapshot := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		snapshot = append(snapshot, s)
	}
	r.mu.RUnlock()

	for _, s := range snapshot {
		s.Close()
	}
}

// newConnectionID builds a unique connection identifier. The config id prefix
// keeps ids greppable in logs; the random suffix guarantees uniqueness even
// for connections opened within the same millisecond.
func newConnectionID(configID int64) string {
	return fmt.Sprintf("%d-%d-%s", configID, time.Now().UnixMilli(), uuid.NewString()[:8])
}
