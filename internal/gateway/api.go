// ABOUTME: HTTP API handlers for configuration CRUD, SSE streaming, and prompt delivery
// ABOUTME: Provides /api/configs, /sse/{id}, and /api/prompt/{id} endpoints

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/2389/mcp-sse-gateway/internal/store"
	"github.com/2389/mcp-sse-gateway/internal/stream"
)

// ConfigPayload is the JSON request body for POST/PUT /api/configs.
type ConfigPayload struct {
	Name   string          `json:"name"`
	Config json.RawMessage `json:"config"`
}

// PromptRequest is the JSON request body for POST /api/prompt/{id}.
type PromptRequest struct {
	Prompt json.RawMessage `json:"prompt"`
}

// PromptResponse is the JSON response for a successful prompt delivery.
type PromptResponse struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	ConnectionCount int    `json:"connectionCount"`
}

// connectedPayload is the data for the initial connected SSE event.
type connectedPayload struct {
	ID     int64            `json:"id"`
	Config *store.MCPConfig `json:"config"`
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// sendJSON writes a JSON response with the given status code.
func (g *Gateway) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Error("failed to encode response", "error", err)
	}
}

// parseIDPath extracts the numeric id segment after the given prefix.
func parseIDPath(path, prefix string) (int64, error) {
	idStr := strings.TrimSuffix(strings.TrimPrefix(path, prefix), "/")
	if idStr == "" || strings.Contains(idStr, "/") {
		return 0, errors.New("invalid path")
	}
	return strconv.ParseInt(idStr, 10, 64)
}

// parseConfigPayload parses a ConfigPayload from the request body. Creation
// accepts any config blob; only updates insist on a well-formed mcpServers
// section, so the check lives in handleUpdateConfig.
func parseConfigPayload(r *http.Request) (*ConfigPayload, error) {
	var payload ConfigPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return nil, errors.New("invalid JSON body")
	}
	if payload.Name == "" || len(payload.Config) == 0 {
		return nil, errors.New("Name and config are required")
	}
	return &payload, nil
}

// handleConfigs handles GET (list) and POST (create) on /api/configs.
func (g *Gateway) handleConfigs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		g.handleListConfigs(w, r)
	case http.MethodPost:
		g.handleCreateConfig(w, r)
	default:
		g.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleListConfigs returns all stored configurations as a JSON array.
func (g *Gateway) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := g.store.ListConfigs(r.Context())
	if err != nil {
		g.logger.Error("failed to list configurations", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if configs == nil {
		configs = []*store.MCPConfig{}
	}
	g.sendJSON(w, http.StatusOK, configs)
}

// handleCreateConfig stores a new configuration record.
func (g *Gateway) handleCreateConfig(w http.ResponseWriter, r *http.Request) {
	payload, err := parseConfigPayload(r)
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := g.store.CreateConfig(r.Context(), payload.Name, payload.Config)
	if err != nil {
		g.logger.Error("failed to create configuration", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	g.logger.Info("configuration created", "config_id", created.ID, "name", created.Name)
	g.sendJSON(w, http.StatusCreated, created)
}

// handleConfigByID handles GET, PUT, and DELETE on /api/configs/{id}.
func (g *Gateway) handleConfigByID(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDPath(r.URL.Path, "/api/configs/")
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "Invalid configuration ID")
		return
	}

	switch r.Method {
	case http.MethodGet:
		g.handleGetConfig(w, r, id)
	case http.MethodPut:
		g.handleUpdateConfig(w, r, id)
	case http.MethodDelete:
		g.handleDeleteConfig(w, r, id)
	default:
		g.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (g *Gateway) handleGetConfig(w http.ResponseWriter, r *http.Request, id int64) {
	cfg, err := g.store.GetConfig(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			g.sendJSONError(w, http.StatusNotFound, "Configuration not found")
			return
		}
		g.logger.Error("failed to load configuration", "config_id", id, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	g.sendJSON(w, http.StatusOK, cfg)
}

func (g *Gateway) handleUpdateConfig(w http.ResponseWriter, r *http.Request, id int64) {
	payload, err := parseConfigPayload(r)
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := store.ParseServerSpec(payload.Config); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "Configuration must have a mcpServers property")
		return
	}

	updated, err := g.store.UpdateConfig(r.Context(), id, payload.Name, payload.Config)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			g.sendJSONError(w, http.StatusNotFound, "Configuration not found")
			return
		}
		g.logger.Error("failed to update configuration", "config_id", id, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	g.logger.Info("configuration updated", "config_id", id, "name", updated.Name)
	g.sendJSON(w, http.StatusOK, updated)
}

func (g *Gateway) handleDeleteConfig(w http.ResponseWriter, r *http.Request, id int64) {
	if err := g.store.DeleteConfig(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			g.sendJSONError(w, http.StatusNotFound, "Configuration not found")
			return
		}
		g.logger.Error("failed to delete configuration", "config_id", id, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	g.logger.Info("configuration deleted", "config_id", id)
	g.sendJSON(w, http.StatusOK, map[string]string{"message": "Configuration deleted successfully"})
}

// handleSSE handles GET /sse/{configId}: loads the configuration, launches
// its first server entry as a subprocess, and streams its output as SSE
// until the process exits or the client disconnects.
func (g *Gateway) handleSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		g.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id, err := parseIDPath(r.URL.Path, "/sse/")
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "Invalid configuration ID")
		return
	}

	cfg, err := g.store.GetConfig(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			g.sendJSONError(w, http.StatusNotFound, "Configuration not found")
			return
		}
		g.logger.Error("failed to load configuration", "config_id", id, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	server, err := store.FirstServer(cfg.Config)
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "Configuration must have a mcpServers property")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		g.logger.Error("streaming not supported")
		g.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	session := stream.NewSession(stream.SessionConfig{
		ConfigID:          id,
		Writer:            w,
		Flusher:           flusher,
		Registry:          g.registry,
		Launch:            g.launch,
		HeartbeatInterval: g.config.Stream.HeartbeatInterval,
		Logger:            g.logger.With("component", "session"),
	})

	session.Run(r.Context(), server.Command, server.Args, connectedPayload{ID: id, Config: cfg})
}

// handlePrompt handles POST /api/prompt/{configId}: forwards a prompt to
// the stdin of every live session streaming the configuration.
func (g *Gateway) handlePrompt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		g.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id, err := parseIDPath(r.URL.Path, "/api/prompt/")
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "Invalid configuration ID")
		return
	}

	var req PromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Prompt) == 0 || string(req.Prompt) == "null" {
		g.sendJSONError(w, http.StatusBadRequest, "Prompt is required")
		return
	}

	delivered, total, err := g.router.Route(id, req.Prompt)
	switch {
	case errors.Is(err, stream.ErrNoActiveSessions):
		g.sendJSONError(w, http.StatusNotFound, "No active connections found for this configuration")
		return
	case errors.Is(err, stream.ErrDeliveryFailed):
		g.sendJSONError(w, http.StatusInternalServerError, "Failed to send prompt to any active connections")
		return
	case err != nil:
		g.logger.Error("failed to route prompt", "config_id", id, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	g.sendJSON(w, http.StatusOK, PromptResponse{
		Success:         true,
		Message:         formatPromptMessage(delivered),
		ConnectionCount: total,
	})
}

// formatPromptMessage builds the success message for prompt delivery.
func formatPromptMessage(delivered int) string {
	return "Prompt sent to " + strconv.Itoa(delivered) + " active connections"
}
