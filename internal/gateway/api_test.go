// ABOUTME: Tests for the gateway HTTP API handlers
// ABOUTME: Covers config CRUD, SSE streaming round-trips, and prompt delivery

package gateway

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/mcp-sse-gateway/internal/config"
	"github.com/2389/mcp-sse-gateway/internal/store"
)

func newTestGateway(t *testing.T, heartbeat time.Duration) *Gateway {
	t.Helper()
	cfg := &config.Config{}
	cfg.Server.HTTPAddr = "127.0.0.1:0"
	cfg.Database.Path = ":memory:"
	cfg.Stream.HeartbeatInterval = heartbeat

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	g, err := New(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() {
		g.registry.CloseAll()
		_ = g.store.Close()
	})
	return g
}

func newTestServer(t *testing.T, heartbeat time.Duration) (*Gateway, *httptest.Server) {
	t.Helper()
	g := newTestGateway(t, heartbeat)
	ts := httptest.NewServer(g.httpServer.Handler)
	t.Cleanup(ts.Close)
	return g, ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	res, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return res
}

func decodeBody[T any](t *testing.T, res *http.Response) T {
	t.Helper()
	defer res.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(res.Body).Decode(&v))
	return v
}

func createConfig(t *testing.T, baseURL, name, blob string) *store.MCPConfig {
	t.Helper()
	res := postJSON(t, baseURL+"/api/configs", map[string]any{
		"name":   name,
		"config": json.RawMessage(blob),
	})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	cfg := decodeBody[*store.MCPConfig](t, res)
	return cfg
}

const catConfig = `{"mcpServers": {"cat": {"command": "cat", "args": []}}}`

func TestConfigCRUD(t *testing.T) {
	_, ts := newTestServer(t, time.Hour)

	created := createConfig(t, ts.URL, "echo-server", catConfig)
	assert.Equal(t, "echo-server", created.Name)
	assert.NotZero(t, created.ID)

	// List
	res, err := http.Get(ts.URL + "/api/configs")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	list := decodeBody[[]*store.MCPConfig](t, res)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)

	// Get
	res, err = http.Get(fmt.Sprintf("%s/api/configs/%d", ts.URL, created.ID))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	got := decodeBody[*store.MCPConfig](t, res)
	assert.Equal(t, created.Name, got.Name)

	// Update
	updateBody, _ := json.Marshal(map[string]any{
		"name":   "renamed",
		"config": json.RawMessage(catConfig),
	})
	req, err := http.NewRequest(http.MethodPut, fmt.Sprintf("%s/api/configs/%d", ts.URL, created.ID), bytes.NewReader(updateBody))
	require.NoError(t, err)
	res, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	updated := decodeBody[*store.MCPConfig](t, res)
	assert.Equal(t, "renamed", updated.Name)

	// Delete
	req, err = http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/api/configs/%d", ts.URL, created.ID), nil)
	require.NoError(t, err)
	res, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	msg := decodeBody[map[string]string](t, res)
	assert.Equal(t, "Configuration deleted successfully", msg["message"])

	// Gone
	res, err = http.Get(fmt.Sprintf("%s/api/configs/%d", ts.URL, created.ID))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	errBody := decodeBody[map[string]string](t, res)
	assert.Equal(t, "Configuration not found", errBody["error"])
}

func TestCreateConfig_Validation(t *testing.T) {
	_, ts := newTestServer(t, time.Hour)

	tests := []struct {
		name    string
		body    map[string]any
		wantErr string
	}{
		{
			name:    "missing name",
			body:    map[string]any{"config": json.RawMessage(catConfig)},
			wantErr: "Name and config are required",
		},
		{
			name:    "missing config",
			body:    map[string]any{"name": "x"},
			wantErr: "Name and config are required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := postJSON(t, ts.URL+"/api/configs", tt.body)
			assert.Equal(t, http.StatusBadRequest, res.StatusCode)
			errBody := decodeBody[map[string]string](t, res)
			assert.Equal(t, tt.wantErr, errBody["error"])
		})
	}
}

func TestCreateConfig_AcceptsAnyConfigShape(t *testing.T) {
	// Creation stores the blob as-is; only updates demand mcpServers.
	_, ts := newTestServer(t, time.Hour)

	res := postJSON(t, ts.URL+"/api/configs", map[string]any{
		"name":   "draft",
		"config": json.RawMessage(`{"other": true}`),
	})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	created := decodeBody[*store.MCPConfig](t, res)
	assert.Equal(t, "draft", created.Name)
}

func TestUpdateConfig_RequiresMCPServers(t *testing.T) {
	_, ts := newTestServer(t, time.Hour)
	cfg := createConfig(t, ts.URL, "echo-server", catConfig)

	updateBody, _ := json.Marshal(map[string]any{
		"name":   "renamed",
		"config": json.RawMessage(`{"other": true}`),
	})
	req, err := http.NewRequest(http.MethodPut, fmt.Sprintf("%s/api/configs/%d", ts.URL, cfg.ID), bytes.NewReader(updateBody))
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	errBody := decodeBody[map[string]string](t, res)
	assert.Equal(t, "Configuration must have a mcpServers property", errBody["error"])
}

func TestGetConfig_InvalidID(t *testing.T) {
	_, ts := newTestServer(t, time.Hour)

	res, err := http.Get(ts.URL + "/api/configs/not-a-number")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	errBody := decodeBody[map[string]string](t, res)
	assert.Equal(t, "Invalid configuration ID", errBody["error"])
}

func TestPrompt_NoActiveConnections(t *testing.T) {
	_, ts := newTestServer(t, time.Hour)

	res := postJSON(t, ts.URL+"/api/prompt/1", map[string]any{"prompt": "hello"})
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	errBody := decodeBody[map[string]string](t, res)
	assert.Equal(t, "No active connections found for this configuration", errBody["error"])
}

func TestPrompt_Required(t *testing.T) {
	_, ts := newTestServer(t, time.Hour)

	res := postJSON(t, ts.URL+"/api/prompt/1", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	errBody := decodeBody[map[string]string](t, res)
	assert.Equal(t, "Prompt is required", errBody["error"])
}

func TestSSE_ConfigNotFound(t *testing.T) {
	_, ts := newTestServer(t, time.Hour)

	res, err := http.Get(ts.URL + "/sse/99")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	errBody := decodeBody[map[string]string](t, res)
	assert.Equal(t, "Configuration not found", errBody["error"])
}

// sseClient reads events from a live SSE response.
type sseClient struct {
	res    *http.Response
	reader *bufio.Reader
	cancel context.CancelFunc
}

func connectSSE(t *testing.T, baseURL string, configID int64) *sseClient {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/sse/%d", baseURL, configID), nil)
	require.NoError(t, err)

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "text/event-stream", res.Header.Get("Content-Type"))

	c := &sseClient{res: res, reader: bufio.NewReader(res.Body), cancel: cancel}
	t.Cleanup(c.close)
	return c
}

func (c *sseClient) close() {
	c.cancel()
	_ = c.res.Body.Close()
}

// next reads one SSE record, failing the test if none arrives.
func (c *sseClient) next(t *testing.T) (name, data string) {
	t.Helper()
	for {
		line, err := c.reader.ReadString('\n')
		require.NoError(t, err, "reading SSE stream")
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "":
			if name != "" {
				return name, data
			}
		}
	}
}

func TestSSE_EchoRoundTrip(t *testing.T) {
	_, ts := newTestServer(t, time.Hour)
	cfg := createConfig(t, ts.URL, "echo", catConfig)

	client := connectSSE(t, ts.URL, cfg.ID)

	name, data := client.next(t)
	require.Equal(t, "connected", name)
	var connected struct {
		ID     int64            `json:"id"`
		Config *store.MCPConfig `json:"config"`
	}
	require.NoError(t, json.Unmarshal([]byte(data), &connected))
	assert.Equal(t, cfg.ID, connected.ID)
	require.NotNil(t, connected.Config)
	assert.Equal(t, "echo", connected.Config.Name)

	// The process may not be attached the instant connected arrives;
	// retry until delivery succeeds.
	var prompt PromptResponse
	promptBody := []byte(`{"prompt": {"text": "ping"}}`)
	require.Eventually(t, func() bool {
		res, err := http.Post(fmt.Sprintf("%s/api/prompt/%d", ts.URL, cfg.ID),
			"application/json", bytes.NewReader(promptBody))
		if err != nil {
			return false
		}
		defer res.Body.Close()
		if res.StatusCode != http.StatusOK {
			return false
		}
		return json.NewDecoder(res.Body).Decode(&prompt) == nil
	}, 5*time.Second, 20*time.Millisecond)

	assert.True(t, prompt.Success)
	assert.Equal(t, 1, prompt.ConnectionCount)
	assert.Equal(t, "Prompt sent to 1 active connections", prompt.Message)

	// cat echoes the prompt line back as a message event
	name, data = client.next(t)
	assert.Equal(t, "message", name)
	assert.JSONEq(t, `{"text":"ping"}`, data)
}

func TestSSE_BadCommand(t *testing.T) {
	_, ts := newTestServer(t, time.Hour)
	cfg := createConfig(t, ts.URL, "broken",
		`{"mcpServers": {"broken": {"command": "definitely-not-a-real-binary-xyz", "args": []}}}`)

	client := connectSSE(t, ts.URL, cfg.ID)

	name, _ := client.next(t)
	require.Equal(t, "connected", name)

	name, data := client.next(t)
	assert.Equal(t, "error", name)
	assert.Contains(t, data, "error")
}

func TestSSE_CloseEventOnExit(t *testing.T) {
	_, ts := newTestServer(t, time.Hour)
	cfg := createConfig(t, ts.URL, "exiting",
		`{"mcpServers": {"true": {"command": "true", "args": []}}}`)

	client := connectSSE(t, ts.URL, cfg.ID)

	name, _ := client.next(t)
	require.Equal(t, "connected", name)

	name, data := client.next(t)
	assert.Equal(t, "close", name)
	assert.JSONEq(t, `{"code":0}`, data)
}

func TestSSE_FastExitDeliversOutput(t *testing.T) {
	// A server that prints one line and exits immediately must still get
	// its output framed as a message event before the close event.
	_, ts := newTestServer(t, time.Hour)
	cfg := createConfig(t, ts.URL, "one-shot",
		`{"mcpServers": {"echo": {"command": "sh", "args": ["-c", "echo hello"]}}}`)

	client := connectSSE(t, ts.URL, cfg.ID)

	name, _ := client.next(t)
	require.Equal(t, "connected", name)

	name, data := client.next(t)
	require.Equal(t, "message", name)
	assert.Equal(t, "hello", data)

	name, data = client.next(t)
	assert.Equal(t, "close", name)
	assert.JSONEq(t, `{"code":0}`, data)
}

func TestSSE_Heartbeat(t *testing.T) {
	_, ts := newTestServer(t, 30*time.Millisecond)
	cfg := createConfig(t, ts.URL, "idle",
		`{"mcpServers": {"sleep": {"command": "sleep", "args": ["60"]}}}`)

	client := connectSSE(t, ts.URL, cfg.ID)

	name, _ := client.next(t)
	require.Equal(t, "connected", name)

	name, data := client.next(t)
	assert.Equal(t, "heartbeat", name)
	assert.Contains(t, data, "timestamp")
}

func TestSSE_UsesFirstServerEntry(t *testing.T) {
	_, ts := newTestServer(t, time.Hour)
	cfg := createConfig(t, ts.URL, "multi",
		`{"mcpServers": {"first": {"command": "true", "args": []}, "second": {"command": "sleep", "args": ["60"]}}}`)

	client := connectSSE(t, ts.URL, cfg.ID)

	name, _ := client.next(t)
	require.Equal(t, "connected", name)

	// "true" exits immediately; if "second" had been picked the stream
	// would idle instead of closing.
	name, data := client.next(t)
	assert.Equal(t, "close", name)
	assert.JSONEq(t, `{"code":0}`, data)
}
