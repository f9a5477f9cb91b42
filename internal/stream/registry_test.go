// ABOUTME: Tests for the connection registry
// ABOUTME: Covers registration, lookup by config, removal, and concurrent access

package stream

import (
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSession(t *testing.T, registry *Registry, configID int64) *Session {
	t.Helper()
	out := &sink{}
	return NewSession(SessionConfig{
		ConfigID: configID,
		Writer:   out,
		Flusher:  out,
		Registry: registry,
		Logger:   testLogger(),
	})
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	registry := NewRegistry(testLogger())
	s := newTestSession(t, registry, 1)

	registry.Register(s)
	assert.Equal(t, 1, registry.Len())

	got, ok := registry.Get(s.ID())
	require.True(t, ok)
	assert.Same(t, s, got)

	_, ok = registry.Get("nope")
	assert.False(t, ok)
}

func TestRegistry_Unregister(t *testing.T) {
	registry := NewRegistry(testLogger())
	s := newTestSession(t, registry, 1)
	registry.Register(s)

	registry.Unregister(s.ID())
	assert.Zero(t, registry.Len())

	// Removing twice must not panic or resurrect anything
	registry.Unregister(s.ID())
	assert.Zero(t, registry.Len())
}

func TestRegistry_ListByConfig(t *testing.T) {
	registry := NewRegistry(testLogger())

	a1 := newTestSession(t, registry, 1)
	a2 := newTestSession(t, registry, 1)
	b := newTestSession(t, registry, 2)
	for _, s := range []*Session{a1, a2, b} {
		registry.Register(s)
	}

	matches := registry.ListByConfig(1)
	assert.Len(t, matches, 2)
	for _, s := range matches {
		assert.Equal(t, int64(1), s.ConfigID())
	}

	assert.Len(t, registry.ListByConfig(2), 1)
	assert.Empty(t, registry.ListByConfig(99))
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	registry := NewRegistry(testLogger())

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(configID int64) {
			defer wg.Done()
			s := newTestSession(t, registry, configID)
			registry.Register(s)
			registry.ListByConfig(configID)
			registry.Unregister(s.ID())
		}(int64(i % 3))
	}
	wg.Wait()

	assert.Zero(t, registry.Len())
}

func TestNewConnectionID_Format(t *testing.T) {
	id := newConnectionID(42)
	assert.True(t, strings.HasPrefix(id, "42-"), "id %q should carry the config id", id)

	parts := strings.Split(id, "-")
	require.Len(t, parts, 3, "id %q should be configID-timestamp-suffix", id)
	assert.Len(t, parts[2], 8)
}

func TestNewConnectionID_Unique(t *testing.T) {
	seen := make(map[string]struct{})
	for range 100 {
		id := newConnectionID(1)
		if _, dup := seen[id]; dup {
			t.Fatal("duplicate connection id:", id)
		}
		seen[id] = struct{}{}
	}
}

func TestRegistry_CloseAll(t *testing.T) {
	registry := NewRegistry(testLogger())
	for i := range 3 {
		registry.Register(newTestSession(t, registry, int64(i)))
	}
	require.Equal(t, 3, registry.Len())

	registry.CloseAll()
	assert.Zero(t, registry.Len())
}
