// ABOUTME: Streaming session state machine owning one client connection end-to-end
// ABOUTME: Relays subprocess output as SSE events with heartbeats and single-fire teardown

package stream

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// ErrSessionClosed is returned when writing to a session that has been
// finalized.
var ErrSessionClosed = errors.New("session closed")

// ErrProcessNotStarted is returned when a prompt arrives before the session's
// process has been launched. This is the register-before-launch gap: the
// prompt is simply not deliverable yet.
var ErrProcessNotStarted = errors.New("process not started")

// ErrProcessExited is returned when forwarding input to a process that has
// already terminated.
var ErrProcessExited = errors.New("process exited")

// maxLineSize bounds a single subprocess output line (1 MiB).
const maxLineSize = 1024 * 1024

// stderrChunkSize is the read buffer for stderr draining. Stderr is relayed
// chunk-wise rather than line-wise, matching how clients display diagnostics.
const stderrChunkSize = 4096

// Proc is the subprocess surface a session drives. launcher.Process
// implements it; tests substitute fakes.
type Proc interface {
	Write(data []byte) (int, error)
	Stdout() io.Reader
	Stderr() io.Reader
	Done() <-chan struct{}
	ExitCode() int
	Running() bool
	Terminate()
}

// LaunchFunc starts a subprocess for a session.
type LaunchFunc func(command string, args []string) (Proc, error)

// SessionConfig carries the collaborators a session needs.
type SessionConfig struct {
	ConfigID          int64
	Writer            io.Writer
	Flusher           http.Flusher
	Registry          *Registry
	Launch            LaunchFunc
	HeartbeatInterval time.Duration
	Logger            *slog.Logger
}

// Session owns one client connection: it registers itself, launches the
// configured process, relays output as SSE events, accepts forwarded input,
// emits heartbeats, and tears everything down exactly once on the first
// terminal condition (client disconnect, process exit, or write failure).
type Session struct {
	id        string
	configID  int64
	w         io.Writer
	flusher   http.Flusher
	registry  *Registry
	launch    LaunchFunc
	heartbeat time.Duration
	logger    *slog.Logger

	// mu serializes all sink writes and guards closed/proc.
	mu     sync.Mutex
	closed bool
	proc   Proc

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	drainDone sync.WaitGroup
}

// NewSession creates a session with a freshly minted connection id.
// The session is not registered until Run is called.
func NewSession(cfg SessionConfig) *Session {
	id := newConnectionID(cfg.ConfigID)
	return &Session{
		id:        id,
		done:      make(chan struct{}),
		configID:  cfg.ConfigID,
		w:         cfg.Writer,
		flusher:   cfg.Flusher,
		registry:  cfg.Registry,
		launch:    cfg.Launch,
		heartbeat: cfg.HeartbeatInterval,
		logger:    cfg.Logger.With("connection_id", id),
	}
}

// ID returns the session's connection identifier.
func (s *Session) ID() string {
	return s.id
}

// ConfigID returns the id of the configuration this session streams.
func (s *Session) ConfigID() int64 {
	return s.configID
}

// Run drives the session to completion and blocks until teardown is done.
// The caller must have committed SSE response headers before calling.
//
// connected is the payload for the initial connected event. The session
// registers itself before launching, so a prompt arriving in the gap finds
// the session but no process yet.
func (s *Session) Run(ctx context.Context, command string, args []string, connected any) {
	s.registry.Register(s)

	if err := s.writeJSON(EventConnected, connected); err != nil {
		s.finalize(nil)
		return
	}

	proc, err := s.launch(command, args)
	if err != nil {
		s.logger.Error("failed to launch server process", "command", command, "error", err)
		_ = s.writeJSON(EventError, map[string]string{"error": err.Error()})
		s.finalize(nil)
		return
	}

	s.mu.Lock()
	if s.closed {
		// Torn down while launching (shutdown racing the launch)
		s.mu.Unlock()
		proc.Terminate()
		return
	}
	s.proc = proc
	s.mu.Unlock()

	s.logger.Info("server process launched", "command", command)

	s.wg.Add(3)
	s.drainDone.Add(2)
	go s.drainStdout(proc.Stdout())
	go s.drainStderr(proc.Stderr())
	go s.heartbeatLoop()

	select {
	case <-ctx.Done():
		// Client disconnect is the primary cancellation signal
		s.finalize(nil)

	case <-proc.Done():
		// Let the drains flush remaining output before the close event.
		// Done fires only once the streams are at EOF, so this returns
		// promptly.
		s.waitDrains()
		code := proc.ExitCode()
		s.finalize(&code)

	case <-s.done:
		// A write failure already triggered teardown
	}

	// No goroutine may touch the response writer once Run returns
	s.wg.Wait()
}

// ForwardInput writes a payload to the process's standard input. It is the
// one cross-session mutation the registry exposes, used by the prompt router.
func (s *Session) ForwardInput(payload []byte) error {
	s.mu.Lock()
	proc, closed := s.proc, s.closed
	s.mu.Unlock()

	if closed {
		return ErrSessionClosed
	}
	if proc == nil {
		return ErrProcessNotStarted
	}
	if !proc.Running() {
		return ErrProcessExited
	}

	_, err := proc.Write(payload)
	return err
}

// Close finalizes the session without emitting a close event. Used for
// externally driven teardown (gateway shutdown).
func (s *Session) Close() {
	s.finalize(nil)
}

// finalize performs the single-fire teardown: stop the heartbeat and drains,
// optionally emit the final close event, unregister, and terminate the
// process. Safe to call from any goroutine, any number of times.
func (s *Session) finalize(exitCode *int) {
	s.closeOnce.Do(func() {
		close(s.done)

		s.mu.Lock()
		if exitCode != nil && !s.closed {
			if err := WriteJSONEvent(s.w, EventClose, map[string]int{"code": *exitCode}); err == nil {
				s.flusher.Flush()
			}
		}
		s.closed = true
		proc := s.proc
		s.mu.Unlock()

		s.registry.Unregister(s.id)

		if proc != nil {
			proc.Terminate()
		}

		if exitCode != nil {
			s.logger.Info("session closed", "exit_code", *exitCode)
		} else {
			s.logger.Info("session closed")
		}
	})
}

// waitDrains blocks until the stdout/stderr drains have finished. The
// heartbeat goroutine observes done separately, so only the two drains are
// waited on here via a parallel latch.
func (s *Session) waitDrains() {
	s.drainDone.Wait()
}

// drainStdout relays each line of process output as a message event.
// Partial lines are buffered until completed or until stream end.
func (s *Session) drainStdout(r io.Reader) {
	defer s.wg.Done()
	defer s.drainDone.Done()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if err := s.writeRaw(EventMessage, line); err != nil {
			s.finalize(nil)
			return
		}
	}
}

// drainStderr relays chunks of process error output as error events.
func (s *Session) drainStderr(r io.Reader) {
	defer s.wg.Done()
	defer s.drainDone.Done()

	buf := make([]byte, stderrChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			text := string(buf[:n])
			if werr := s.writeJSON(EventError, map[string]string{"error": text}); werr != nil {
				s.finalize(nil)
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// heartbeatLoop emits keep-alive events at the configured interval,
// independent of data traffic, until the session is torn down.
func (s *Session) heartbeatLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			payload := map[string]int64{"timestamp": time.Now().UnixMilli()}
			if err := s.writeJSON(EventHeartbeat, payload); err != nil {
				s.finalize(nil)
				return
			}
		}
	}
}

// writeRaw frames an event with a verbatim payload onto the sink.
// Returns ErrSessionClosed once teardown has begun; no event other than the
// final close may be written after that point.
func (s *Session) writeRaw(event, payload string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if err := WriteEvent(s.w, event, payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// writeJSON frames an event with a JSON payload onto the sink.
func (s *Session) writeJSON(event string, data any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if err := WriteJSONEvent(s.w, event, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
