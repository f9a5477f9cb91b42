// ABOUTME: Launches MCP server subprocesses and exposes their stdio streams
// ABOUTME: Provides idempotent termination and a single-fire exit notification

package launcher

import (
	"fmt"
	"io"
	"os/exec"
	"sync"
)

// KilledExitCode is reported when a process was terminated by a signal
// rather than exiting on its own. It matches what exec.Cmd reports for
// signal-killed processes.
const KilledExitCode = -1

// Process is a launched subprocess with its three stdio streams.
// Stdout and Stderr reach EOF only after every byte the process wrote has
// been delivered to the reader; the Done channel fires exactly once, after
// the exit code is recorded and both streams are at end of stream.
type Process struct {
	cmd *exec.Cmd

	stdin   io.WriteCloser
	stdout  *io.PipeReader
	stderr  *io.PipeReader
	stdoutW *io.PipeWriter
	stderrW *io.PipeWriter

	done     chan struct{}
	exitCode int

	writeMu  sync.Mutex
	termOnce sync.Once
}

// Launch starts the given command with its arguments and wires up pipes for
// stdin, stdout, and stderr. The returned Process is already running.
//
// Output is routed through in-process pipes rather than cmd.StdoutPipe:
// Wait closes the exec pipes on exit and would discard anything a
// fast-exiting process left unread in them. With io.Pipe, exec's own copy
// goroutines hold Wait open until every byte has been handed to the reader,
// so no output is lost. The pipes are unbuffered; a slow reader
// back-pressures the process.
//
// Launch fails if the command cannot be started (not found, not executable,
// resource limits); the error wraps the underlying cause.
func Launch(command string, args []string) (*Process, error) {
	cmd := exec.Command(command, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("opening stdin pipe: %w", err)
	}

	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		_ = stdoutW.Close()
		_ = stderrW.Close()
		return nil, fmt.Errorf("starting %s: %w", command, err)
	}

	p := &Process{
		cmd:     cmd,
		stdin:   stdin,
		stdout:  stdoutR,
		stderr:  stderrR,
		stdoutW: stdoutW,
		stderrW: stderrW,
		done:    make(chan struct{}),
	}

	go p.wait()

	return p, nil
}

// wait reaps the process and records its exit code. cmd.Wait returns only
// once both output copiers have drained, so closing the pipe writers here
// delivers EOF to the readers strictly after the last byte of output.
// Must only run once, from Launch.
func (p *Process) wait() {
	err := p.cmd.Wait()
	switch {
	case p.cmd.ProcessState != nil:
		// Normal exit, non-zero exit, or killed by signal (-1)
		p.exitCode = p.cmd.ProcessState.ExitCode()
	case err == nil:
		p.exitCode = 0
	default:
		p.exitCode = KilledExitCode
	}
	_ = p.stdoutW.Close()
	_ = p.stderrW.Close()
	close(p.done)
}

// Write sends data to the process's standard input.
// Safe for concurrent use; writes are serialized.
func (p *Process) Write(data []byte) (int, error) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.stdin.Write(data)
}

// Stdout returns the process's standard output stream.
func (p *Process) Stdout() io.Reader {
	return p.stdout
}

// Stderr returns the process's standard error stream.
func (p *Process) Stderr() io.Reader {
	return p.stderr
}

// Done returns a channel that is closed once the process has exited and its
// exit code is available.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// ExitCode returns the recorded exit code. Only valid after Done has fired;
// KilledExitCode indicates termination by signal.
func (p *Process) ExitCode() int {
	select {
	case <-p.done:
		return p.exitCode
	default:
		return KilledExitCode
	}
}

// Running reports whether the process has not yet exited.
func (p *Process) Running() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Terminate forcefully stops the process. It is idempotent and a no-op once
// the process has already exited. Stdin is closed first so well-behaved
// servers can exit on EOF before the kill lands. The output readers are
// closed too: once the consumer is gone, the copy goroutines inside exec
// must be unblocked or Wait would never return.
func (p *Process) Terminate() {
	p.termOnce.Do(func() {
		p.writeMu.Lock()
		_ = p.stdin.Close()
		p.writeMu.Unlock()

		select {
		case <-p.done:
			// Already exited
		default:
			if p.cmd.Process != nil {
				_ = p.cmd.Process.Kill()
			}
		}

		_ = p.stdout.Close()
		_ = p.stderr.Close()
	})
}
