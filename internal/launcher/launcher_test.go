// ABOUTME: Tests for subprocess launching and lifecycle management
// ABOUTME: Uses real processes (cat, sh, true) so these are Unix-only

package launcher

import (
	"bufio"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLaunch_CommandNotFound(t *testing.T) {
	_, err := Launch("definitely-not-a-real-command-xyz", nil)
	require.Error(t, err)
}

func TestLaunch_EchoRoundTrip(t *testing.T) {
	p, err := Launch("cat", nil)
	require.NoError(t, err)
	defer p.Terminate()

	_, err = p.Write([]byte("hello\n"))
	require.NoError(t, err)

	scanner := bufio.NewScanner(p.Stdout())
	require.True(t, scanner.Scan(), "expected a line of output")
	assert.Equal(t, "hello", scanner.Text())
}

func TestLaunch_FastExitOutputNotLost(t *testing.T) {
	// A process that writes and exits immediately must still deliver its
	// output; Done fires only after the streams are fully drained.
	p, err := Launch("sh", []string{"-c", "echo hello"})
	require.NoError(t, err)

	out, err := io.ReadAll(p.Stdout())
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(out))

	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}
	assert.Equal(t, 0, p.ExitCode())
}

func TestLaunch_ExitCodeZero(t *testing.T) {
	p, err := Launch("true", nil)
	require.NoError(t, err)

	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}

	assert.Equal(t, 0, p.ExitCode())
	assert.False(t, p.Running())
}

func TestLaunch_NonZeroExitCode(t *testing.T) {
	p, err := Launch("sh", []string{"-c", "exit 3"})
	require.NoError(t, err)

	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}

	assert.Equal(t, 3, p.ExitCode())
}

func TestLaunch_StderrStream(t *testing.T) {
	p, err := Launch("sh", []string{"-c", "echo oops >&2"})
	require.NoError(t, err)

	scanner := bufio.NewScanner(p.Stderr())
	require.True(t, scanner.Scan(), "expected stderr output")
	assert.Equal(t, "oops", scanner.Text())

	<-p.Done()
}

func TestTerminate_KillsLongRunningProcess(t *testing.T) {
	p, err := Launch("sleep", []string{"60"})
	require.NoError(t, err)
	assert.True(t, p.Running())

	p.Terminate()

	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not die after Terminate")
	}

	assert.Equal(t, KilledExitCode, p.ExitCode())
}

func TestTerminate_Idempotent(t *testing.T) {
	p, err := Launch("sleep", []string{"60"})
	require.NoError(t, err)

	p.Terminate()
	p.Terminate() // second call must not panic or block
	<-p.Done()
}

func TestTerminate_AfterExitIsNoop(t *testing.T) {
	p, err := Launch("true", nil)
	require.NoError(t, err)
	<-p.Done()

	p.Terminate()
	assert.Equal(t, 0, p.ExitCode())
}

func TestExitCode_BeforeExit(t *testing.T) {
	p, err := Launch("sleep", []string{"60"})
	require.NoError(t, err)
	defer p.Terminate()

	// Sentinel until the process actually exits
	assert.Equal(t, KilledExitCode, p.ExitCode())
}
