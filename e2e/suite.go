package e2e

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"
)

// lockedBuffer is a thread-safe bytes.Buffer for capturing process output
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// Write implements io.Writer with mutex protection
func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

// String returns the buffer contents with mutex protection
func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

// Runner manages a phile process for e2e tests, driving its console
// over stdin and capturing its output
type Runner struct {
	t      *testing.T
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *lockedBuffer
	stderr *lockedBuffer
}

// NewRunner creates a runner, skipping the test when PHILE_BIN is unset
func NewRunner(t *testing.T) *Runner {
	t.Helper()

	if os.Getenv("PHILE_BIN") == "" {
		t.Skip("PHILE_BIN not set, skipping e2e test")
	}

	return &Runner{
		t:      t,
		stdout: &lockedBuffer{},
		stderr: &lockedBuffer{},
	}
}

// Start launches phile in the given working directory
func (r *Runner) Start(workDir string, args ...string) error {
	r.cmd = exec.Command(os.Getenv("PHILE_BIN"), args...)
	r.cmd.Dir = workDir
	r.cmd.Stdout = r.stdout
	r.cmd.Stderr = r.stderr

	stdin, err := r.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdin pipe: %w", err)
	}

	r.stdin = stdin

	if err := r.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start phile: %w", err)
	}

	return nil
}

// SendLine writes one console command to the process
func (r *Runner) SendLine(line string) error {
	_, err := io.WriteString(r.stdin, line+"\n")
	return err
}

// CloseInput closes stdin, which ends the console unit
func (r *Runner) CloseInput() error {
	return r.stdin.Close()
}

// Signal delivers a signal to the process
func (r *Runner) Signal(sig os.Signal) error {
	return r.cmd.Process.Signal(sig)
}

// WaitExit waits for the process to exit within the timeout
func (r *Runner) WaitExit(timeout time.Duration) error {
	done := make(chan error, 1)

	go func() {
		done <- r.cmd.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		r.cmd.Process.Kill()
		<-done

		return fmt.Errorf("process did not exit gracefully, killed\nOutput:\n%s", r.Output())
	}
}

// Stop sends SIGTERM and waits for graceful shutdown
func (r *Runner) Stop() error {
	if r.cmd == nil || r.cmd.Process == nil {
		return nil
	}

	if err := r.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to send SIGTERM: %w", err)
	}

	return r.WaitExit(10 * time.Second)
}

// WaitForOutput blocks until pattern appears in stdout or timeout
func (r *Runner) WaitForOutput(pattern string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for output pattern %q\nOutput:\n%s", pattern, r.Output())
		case <-ticker.C:
			if strings.Contains(r.Output(), pattern) {
				return nil
			}
		}
	}
}

// Output returns current stdout content
func (r *Runner) Output() string {
	return r.stdout.String()
}

// Stderr returns current stderr content
func (r *Runner) Stderr() string {
	return r.stderr.String()
}

// ExitCode returns process exit code (after exit)
func (r *Runner) ExitCode() int {
	if r.cmd == nil || r.cmd.ProcessState == nil {
		return -1
	}

	return r.cmd.ProcessState.ExitCode()
}
