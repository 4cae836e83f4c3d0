package e2e

import (
	"testing"
	"time"
)

func Test_Sigterm_GracefulShutdown(t *testing.T) {
	r := NewRunner(t)

	if err := r.Start(t.TempDir()); err != nil {
		t.Fatalf("failed to start: %v", err)
	}

	if err := r.WaitForOutput("phile>", 10*time.Second); err != nil {
		t.Fatal(err)
	}

	if err := r.Stop(); err != nil {
		t.Fatalf("graceful shutdown failed: %v", err)
	}

	if code := r.ExitCode(); code != 0 {
		t.Fatalf("expected exit code 0, got %d\nStderr:\n%s", code, r.Stderr())
	}
}
