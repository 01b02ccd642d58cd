// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package testutil

import (
	"bytes"
	"io"
	"os"
	"sync"
	"testing"

	"grimm.is/hostblock/internal/logging"
)

// RequireKernel skips the test unless HOSTBLOCK_KERNEL_TEST is set and the
// process runs as root. Tests that open a real NFQUEUE or touch nftables
// need both.
func RequireKernel(t *testing.T) {
	t.Helper()
	if os.Getenv("HOSTBLOCK_KERNEL_TEST") == "" {
		t.Skip("Skipping test: requires HOSTBLOCK_KERNEL_TEST environment")
	}
	if os.Geteuid() != 0 {
		t.Skip("Skipping test: requires root")
	}
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *logging.Logger {
	return logging.New(logging.Config{Level: logging.LevelError, Output: io.Discard})
}

// LogBuffer is a goroutine-safe io.Writer for capturing log output.
type LogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *LogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// CaptureLogger returns a debug-level JSON logger writing into a LogBuffer.
func CaptureLogger() (*logging.Logger, *LogBuffer) {
	buf := &LogBuffer{}
	return logging.New(logging.Config{Level: logging.LevelDebug, Output: buf, JSON: true}), buf
}
