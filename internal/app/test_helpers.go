package app

import (
	"bytes"
	"os"
	"sync"
	"testing"

	"github.com/vk/matrixflow/internal/hcl"
	"github.com/vk/matrixflow/internal/registry"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// SetupAppTest creates a new app instance for system testing.
func SetupAppTest(t *testing.T, cfg *Config, modules ...registry.Module) (*App, *SafeBuffer) {
	t.Helper()

	logBuffer := &SafeBuffer{}
	cfg.LogLevel = "debug"
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 4
	}
	if cfg.LogsDir == "" {
		cfg.LogsDir = t.TempDir()
	}
	testApp := NewApp(logBuffer, cfg, hcl.NewLoader(), modules...)

	t.Cleanup(func() {
		if os.Getenv("MXF_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})

	return testApp, logBuffer
}

// SetupAppTestWithOutput is SetupAppTest with a caller-provided output
// writer, for harnesses that inspect the buffer themselves.
func SetupAppTestWithOutput(t *testing.T, output *SafeBuffer, cfg *Config, modules ...registry.Module) *App {
	t.Helper()
	cfg.LogLevel = "debug"
	return NewApp(output, cfg, hcl.NewLoader(), modules...)
}
