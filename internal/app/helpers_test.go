package app

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/specialistvlad/lazygraph/internal/hcl"
	"github.com/stretchr/testify/require"
)

// SafeBuffer is a thread-safe buffer for capturing output in tests.
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

// newTestApp writes graphFile to a temporary directory and creates an app
// for it. Set LAZYGRAPH_TEST_LOGS=true to print the captured output.
func newTestApp(t *testing.T, graphFile string, cfg Config) (*App, *SafeBuffer) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "graph.hcl")
	require.NoError(t, os.WriteFile(path, []byte(graphFile), 0o600))
	cfg.GraphPath = path
	if cfg.LogLevel == "" {
		cfg.LogLevel = "error"
	}
	c, err := NewConfig(cfg)
	require.NoError(t, err)

	out := &SafeBuffer{}
	a := NewApp(out, c, hcl.NewLoader())
	t.Cleanup(func() {
		_ = a.Close()
		if os.Getenv("LAZYGRAPH_TEST_LOGS") == "true" {
			t.Logf("--- Full Output for %s ---\n%s", t.Name(), out.String())
		}
	})
	return a, out
}

// startServing serves a on a random local port and returns its address.
func startServing(t *testing.T, a *App) string {
	t.Helper()
	require.NoError(t, a.Build(context.Background()))
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("serve did not stop")
		}
	})
	return ln.Addr().String()
}
