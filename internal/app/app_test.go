package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/specialistvlad/lazygraph/internal/graph"
	"github.com/specialistvlad/lazygraph/internal/hcl"
	"github.com/specialistvlad/lazygraph/internal/nodes"
	"github.com/specialistvlad/lazygraph/internal/proxy"
	"github.com/specialistvlad/lazygraph/internal/transport/message"
	"github.com/specialistvlad/lazygraph/internal/transport/wstransport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const upstreamGraph = `
data "user" {
  value = { name = "ann", tags = ["a", "b"] }
}

variable "counter" {
  type    = number
  default = 1
}
`

func TestRun_Resolve(t *testing.T) {
	testCases := []struct {
		name    string
		path    string
		want    string
		wantErr string
	}{
		{name: "value", path: "user.name", want: "\"ann\"\n"},
		{name: "list", path: "user.tags", want: "[\n  \"a\",\n  \"b\"\n]\n"},
		{name: "index", path: "user.tags[1]", want: "\"b\"\n"},
		{name: "variable", path: "counter", want: "1\n"},
		{name: "missing", path: "nope", wantErr: "failed to resolve nope"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a, out := newTestApp(t, upstreamGraph, Config{Resolve: tc.path})
			err := a.Run(context.Background())
			if tc.wantErr != "" {
				assert.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, out.String())
		})
	}
}

func TestNewApp_PanicsOnInvalidGraphFile(t *testing.T) {
	dir := t.TempDir()
	c, err := NewConfig(Config{GraphPath: dir})
	require.NoError(t, err)
	assert.PanicsWithError(t, fmt.Sprintf("failed to load graph file: no .hcl files found in [%s]", dir), func() {
		NewApp(io.Discard, c, hcl.NewLoader())
	})
}

func TestServe_Endpoints(t *testing.T) {
	a, _ := newTestApp(t, upstreamGraph, Config{})
	addr := startServing(t, a)

	t.Run("health", func(t *testing.T) {
		resp, err := http.Get("http://" + addr + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "OK\n", string(body))
	})

	t.Run("metrics", func(t *testing.T) {
		resp, err := http.Get("http://" + addr + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		assert.Contains(t, string(body), "go_goroutines")
	})

	t.Run("websocket subscriptions", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		ch, err := wstransport.Dial(ctx, "ws://"+addr+"/ws", a.codec)
		require.NoError(t, err)
		defer ch.Close()

		client := graph.New(nodes.Tree(map[string]*graph.Node{
			"remote": proxy.New(message.Client(ch)),
		}), graph.WithRegistry(a.registry), graph.WithLogger(a.logger))
		defer client.Close()

		v, err := client.Resolve(ctx, nodes.Ref("remote", "user", "name"))
		require.NoError(t, err)
		assert.Equal(t, "ann", v)
	})
}

func TestRun_ProxiesAnotherApp(t *testing.T) {
	upstream, _ := newTestApp(t, upstreamGraph, Config{})
	addr := startServing(t, upstream)

	testCases := []struct {
		name      string
		transport string
		url       string
	}{
		{name: "http", transport: "http", url: "http://" + addr + "/query"},
		{name: "websocket", transport: "websocket", url: "ws://" + addr + "/ws"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			graphFile := fmt.Sprintf(`
proxy "upstream" {
  url         = %q
  transport   = %q
  retries     = 2
  retry_delay = "10ms"
  timeout     = "2s"
  batch       = true
  log         = true
}
`, tc.url, tc.transport)
			a, out := newTestApp(t, graphFile, Config{Resolve: "upstream.user.name"})
			require.NoError(t, a.Run(context.Background()))
			assert.Equal(t, "\"ann\"\n", out.String())
		})
	}
}

func TestBuild_FailsForUnreachableProxies(t *testing.T) {
	a, _ := newTestApp(t, `
proxy "gone" {
  url       = "ws://127.0.0.1:1/ws"
  transport = "websocket"
}
`, Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := a.Build(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `proxy "gone"`)
}

func TestRun_Sources(t *testing.T) {
	t.Setenv("LAZYGRAPH_APP_TEST_REGION", "eu-west-1")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"healthy": true}`)
	}))
	defer srv.Close()

	graphFile := fmt.Sprintf(`
env "settings" {
  prefix = "LAZYGRAPH_APP_TEST_"
}

fetch "status" {
  url = %q
}
`, srv.URL)

	testCases := []struct {
		path string
		want string
	}{
		{path: "settings.REGION", want: "\"eu-west-1\"\n"},
		{path: "status.body.healthy", want: "true\n"},
		{path: "status.status_code", want: "200\n"},
	}
	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			a, out := newTestApp(t, graphFile, Config{Resolve: tc.path})
			require.NoError(t, a.Run(context.Background()))
			assert.Equal(t, tc.want, out.String())
		})
	}
}
