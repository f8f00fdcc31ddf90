package wstransport

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/specialistvlad/lazygraph/internal/collection"
	"github.com/specialistvlad/lazygraph/internal/graph"
	"github.com/specialistvlad/lazygraph/internal/nodes"
	"github.com/specialistvlad/lazygraph/internal/proxy"
	"github.com/specialistvlad/lazygraph/internal/query"
	"github.com/specialistvlad/lazygraph/internal/remote"
	"github.com/specialistvlad/lazygraph/internal/transport/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGraph(t *testing.T, root *graph.Node) *graph.Graph {
	t.Helper()
	g := graph.New(root,
		graph.WithRegistry(graph.NewRegistry(&nodes.Module{}, &collection.Module{}, &query.Module{}, &proxy.Module{})),
		graph.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	t.Cleanup(g.Close)
	return g
}

func TestDialAndHandler(t *testing.T) {
	server := newGraph(t, nodes.Tree(map[string]*graph.Node{
		"counter": nodes.Variable(1),
	}))
	codec := message.NewCodec(server.Registry())
	srv := httptest.NewServer(NewHandler(remote.NewServer(server).Handle, codec))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ch, err := Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), codec)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Close() })

	client := newGraph(t, nodes.Tree(map[string]*graph.Node{
		"remote": proxy.New(message.Client(ch)),
	}))

	latest := make(chan any, 16)
	sub := client.Subscribe(nodes.Ref("remote", "counter"), func(r graph.Result) {
		if !r.Pending && r.Err == nil {
			latest <- r.Value
		}
	})
	defer sub.Unsubscribe()

	waitFor := func(want any) {
		t.Helper()
		for {
			select {
			case v := <-latest:
				if v == want {
					return
				}
			case <-ctx.Done():
				t.Fatalf("never saw %v", want)
			}
		}
	}
	waitFor(1.0)

	_, err = server.Resolve(ctx, nodes.Set(nodes.Ref("counter"), 2))
	require.NoError(t, err)
	waitFor(2.0)
}

func TestDial_Fails(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := Dial(ctx, "ws://127.0.0.1:1/none", message.NewCodec(graph.NewRegistry()))
	assert.ErrorContains(t, err, "wstransport: dial")
}
