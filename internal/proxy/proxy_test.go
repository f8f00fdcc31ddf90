package proxy_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/specialistvlad/lazygraph/internal/collection"
	"github.com/specialistvlad/lazygraph/internal/graph"
	"github.com/specialistvlad/lazygraph/internal/nodepath"
	"github.com/specialistvlad/lazygraph/internal/nodes"
	"github.com/specialistvlad/lazygraph/internal/proxy"
	"github.com/specialistvlad/lazygraph/internal/query"
	"github.com/specialistvlad/lazygraph/internal/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newGraph(t *testing.T, root *graph.Node) *graph.Graph {
	t.Helper()
	g := graph.New(root,
		graph.WithRegistry(graph.NewRegistry(&nodes.Module{}, &collection.Module{}, &query.Module{}, &proxy.Module{})),
		graph.WithLogger(discard),
	)
	t.Cleanup(g.Close)
	return g
}

func resolve(t *testing.T, g *graph.Graph, def *graph.Node) (any, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return g.Resolve(ctx, def)
}

// requestLog records the requests passing through a pipeline.
type requestLog struct {
	mu       sync.Mutex
	requests []*proxy.Request
	contexts []context.Context
}

func (l *requestLog) middleware() proxy.Middleware {
	return func(next proxy.Handler) proxy.Handler {
		return func(ctx context.Context, req *proxy.Request, emit func(*proxy.Response)) {
			l.mu.Lock()
			l.requests = append(l.requests, req)
			l.contexts = append(l.contexts, ctx)
			l.mu.Unlock()
			next(ctx, req, emit)
		}
	}
}

func (l *requestLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.requests)
}

func (l *requestLog) context(i int) context.Context {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.contexts[i]
}

func serverTree() *graph.Node {
	return nodes.Tree(map[string]*graph.Node{
		"user":    nodes.FromValue(map[string]any{"name": "ann", "age": 41}),
		"items":   nodes.ArrayOf(1, 2, 3),
		"counter": nodes.Variable(1),
		"double":  nodes.Fn([]string{"x"}, nodes.Multiply(nodes.Param("x"), 2)),
		"deeply": nodes.Tree(map[string]*graph.Node{
			"nested": nodes.Tree(map[string]*graph.Node{}),
		}),
	})
}

// setup returns a client graph whose "remote" branch proxies a server graph
// in the same process.
func setup(t *testing.T) (client, server *graph.Graph, log *requestLog) {
	t.Helper()
	server = newGraph(t, serverTree())
	log = &requestLog{}
	client = newGraph(t, nodes.Tree(map[string]*graph.Node{
		"remote": proxy.New(log.middleware(), proxy.Local(remote.NewServer(server).Handle)),
	}))
	return client, server, log
}

func TestProxy_Operations(t *testing.T) {
	client, _, _ := setup(t)

	testCases := []struct {
		name string
		def  *graph.Node
		want any
	}{
		{name: "evaluate", def: nodes.Ref("remote", "user", "name"), want: "ann"},
		{name: "length", def: nodes.Length(nodes.Ref("remote", "items")), want: 3.0},
		{name: "call", def: nodes.Call(nodes.Ref("remote", "double"), 4), want: 8.0},
		{name: "items", def: nodes.Ref("remote", "items"), want: []any{1.0, 2.0, 3.0}},
		{
			name: "items with remote transforms",
			def:  collection.Apply(nodes.Ref("remote", "items"), collection.Slice(1, 2)),
			want: []any{2.0, 3.0},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := resolve(t, client, tc.def)
			require.NoError(t, err)
			assert.EqualValues(t, tc.want, got)
		})
	}
}

func TestProxy_RemoteErrorsAreLocated(t *testing.T) {
	client, _, _ := setup(t)

	_, err := resolve(t, client, nodes.Ref("remote", "deeply", "nested", "foo"))
	require.Error(t, err)
	var gerr *graph.Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, graph.CodeInvalidChildKey, gerr.Code)
	assert.NotEmpty(t, gerr.RemotePath)
	want := append(nodepath.Path{nodepath.Name("remote")}, gerr.RemotePath...)
	assert.Equal(t, want.String(), gerr.Path.String())
}

func TestProxy_FollowsRemoteChanges(t *testing.T) {
	client, server, _ := setup(t)

	var (
		mu     sync.Mutex
		values []any
	)
	sub := client.Subscribe(nodes.Ref("remote", "counter"), func(r graph.Result) {
		if r.Pending || r.Err != nil {
			return
		}
		mu.Lock()
		values = append(values, r.Value)
		mu.Unlock()
	})
	defer sub.Unsubscribe()

	_, err := resolve(t, server, nodes.Set(nodes.Ref("counter"), 2))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(values) == 2 && values[1] == 2.0
	}, time.Second, 5*time.Millisecond)
}

func TestProxy_SetUpdatesTheRemoteGraph(t *testing.T) {
	client, server, _ := setup(t)

	_, err := resolve(t, client, nodes.Set(nodes.Ref("remote", "counter"), 7))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		v, err := resolve(t, server, nodes.Ref("counter"))
		return err == nil && v == 7.0
	}, time.Second, 5*time.Millisecond)
}

func TestProxy_QueryCrossingTheProxyIsOneRequest(t *testing.T) {
	client, _, log := setup(t)

	got, err := resolve(t, client, query.Query(nodes.Ref("remote"), query.Fields{
		"name":    query.Key("user", query.Key("name")),
		"counter": query.Key("counter"),
		"items":   query.Key("items", query.Entries(nil, collection.Slice(0, 2))),
	}))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"name":    "ann",
		"counter": 1.0,
		"items":   []any{1.0, 2.0},
	}, got)
	assert.Equal(t, 1, log.count())
}

func TestProxy_ReleasesRequestsOfEvictedNodes(t *testing.T) {
	client, _, log := setup(t)

	sub := client.Subscribe(nodes.Ref("remote", "counter"), func(graph.Result) {})
	require.Equal(t, 1, log.count())
	ctx := log.context(0)
	assert.NoError(t, ctx.Err())

	sub.Unsubscribe()
	assert.Eventually(t, func() bool { return ctx.Err() != nil }, time.Second, 5*time.Millisecond)

	v, err := resolve(t, client, nodes.Ref("remote", "counter"))
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)
	assert.Equal(t, 2, log.count())
}

func TestProxy_WithoutTransport(t *testing.T) {
	client := newGraph(t, nodes.Tree(map[string]*graph.Node{"remote": proxy.New()}))

	_, err := resolve(t, client, nodes.Ref("remote", "anything"))
	require.Error(t, err)
	var gerr *graph.Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, graph.CodeNetworkError, gerr.Code)
	assert.Contains(t, gerr.Message, "no transport")
}

func TestProxyTypes_SupportRemoteOperations(t *testing.T) {
	for _, typ := range []*graph.NodeType{proxy.ProxyType, proxy.ProxiedType} {
		for _, op := range []string{graph.OpEvaluate, graph.OpGetChild, graph.OpGetItems, graph.OpLength, graph.OpCall, graph.OpSet, query.OpQuerySet} {
			assert.True(t, typ.Supports(op), "%s supports %s", typ.Name, op)
		}
	}
}
