package query

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/specialistvlad/lazygraph/internal/collection"
	"github.com/specialistvlad/lazygraph/internal/graph"
	"github.com/specialistvlad/lazygraph/internal/nodepath"
	"github.com/specialistvlad/lazygraph/internal/nodes"
	"github.com/specialistvlad/lazygraph/internal/queryset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoType answers query-sets with the canonical key of the request.
var echoType = &graph.NodeType{
	Name: "test-echo",
	Operations: map[string]*graph.OperationHandler{
		OpQuerySet: {
			Run: func(rc *graph.RunContext, op *graph.Operation, _ []*graph.GraphNode) graph.Outcome {
				calls, _ := rc.Props().Opaque("calls").(*int)
				*calls++
				return graph.NewValue([]any{RequestOf(op).CanonicalKey()})
			},
		},
	},
}

type testModule struct{}

func (testModule) Register(r *graph.Registry) { r.Register(echoType) }

func newGraph(t *testing.T, root *graph.Node) *graph.Graph {
	t.Helper()
	g := graph.New(root,
		graph.WithRegistry(graph.NewRegistry(&nodes.Module{}, &collection.Module{}, &Module{}, testModule{})),
		graph.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
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

func item(id int, title string) *graph.Node {
	return nodes.FromValue(map[string]any{"id": id, "title": title})
}

func testTree() *graph.Node {
	return nodes.Tree(map[string]*graph.Node{
		"user": nodes.FromValue(map[string]any{
			"name": "ann",
			"tags": []any{"a", "b"},
		}),
		"items":   nodes.Array(item(1, "one"), item(2, "two"), item(3, "three")),
		"counter": nodes.Variable(1),
		"double":  nodes.Fn([]string{"x"}, nodes.Multiply(nodes.Param("x"), 2)),
		"never": nodes.FromFuture(func(ctx context.Context) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}),
	})
}

func TestQuery(t *testing.T) {
	g := newGraph(t, testTree())

	testCases := []struct {
		name     string
		def      *graph.Node
		want     any
		wantCode string
		wantPath string
	}{
		{
			name: "fields",
			def: Query(nodes.Ref("user"), Fields{
				"name": Key("name"),
				"tags": Key("tags", Entries(nil)),
			}),
			want: map[string]any{"name": "ann", "tags": []any{"a", "b"}},
		},
		{
			name: "entries with transforms",
			def: Query(nodes.Root(), Fields{
				"items": Key("items", Entries(Fields{"id": Key("id")}, collection.Sort(collection.Descending(collection.ItemFn(nodes.Get(nodes.Param(collection.ItemParam), "id")))), collection.Slice(0, 2))),
			}),
			want: map[string]any{"items": []any{map[string]any{"id": 3.0}, map[string]any{"id": 2.0}}},
		},
		{
			name: "index key",
			def:  Query(nodes.Ref("items"), Key(1, Fields{"title": Key("title")})),
			want: map[string]any{"title": "two"},
		},
		{
			name: "value of the target",
			def:  Query(nodes.Ref("counter"), nil),
			want: 1.0,
		},
		{
			name: "nested fields share the node",
			def:  Query(nodes.Ref("user"), Fields{"outer": Fields{"name": Key("name")}}),
			want: map[string]any{"outer": map[string]any{"name": "ann"}},
		},
		{
			name:     "first error in name order",
			def:      Query(nodes.Ref("user"), Fields{"b": Key("zzz"), "a": Key("missing"), "c": Key("name")}),
			wantCode: graph.CodeInvalidChildKey,
			wantPath: "user",
		},
		{
			name:     "entries of a value",
			def:      Query(nodes.Ref("user"), Key("name", Entries(nil))),
			wantCode: graph.CodeUnsupportedOperation,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := resolve(t, g, tc.def)
			if tc.wantCode != "" {
				require.Error(t, err)
				gerr := err.(*graph.Error)
				assert.Equal(t, tc.wantCode, gerr.Code)
				if tc.wantPath != "" {
					assert.Equal(t, tc.wantPath, gerr.Path.String())
					assert.Contains(t, gerr.Message, "missing")
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestQuery_PendingUntilEveryFieldResolves(t *testing.T) {
	g := newGraph(t, testTree())
	var results []graph.Result
	sub := g.Subscribe(Query(nodes.Root(), Fields{"never": Key("never"), "counter": Key("counter")}), func(r graph.Result) {
		results = append(results, r)
	})
	defer sub.Unsubscribe()
	require.Len(t, results, 1)
	assert.True(t, results[0].Pending)
}

func TestQuery_ReactsToChanges(t *testing.T) {
	g := newGraph(t, testTree())
	var results []graph.Result
	sub := g.Subscribe(Query(nodes.Root(), Fields{"counter": Key("counter")}), func(r graph.Result) {
		results = append(results, r)
	})
	defer sub.Unsubscribe()

	_, err := resolve(t, g, nodes.Set(nodes.Ref("counter"), 2))
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, map[string]any{"counter": 2.0}, results[1].Value)
}

func TestExecute(t *testing.T) {
	g := newGraph(t, testTree())
	counter := g.Subscribe(nodes.Ref("counter"), func(graph.Result) {})
	defer counter.Unsubscribe()

	path := func(keys ...any) nodepath.Path {
		p, err := nodepath.FromValues(keys)
		require.NoError(t, err)
		return p
	}

	testCases := []struct {
		name    string
		request *queryset.Operation
		want    any
	}{
		{
			name:    "evaluate",
			request: queryset.Path(path("user", "name"), queryset.Evaluate()),
			want:    []any{[]any{[]any{nodes.Value("ann")}}},
		},
		{
			name:    "length",
			request: queryset.Path(path("items"), queryset.Length()),
			want:    []any{[]any{nodes.Value(3)}},
		},
		{
			name:    "items",
			request: queryset.Path(path("user", "tags"), queryset.GetItems(nil, queryset.Evaluate())),
			want:    []any{[]any{[]any{[]any{[]any{nodes.Value("a")}, []any{nodes.Value("b")}}}}},
		},
		{
			name:    "call",
			request: queryset.Path(path("double"), queryset.Call([]*graph.Node{nodes.Value(4)}, queryset.Evaluate())),
			want:    []any{[]any{[]any{nodes.Value(8)}}},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := resolve(t, g, Execute(nodes.Root(), tc.request))
			require.NoError(t, err)
			assert.Equal(t, graph.CanonicalString(tc.want), graph.CanonicalString(got))
		})
	}

	t.Run("missing child answers the branch", func(t *testing.T) {
		got, err := resolve(t, g, Execute(nodes.Root(), queryset.Path(path("nope", "deeper"), queryset.Evaluate())))
		require.NoError(t, err)
		list := got.([]any)
		require.Len(t, list, 1)
		def, ok := list[0].(*graph.Node)
		require.True(t, ok)
		assert.Equal(t, graph.CodeInvalidChildKey, graph.ErrorFromNode(def).Code)
	})

	t.Run("set", func(t *testing.T) {
		_, err := resolve(t, g, Execute(nodes.Root(), queryset.Path(path("counter"), queryset.Set(nodes.Value(5)))))
		require.NoError(t, err)
		v, err := resolve(t, g, nodes.Ref("counter"))
		require.NoError(t, err)
		assert.Equal(t, 5.0, v)
	})
}

func TestRespond_DelegatesToQuerySetNodes(t *testing.T) {
	calls := 0
	g := newGraph(t, nodes.Tree(map[string]*graph.Node{
		"remote": graph.NewNode(echoType, graph.Props{"calls": graph.NewOpaque(&calls)}),
	}))

	request := queryset.Path(nodepath.Path{nodepath.Name("remote"), nodepath.Name("a")}, queryset.Evaluate())
	got, err := resolve(t, g, Execute(nodes.Root(), request))
	require.NoError(t, err)
	assert.Equal(t, []any{[]any{`root {get-child "a" {evaluate}}`}}, got)
	assert.Equal(t, 1, calls)
}
