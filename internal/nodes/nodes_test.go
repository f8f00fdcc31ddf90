package nodes

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/specialistvlad/lazygraph/internal/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGraph(t *testing.T, root *graph.Node) *graph.Graph {
	t.Helper()
	g := graph.New(root,
		graph.WithRegistry(graph.NewRegistry(&Module{})),
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

// recorder is safe for observers called from adapter goroutines.
type recorder struct {
	mu      sync.Mutex
	results []graph.Result
}

func (r *recorder) observe(res graph.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *recorder) snapshot() []graph.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]graph.Result(nil), r.results...)
}

func (r *recorder) last() graph.Result {
	s := r.snapshot()
	if len(s) == 0 {
		return graph.Result{}
	}
	return s[len(s)-1]
}

func TestRef(t *testing.T) {
	g := newGraph(t, Tree(map[string]*graph.Node{
		"user": Tree(map[string]*graph.Node{
			"name": Value("ann"),
			"tags": ArrayOf("a", "b"),
		}),
		"users": Tree(nil, Match(AnyName("id"), Param("id"))),
		"alias": Ref("user", "name"),
	}))

	testCases := []struct {
		name string
		def  *graph.Node
		want any
	}{
		{name: "path segments", def: Ref("user", "name"), want: "ann"},
		{name: "dotted path", def: Ref("user.name"), want: "ann"},
		{name: "index segment", def: Ref("user", "tags", 1), want: "b"},
		{name: "bracket path", def: Ref("user.tags[0]"), want: "a"},
		{name: "pattern capture", def: Ref("users", "bob"), want: "bob"},
		{name: "ref to ref", def: Ref("alias"), want: "ann"},
		{name: "dynamic segment", def: Ref("user", Value("name")), want: "ann"},
		{name: "get from target", def: Get(Ref("user"), "name"), want: "ann"},
		{name: "collection value", def: Ref("user", "tags"), want: []any{"a", "b"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := resolve(t, g, tc.def)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRef_Errors(t *testing.T) {
	g := newGraph(t, Tree(map[string]*graph.Node{
		"user": Tree(map[string]*graph.Node{"name": Value("ann")}),
	}))

	_, err := resolve(t, g, Ref("user", "missing"))
	require.Error(t, err)
	assert.ErrorIs(t, err, graph.ErrInvalidChildKey)

	_, err = resolve(t, g, Ref("user", "name", "deeper"))
	require.Error(t, err)
	assert.ErrorIs(t, err, graph.ErrUnsupportedOperation)
	assert.Equal(t, "user.name", err.(*graph.Error).Path.String())
}

func TestVariable_SeriesCoalescesIntoOneEmission(t *testing.T) {
	sum := Computed([]*graph.Node{Ref("a"), Ref("b")}, func(v ...any) (any, error) {
		return v[0].(float64) + v[1].(float64), nil
	})
	g := newGraph(t, Tree(map[string]*graph.Node{
		"a":   Variable(1),
		"b":   Variable(2),
		"sum": sum,
	}))

	var rec recorder
	sub := g.Subscribe(Ref("sum"), rec.observe)
	defer sub.Unsubscribe()
	require.Len(t, rec.snapshot(), 1)
	assert.Equal(t, 3.0, rec.last().Value)

	got, err := resolve(t, g, Series(Set(Ref("a"), 10), Set(Ref("b"), 20)))
	require.NoError(t, err)
	assert.Equal(t, 20.0, got)

	results := rec.snapshot()
	require.Len(t, results, 2, "one emission for both sets")
	assert.Equal(t, 30.0, results[1].Value)

	_, err = resolve(t, g, Series(Reset(Ref("a")), Reset(Ref("b"))))
	require.NoError(t, err)
	assert.Equal(t, 3.0, rec.last().Value)
	assert.Len(t, rec.snapshot(), 3)
}

func TestFnAndCall(t *testing.T) {
	g := newGraph(t, Tree(map[string]*graph.Node{
		"inc": Fn([]string{"x"}, Add(Param("x"), 1)),
	}))

	got, err := resolve(t, g, Call(Ref("inc"), 41))
	require.NoError(t, err)
	assert.Equal(t, 42.0, got)

	_, err = resolve(t, g, Call(Value(1), 2))
	assert.ErrorIs(t, err, graph.ErrUnsupportedOperation)
}

func TestAction(t *testing.T) {
	store := Action(func(args []any) Step {
		return Yield([]*graph.Node{Set(Ref("count"), args[0])}, func(values []any) Step {
			return Yield([]*graph.Node{Ref("count")}, func(values []any) Step {
				return Done(fmt.Sprintf("stored %v", values[0]))
			})
		})
	})
	g := newGraph(t, Tree(map[string]*graph.Node{
		"count": Variable(0),
		"store": store,
	}))

	var count recorder
	sub := g.Subscribe(Ref("count"), count.observe)
	defer sub.Unsubscribe()

	got, err := resolve(t, g, Call(Ref("store"), 5))
	require.NoError(t, err)
	assert.Equal(t, "stored 5", got)
	assert.Equal(t, 5.0, count.last().Value)
}

func TestControlFlow(t *testing.T) {
	g := newGraph(t, Tree(map[string]*graph.Node{
		"flag":  Variable(true),
		"items": ArrayOf(1, 2, 3),
	}))

	testCases := []struct {
		name    string
		def     *graph.Node
		want    any
		wantErr string
	}{
		{name: "if true", def: IfElse(Ref("flag"), Value("yes"), Value("no")), want: "yes"},
		{name: "if false", def: IfElse(Not(Ref("flag")), Value("yes"), Value("no")), want: "no"},
		{name: "if without else", def: IfElse(Value(false), Value("yes"), nil), want: nil},
		{name: "if error recovers", def: IfError(Ref("missing"), Value("fallback")), want: "fallback"},
		{name: "if error passes values", def: IfError(Ref("flag"), Value("fallback")), want: true},
		{name: "catch matching code", def: CatchError(graph.CodeInvalidChildKey, Ref("missing"), Value(0)), want: 0.0},
		{name: "catch other code", def: CatchError(graph.CodeNetworkError, Ref("missing"), Value(0)), wantErr: graph.CodeInvalidChildKey},
		{name: "length", def: Length(Ref("items")), want: 3.0},
		{name: "series yields last", def: Series(Value(1), Value(2)), want: 2.0},
		{name: "with context", def: WithContext(map[string]*graph.Node{"x": Value(7)}, Multiply(Param("x"), 2)), want: 14.0},
		{name: "unbound param", def: Param("nope"), wantErr: graph.CodeError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := resolve(t, g, tc.def)
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tc.wantErr, err.(*graph.Error).Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestOperators(t *testing.T) {
	g := newGraph(t, Nil())

	testCases := []struct {
		name string
		def  *graph.Node
		want any
	}{
		{name: "eq", def: Eq(1, 1.0), want: true},
		{name: "eq strings", def: Eq("a", "b"), want: false},
		{name: "gt", def: Gt(2, 1), want: true},
		{name: "gte", def: Gte(2, 2), want: true},
		{name: "lt mixed kinds", def: Lt(nil, "a"), want: true},
		{name: "lte", def: Lte(3, 2), want: false},
		{name: "and", def: And(true, 1, "x"), want: true},
		{name: "or", def: Or(false, 0, ""), want: false},
		{name: "add", def: Add(1, 2, 3), want: 6.0},
		{name: "subtract", def: Subtract(10, 4), want: 6.0},
		{name: "multiply", def: Multiply(2, 3), want: 6.0},
		{name: "divide", def: Divide(12, 2), want: 6.0},
		{name: "nested", def: Add(Multiply(2, 3), Value(1)), want: 7.0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := resolve(t, g, tc.def)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := resolve(t, g, Divide(1, 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "division by zero")
}

func TestFromFuture(t *testing.T) {
	g := newGraph(t, Nil())
	release := make(chan struct{})
	def := FromFuture(func(ctx context.Context) (any, error) {
		select {
		case <-release:
			return "done", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})

	var rec recorder
	sub := g.Subscribe(def, rec.observe)
	defer sub.Unsubscribe()
	require.Len(t, rec.snapshot(), 1)
	assert.True(t, rec.last().Pending)

	close(release)
	require.Eventually(t, func() bool { return rec.last().Value == "done" }, time.Second, 5*time.Millisecond)
}

func TestFromFuture_DropsLateResultAfterUnsubscribe(t *testing.T) {
	g := newGraph(t, Nil())
	cancelled := make(chan struct{})
	def := FromFuture(func(ctx context.Context) (any, error) {
		<-ctx.Done()
		close(cancelled)
		return "late", nil
	})

	var rec recorder
	sub := g.Subscribe(def, rec.observe)
	sub.Unsubscribe()
	assert.Equal(t, 2, g.Root().Len(), "only the scope marker and the root remain")

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("future context was not cancelled on unsubscribe")
	}
	assert.Never(t, func() bool { return len(rec.snapshot()) > 1 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestFromStream(t *testing.T) {
	g := newGraph(t, Nil())
	values := make(chan any)
	def := FromStream(func(ctx context.Context, emit func(any)) error {
		for {
			select {
			case v := <-values:
				emit(v)
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	var rec recorder
	sub := g.Subscribe(def, rec.observe)
	defer sub.Unsubscribe()
	assert.True(t, rec.last().Pending)

	values <- 1
	require.Eventually(t, func() bool { return rec.last().Value == 1.0 }, time.Second, 5*time.Millisecond)
	values <- "two"
	require.Eventually(t, func() bool { return rec.last().Value == "two" }, time.Second, 5*time.Millisecond)
}

func TestEvents(t *testing.T) {
	g := newGraph(t, Tree(map[string]*graph.Node{
		"last": OnGlobalEvent("ping", "none"),
	}))

	var rec recorder
	sub := g.Subscribe(Ref("last"), rec.observe)
	defer sub.Unsubscribe()
	assert.Equal(t, "none", rec.last().Value)

	_, err := resolve(t, g, Dispatch("ping", "hello"))
	require.NoError(t, err)
	assert.Equal(t, "hello", rec.last().Value)

	g.Dispatch("ping", map[string]any{"n": 1})
	assert.Equal(t, map[string]any{"n": 1.0}, rec.last().Value)
}

func TestScope(t *testing.T) {
	g := newGraph(t, Tree(map[string]*graph.Node{
		"x": Value("outer"),
		"inner": Scope(Tree(map[string]*graph.Node{
			"x": Value("inner"),
			"y": Ref("x"),
		})),
	}))

	got, err := resolve(t, g, Ref("inner", "y"))
	require.NoError(t, err)
	assert.Equal(t, "inner", got)

	got, err = resolve(t, g, Ref("x"))
	require.NoError(t, err)
	assert.Equal(t, "outer", got)
}

func TestFromValue(t *testing.T) {
	g := newGraph(t, FromValue(map[string]any{
		"list": []any{1, map[string]any{"k": "v"}},
		"n":    3,
	}))

	got, err := resolve(t, g, Ref("list", 1, "k"))
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	got, err = resolve(t, g, Ref("n"))
	require.NoError(t, err)
	assert.Equal(t, 3.0, got)
}

func TestVariable_SetOutlivesSubscribers(t *testing.T) {
	g := newGraph(t, Tree(map[string]*graph.Node{"counter": Variable(1)}))

	_, err := resolve(t, g, Set(Ref("counter"), 4))
	require.NoError(t, err)

	got, err := resolve(t, g, Ref("counter"))
	require.NoError(t, err)
	assert.Equal(t, 4.0, got)

	_, err = resolve(t, g, Reset(Ref("counter")))
	require.NoError(t, err)
	got, err = resolve(t, g, Ref("counter"))
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)
}
