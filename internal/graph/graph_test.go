package graph

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/specialistvlad/lazygraph/internal/nodepath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivate_Memoization(t *testing.T) {
	g := newTestGraph(t, nil)
	def := NewValue("x")

	g.Do(func() {
		a := g.root.activate(def, g.root.ctx)
		b := g.root.activate(NewValue("x"), g.root.ctx)
		assert.Same(t, a, b, "same definition in the same context must be memoized")

		other := g.root.ctx.Child(nodepath.Name("elsewhere"))
		c := g.root.activate(def, other)
		assert.NotSame(t, a, c, "a different context must yield a distinct node")
	})
}

func TestSubscribe_InitialValue(t *testing.T) {
	g := newTestGraph(t, nil)
	var rec recorder

	sub := g.Subscribe(NewValue(5), rec.observe)
	defer sub.Unsubscribe()

	require.Len(t, rec.results, 1)
	assert.Equal(t, 5.0, rec.last().Value)
	assert.False(t, rec.last().Pending)
	assert.Nil(t, rec.last().Err)
}

func TestSubscribe_Collection(t *testing.T) {
	g := newTestGraph(t, nil)
	var rec recorder

	sub := g.Subscribe(testArray(1, 2, 3), rec.observe)
	defer sub.Unsubscribe()

	require.Len(t, rec.results, 1)
	assert.Equal(t, []any{1.0, 2.0, 3.0}, rec.last().Value)
}

func TestSubscribe_CoalescesMutationsInOneTask(t *testing.T) {
	g := newTestGraph(t, nil)
	sumProbe := &lifecycle{}
	a, b := testVar(1, &lifecycle{}), testVar(2, &lifecycle{})
	var rec recorder

	sub := g.Subscribe(testSum(a, b, sumProbe), rec.observe)
	defer sub.Unsubscribe()
	require.Len(t, rec.results, 1)
	assert.Equal(t, 3.0, rec.last().Value)

	g.Do(func() {
		setVar(g, a, 10)
		setVar(g, b, 20)
	})

	require.Len(t, rec.results, 2, "two mutations in one task must produce one emission")
	assert.Equal(t, 30.0, rec.last().Value)
	assert.Equal(t, 2, sumProbe.runs)
}

func TestSubscribe_SkipsUnchangedResults(t *testing.T) {
	g := newTestGraph(t, nil)
	v := testVar("same", &lifecycle{})
	var rec recorder

	sub := g.Subscribe(v, rec.observe)
	defer sub.Unsubscribe()

	g.Do(func() { setVar(g, v, "same") })
	assert.Len(t, rec.results, 1)

	g.Do(func() { setVar(g, v, "changed") })
	require.Len(t, rec.results, 2)
	assert.Equal(t, "changed", rec.last().Value)
}

func TestUnsubscribe_EvictsAndResubscribeStartsFresh(t *testing.T) {
	g := newTestGraph(t, nil)
	p := &lifecycle{}
	v := testVar(1, p)
	baseline := g.root.Len()

	var rec recorder
	sub := g.Subscribe(v, rec.observe)
	g.Do(func() { setVar(g, v, 42) })
	assert.Equal(t, 42.0, rec.last().Value)
	assert.Greater(t, g.root.Len(), baseline)

	sub.Unsubscribe()
	assert.Equal(t, baseline, g.root.Len(), "scope registry must be back to its initial size")
	assert.Equal(t, 1, p.disposes)

	var again recorder
	sub = g.Subscribe(v, again.observe)
	defer sub.Unsubscribe()
	require.Len(t, again.results, 1)
	assert.Equal(t, 1.0, again.last().Value, "state must be recreated, not resurrected")
	assert.Equal(t, 2, p.inits)
}

func TestPin_KeepsStateUntilScopeDisposal(t *testing.T) {
	g := newTestGraph(t, nil)
	p := &lifecycle{}
	v := testVar(1, p)

	var rec recorder
	sub := g.Subscribe(v, rec.observe)
	g.Do(func() {
		setVar(g, v, 42)
		gn := g.root.activate(v, g.root.ctx)
		g.Pin(gn)
		g.Pin(gn)
	})
	sub.Unsubscribe()
	assert.Zero(t, p.disposes, "a pinned node survives its last subscriber")

	var again recorder
	sub = g.Subscribe(v, again.observe)
	sub.Unsubscribe()
	require.Len(t, again.results, 1)
	assert.Equal(t, 42.0, again.last().Value)
	assert.Equal(t, 1, p.inits)

	g.Close()
	assert.Equal(t, 1, p.disposes, "disposing the scope releases its pinned nodes")
}

func TestUnsubscribe_SharedNodeStaysAlive(t *testing.T) {
	g := newTestGraph(t, nil)
	p := &lifecycle{}
	v := testVar(1, p)

	var first, second recorder
	s1 := g.Subscribe(v, first.observe)
	s2 := g.Subscribe(v, second.observe)

	s1.Unsubscribe()
	assert.Zero(t, p.disposes)

	g.Do(func() { setVar(g, v, 7) })
	assert.Equal(t, 1.0, first.last().Value)
	assert.Equal(t, 7.0, second.last().Value)

	s2.Unsubscribe()
	assert.Equal(t, 1, p.disposes)
}

func TestErrors(t *testing.T) {
	root := testTree(map[string]*Node{
		"a": testTree(map[string]*Node{
			"b": NewNode(testFailType, Props{"message": "boom"}),
		}),
	})

	testCases := []struct {
		name     string
		def      *Node
		code     string
		sentinel *Error
		path     string
	}{
		{name: "error carries its graph path", def: testGet(root, "a", "b"), code: CodeError, path: "a.b"},
		{name: "missing child", def: testGet(root, "a", "missing"), code: CodeInvalidChildKey, sentinel: ErrInvalidChildKey, path: "a"},
		{name: "unsupported operation", def: testGet(NewValue(1), "x"), code: CodeUnsupportedOperation, sentinel: ErrUnsupportedOperation},
		{name: "panicking handler", def: NewNode(testPanicType, nil), code: CodeError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			g := newTestGraph(t, nil)
			var rec recorder
			sub := g.Subscribe(tc.def, rec.observe)
			defer sub.Unsubscribe()

			require.Len(t, rec.results, 1)
			err := rec.last().Err
			require.NotNil(t, err)
			assert.Equal(t, tc.code, err.Code)
			if tc.sentinel != nil {
				assert.True(t, errors.Is(err, tc.sentinel))
			}
			if tc.path != "" {
				assert.Equal(t, tc.path, err.Path.String())
			}
		})
	}
}

func TestResolve(t *testing.T) {
	g := newTestGraph(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	v, err := g.Resolve(ctx, NewValue("hello"))
	require.NoError(t, err)
	assert.Equal(t, "hello", v)

	_, err = g.Resolve(ctx, NewNode(testFailType, Props{"message": "nope"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestResolve_PendingHonoursContext(t *testing.T) {
	g := newTestGraph(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	var rec recorder
	sub := g.Subscribe(NewNode(testPendingType, nil), rec.observe)
	defer sub.Unsubscribe()
	require.Len(t, rec.results, 1)
	assert.True(t, rec.last().Pending)

	_, err := g.Resolve(ctx, NewNode(testPendingType, nil))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFlush_BoundsSelfInvalidation(t *testing.T) {
	g := New(Nil(), WithMaxFlushRounds(3), WithLogger(newTestGraph(t, nil).Logger()))
	defer g.Close()
	v := testVar(0, &lifecycle{})

	emissions := 0
	sub := g.Subscribe(v, func(r Result) {
		emissions++
		setVar(g, v, r.Value.(float64)+1)
	})
	defer sub.Unsubscribe()

	assert.Equal(t, 4, emissions)
}

func TestDo_NestedTasksRunInOrder(t *testing.T) {
	g := newTestGraph(t, nil)
	var order []int
	g.Do(func() {
		order = append(order, 1)
		g.Do(func() { order = append(order, 3) })
		order = append(order, 2)
	})
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestEvents(t *testing.T) {
	g := newTestGraph(t, nil)
	var all, once []any

	off := g.Events().On("tick", func(p any) { all = append(all, p) })
	g.Events().Once("tick", func(p any) { once = append(once, p) })

	g.Dispatch("tick", 1)
	g.Dispatch("tick", 2)
	off()
	g.Dispatch("tick", 3)

	assert.Equal(t, []any{1, 2}, all)
	assert.Equal(t, []any{1}, once)

	g.Events().On("late", func(p any) { all = append(all, p) })
	g.Close()
	g.Dispatch("late", 4)
	assert.Equal(t, []any{1, 2}, all)
}

func TestClose_DetachesSubscriptions(t *testing.T) {
	g := newTestGraph(t, nil)
	p := &lifecycle{}
	v := testVar(1, p)
	var rec recorder
	g.Subscribe(v, rec.observe)

	g.Close()
	assert.Equal(t, 1, p.disposes)
	assert.Zero(t, g.root.Len())
}
