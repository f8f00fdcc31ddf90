package graph

import (
	"testing"

	"github.com/specialistvlad/lazygraph/internal/nodepath"
	"github.com/stretchr/testify/assert"
)

func TestContext_Identity(t *testing.T) {
	root := newRootContext()
	x := &GraphNode{id: 7}
	y := &GraphNode{id: 8}

	a := root.With(map[string]*GraphNode{"x": x})
	b := root.With(map[string]*GraphNode{"x": x})
	c := root.With(map[string]*GraphNode{"x": y})

	assert.Equal(t, a.ID(), b.ID(), "equal bindings must hash equally")
	assert.NotEqual(t, a.ID(), c.ID())
	assert.Same(t, root, root.With(nil))
}

func TestContext_Lookup(t *testing.T) {
	x := &GraphNode{id: 1}
	shadow := &GraphNode{id: 2}
	outer := newRootContext().With(map[string]*GraphNode{"x": x, "y": x})
	inner := outer.With(map[string]*GraphNode{"x": shadow})

	got, ok := inner.Lookup("x")
	assert.True(t, ok)
	assert.Same(t, shadow, got)

	got, ok = inner.Lookup("y")
	assert.True(t, ok)
	assert.Same(t, x, got)

	_, ok = inner.Lookup("z")
	assert.False(t, ok)
}

func TestContext_Path(t *testing.T) {
	root := newRootContext()
	assert.Nil(t, root.Path())

	c := root.Child(nodepath.Name("a")).Child(nodepath.Index(2)).Child(nodepath.Name("b"))
	assert.Equal(t, "a[2].b", c.Path().String())
	assert.Same(t, root, c.parent, "consecutive path markers collapse into one level")

	bound := c.With(map[string]*GraphNode{"item": {id: 3}})
	assert.Equal(t, "a[2].b", bound.Path().String())
	assert.Equal(t, "a[2].b.c", bound.Child(nodepath.Name("c")).Path().String())

	same := root.Child(nodepath.Name("a")).Child(nodepath.Index(2)).Child(nodepath.Name("b"))
	assert.Equal(t, c.ID(), same.ID())
}
