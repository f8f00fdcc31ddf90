package graph

import (
	"encoding/binary"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/specialistvlad/lazygraph/internal/nodepath"
)

// RootKey is the context binding through which refs find the root of the
// nearest enclosing scope.
const RootKey = "$root"

// Context is an immutable, singly linked environment of named bindings and an
// optional path marker. Children extend a parent and never modify it.
type Context struct {
	id      uint64
	parent  *Context
	values  map[string]*GraphNode
	path    nodepath.Path
	hasPath bool
	refs    int
}

func newRootContext() *Context {
	return &Context{}
}

// ID returns the structural identity of the context.
func (c *Context) ID() uint64 { return c.id }

// Lookup finds the nearest binding for name.
func (c *Context) Lookup(name string) (*GraphNode, bool) {
	for ctx := c; ctx != nil; ctx = ctx.parent {
		if v, ok := ctx.values[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Path returns the nearest path marker, or nil at the root.
func (c *Context) Path() nodepath.Path {
	for ctx := c; ctx != nil; ctx = ctx.parent {
		if ctx.hasPath {
			return ctx.path
		}
	}
	return nil
}

// With returns a child context binding values.
func (c *Context) With(values map[string]*GraphNode) *Context {
	if len(values) == 0 {
		return c
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	d := xxhash.New()
	writeUint(d, c.id)
	copied := make(map[string]*GraphNode, len(values))
	for _, name := range names {
		gn := values[name]
		copied[name] = gn
		_, _ = d.WriteString("v")
		_, _ = d.WriteString(name)
		writeUint(d, gn.id)
	}
	return &Context{id: d.Sum64(), parent: c, values: copied}
}

// WithPath returns a child context carrying a path marker. Consecutive path
// markers collapse into one level.
func (c *Context) WithPath(path nodepath.Path) *Context {
	base := c
	if c.hasPath && len(c.values) == 0 && c.parent != nil {
		base = c.parent
	}
	d := xxhash.New()
	writeUint(d, base.id)
	_, _ = d.WriteString("p")
	_, _ = d.WriteString(path.String())
	return &Context{id: d.Sum64(), parent: base, path: path, hasPath: true}
}

// Child returns a context whose path marker extends the current path by key.
func (c *Context) Child(key nodepath.Key) *Context {
	return c.WithPath(c.Path().Append(key))
}

func writeUint(d *xxhash.Digest, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, _ = d.Write(buf[:])
}
