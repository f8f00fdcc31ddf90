package proxy

import (
	"errors"

	"github.com/specialistvlad/lazygraph/internal/graph"
	"github.com/specialistvlad/lazygraph/internal/nodepath"
	"github.com/specialistvlad/lazygraph/internal/nodes"
	"github.com/specialistvlad/lazygraph/internal/query"
	"github.com/specialistvlad/lazygraph/internal/queryset"
)

// proxyBinding binds the proxy graph node in the context of its fragments.
const proxyBinding = "$proxy"

// endpoint is the state of proxy and proxied nodes: the client sending their
// requests, the remote path they stand for and the fragments they hold, per
// operation key.
type endpoint struct {
	client *client
	node   *graph.GraphNode
	path   nodepath.Path
	owner  bool
	held   map[string]*fragment
}

// ProxyType stands for the root of a remote graph reached through a request
// pipeline.
var ProxyType = &graph.NodeType{
	Name: "proxy",
	InitState: func(g *graph.Graph, gn *graph.GraphNode) any {
		h, _ := gn.Definition().Props().Opaque("pipeline").(Handler)
		if h == nil {
			h = Compose()
		}
		return &endpoint{
			client: newClient(g, gn, h),
			node:   gn,
			owner:  true,
			held:   make(map[string]*fragment),
		}
	},
	OnDispose: disposeEndpoint,
}

// New creates a proxy node sending requests through the given middlewares.
// The last middleware is the transport.
func New(middlewares ...Middleware) *graph.Node {
	return graph.NewNode(ProxyType, graph.Props{"pipeline": graph.NewOpaque(Compose(middlewares...))})
}

// ProxiedType stands for a node of a remote graph below a proxy.
var ProxiedType = &graph.NodeType{
	Name: "proxied",
	InitState: func(g *graph.Graph, gn *graph.GraphNode) any {
		e := &endpoint{node: gn, held: make(map[string]*fragment)}
		if list, ok := gn.Definition().Props()["path"].([]any); ok {
			e.path, _ = nodepath.FromValues(list)
		}
		if p, ok := gn.Context().Lookup(proxyBinding); ok {
			if pe, ok := g.State(p).(*endpoint); ok {
				e.client = pe.client
			}
		}
		return e
	},
	OnDispose: disposeEndpoint,
}

// The operations refer back to ProxiedType through proxied.
func init() {
	ProxyType.Operations = remoteOperations()
	ProxiedType.Operations = remoteOperations()
}

func proxied(path nodepath.Path) *graph.Node {
	return graph.NewNode(ProxiedType, graph.Props{"path": path.Values()})
}

func disposeEndpoint(_ *graph.Graph, _ *graph.GraphNode, state any) {
	e := state.(*endpoint)
	if e.client != nil {
		for _, f := range e.held {
			e.client.release(f, e.node)
		}
		if e.owner {
			e.client.close()
		}
	}
	e.held = nil
}

func remoteOperations() map[string]*graph.OperationHandler {
	return map[string]*graph.OperationHandler{
		graph.OpEvaluate: {Run: evaluateRemote},
		graph.OpLength:   {Run: lengthRemote},
		graph.OpGetChild: {Run: getChildRemote},
		graph.OpGetItems: {Run: getItemsRemote},
		graph.OpCall:     {Run: callRemote},
		graph.OpSet:      {Run: setRemote},
		query.OpQuerySet: {Run: querySetRemote},
	}
}

func endpointOf(rc *graph.RunContext) *endpoint {
	return rc.State().(*endpoint)
}

func getChildRemote(rc *graph.RunContext, op *graph.Operation, _ []*graph.GraphNode) graph.Outcome {
	e := endpointOf(rc)
	key := op.ChildKey()
	ctx := rc.Context().Child(key)
	if e.owner {
		ctx = ctx.With(map[string]*graph.GraphNode{proxyBinding: rc.Node()})
	}
	return rc.ActivateIn(proxied(e.path.Append(key)), ctx)
}

func evaluateRemote(rc *graph.RunContext, op *graph.Operation, _ []*graph.GraphNode) graph.Outcome {
	e := endpointOf(rc)
	resp, halt := e.fetch(rc, op, queryset.Evaluate())
	if halt != nil {
		return halt
	}
	return e.leaf(rc, resp[0])
}

func lengthRemote(rc *graph.RunContext, op *graph.Operation, _ []*graph.GraphNode) graph.Outcome {
	e := endpointOf(rc)
	resp, halt := e.fetch(rc, op, queryset.Length())
	if halt != nil {
		return halt
	}
	return e.leaf(rc, resp[0])
}

// getItemsRemote fetches the item values of the remote collection. Transform
// definitions travel with the request and are applied remotely.
func getItemsRemote(rc *graph.RunContext, op *graph.Operation, _ []*graph.GraphNode) graph.Outcome {
	e := endpointOf(rc)
	transforms := op.Transforms()
	defs := make([]*graph.Node, len(transforms))
	for i, t := range transforms {
		defs[i] = t.Definition()
	}
	resp, halt := e.fetch(rc, op, queryset.GetItems(defs, queryset.Evaluate()))
	if halt != nil {
		return halt
	}
	entries, ok := resp[0].([]any)
	if !ok {
		return e.halt(rc, resp[0])
	}
	items := make([]*graph.GraphNode, len(entries))
	for i, entry := range entries {
		var def *graph.Node
		if list, ok := entry.([]any); ok && len(list) == 1 {
			def, _ = list[0].(*graph.Node)
		} else {
			def, _ = entry.(*graph.Node)
		}
		items[i] = rc.Child(e.itemDef(def), nodepath.Index(i))
	}
	return graph.Items(items)
}

func callRemote(rc *graph.RunContext, op *graph.Operation, _ []*graph.GraphNode) graph.Outcome {
	e := endpointOf(rc)
	args := make([]*graph.Node, len(op.Args()))
	for i, a := range op.Args() {
		v, halt := rc.ValueOf(a)
		if halt != nil {
			return halt
		}
		args[i] = graph.NewValue(v)
	}
	resp, halt := e.fetch(rc, op, queryset.Call(args, queryset.Evaluate()))
	if halt != nil {
		return halt
	}
	list, ok := resp[0].([]any)
	if !ok || len(list) != 1 {
		return e.halt(rc, resp[0])
	}
	return e.leaf(rc, list[0])
}

// setRemote sends the value and answers with it right away. Live fragments
// are refreshed once the remote graph acknowledges the update.
func setRemote(rc *graph.RunContext, op *graph.Operation, _ []*graph.GraphNode) graph.Outcome {
	e := endpointOf(rc)
	if e.client == nil {
		return rc.Fail(graph.NewError("proxied node is not below a proxy"))
	}
	value := op.Value()
	if value == nil {
		value = graph.Nil()
	}
	v, halt := rc.Value(value)
	if halt != nil {
		return halt
	}
	def := graph.NewValue(v)
	e.client.perform(queryset.Path(e.path, queryset.Set(def)))
	return def
}

// querySetRemote forwards a whole query-set subtree in one request.
func querySetRemote(rc *graph.RunContext, op *graph.Operation, _ []*graph.GraphNode) graph.Outcome {
	e := endpointOf(rc)
	req := query.RequestOf(op)
	if req == nil {
		return rc.Fail(graph.NewError("query-set operation has no request"))
	}
	resp, halt := e.fetch(rc, op, req.Children...)
	if halt != nil {
		return halt
	}
	return graph.NewValue(queryset.Walk(resp, e.remap))
}

// fetch returns the responses to children asked at the endpoint's remote
// path. A missing response is pending.
func (e *endpoint) fetch(rc *graph.RunContext, op *graph.Operation, children ...*queryset.Operation) ([]any, graph.Outcome) {
	if e.client == nil {
		return nil, rc.Fail(graph.NewError("proxied node is not below a proxy"))
	}
	req := queryset.Path(e.path, children...)
	f, ok := e.held[op.Key()]
	if !ok || f.key != req.CanonicalKey() {
		if ok {
			e.client.release(f, e.node)
		}
		f = e.client.acquire(req, e.node)
		e.held[op.Key()] = f
	}
	if f.err != nil {
		return nil, rc.Fail(transportError(f.err))
	}
	if !f.has {
		return nil, graph.Pending()
	}

	r := f.result
	for range e.path {
		list, ok := r.([]any)
		if !ok || len(list) != 1 {
			return nil, e.halt(rc, r)
		}
		r = list[0]
	}
	list, ok := r.([]any)
	if !ok || len(list) != len(children) {
		return nil, e.halt(rc, r)
	}
	return list, nil
}

// leaf turns a leaf response into the node's result.
func (e *endpoint) leaf(rc *graph.RunContext, r any) graph.Outcome {
	def, ok := r.(*graph.Node)
	if !ok {
		return rc.Fail(graph.RemoteError("malformed response", nil))
	}
	return e.remap(def)
}

// halt turns a response answering a whole branch into the node's result.
func (e *endpoint) halt(rc *graph.RunContext, r any) graph.Outcome {
	def, ok := r.(*graph.Node)
	if !ok || def.Type().Name == graph.ValueTypeName {
		return rc.Fail(graph.RemoteError("malformed response", nil))
	}
	return e.remap(def)
}

// itemDef converts an item response into a local definition: plain values
// become trees and arrays so transforms can walk them.
func (e *endpoint) itemDef(def *graph.Node) *graph.Node {
	switch {
	case def == nil:
		return graph.ErrorNode(graph.RemoteError("malformed item response", nil))
	case def.Type().Name == graph.ValueTypeName:
		return nodes.FromValue(def.Prop("value"))
	default:
		return e.remap(def)
	}
}

// remap locates a remote error below the proxy: the remote path is kept as
// RemotePath and the local path is the proxy's path followed by it.
func (e *endpoint) remap(def *graph.Node) *graph.Node {
	err := graph.ErrorFromNode(def)
	if err == nil {
		return def
	}
	remote := err.Path
	out := *err
	out.RemotePath = remote
	out.Path = append(append(nodepath.Path{}, e.client.node.Path()...), remote...)
	return graph.ErrorNode(&out)
}

// transportError keeps domain errors and reports anything else as a network
// error.
func transportError(err error) *graph.Error {
	var e *graph.Error
	if errors.As(err, &e) {
		return e
	}
	return graph.NetworkError(err)
}
