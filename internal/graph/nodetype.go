package graph

// NodeType describes a kind of node: the operations it supports and, for
// stateful types, how its per-node state is created and released.
type NodeType struct {
	Name       string
	Operations map[string]*OperationHandler

	// InitState creates the per-node state of a stateful type. It runs on
	// first access to the state, inside a loop task.
	InitState func(g *Graph, gn *GraphNode) any

	// OnDispose releases the state when the graph node is evicted.
	OnDispose func(g *Graph, gn *GraphNode, state any)
}

// Supports reports whether the type has a handler for op.
func (t *NodeType) Supports(op string) bool {
	_, ok := t.Operations[op]
	return ok
}

// Stateful reports whether graph nodes of this type own mutable state.
func (t *NodeType) Stateful() bool {
	return t.InitState != nil
}

// OperationHandler implements one operation for a node type.
type OperationHandler struct {
	// Dependencies lists definitions that must be resolved before Run. They
	// are activated in the node's scope and context; the resolved graph nodes
	// are passed to Run in the same order.
	Dependencies func(n *Node, op *Operation) []Dependency

	Run func(rc *RunContext, op *Operation, deps []*GraphNode) Outcome
}

// Dependency is a definition resolved until Until holds. A pending or error
// result short-circuits the operation unless explicitly accepted.
type Dependency struct {
	Target        *Node
	Until         Predicate
	AcceptPending bool
	AcceptError   bool
}

// Predicate is a named test on a resolved graph node. The zero Predicate
// accepts nodes that cannot be evaluated any further.
type Predicate struct {
	Description string
	Test        func(gn *GraphNode) bool
}

func (p Predicate) holds(gn *GraphNode) bool {
	if p.Test == nil {
		return !gn.Supports(OpEvaluate)
	}
	return p.Test(gn)
}

func (p Predicate) describe() string {
	if p.Description == "" {
		return OpEvaluate
	}
	return p.Description
}

// Terminal accepts nodes that do not support evaluate.
var Terminal = Predicate{}

// Supports accepts nodes whose type handles op.
func Supports(op string) Predicate {
	return Predicate{
		Description: op,
		Test:        func(gn *GraphNode) bool { return gn.Supports(op) },
	}
}

// SupportsAny accepts nodes whose type handles at least one of ops.
func SupportsAny(ops ...string) Predicate {
	desc := ""
	for i, op := range ops {
		if i > 0 {
			desc += "|"
		}
		desc += op
	}
	return Predicate{
		Description: desc,
		Test: func(gn *GraphNode) bool {
			for _, op := range ops {
				if gn.Supports(op) {
					return true
				}
			}
			return false
		},
	}
}

// Outcome is what an operation handler produces: a *Node to activate in the
// handler's scope and context, an existing *GraphNode, or an *Action that
// redirects the request.
type Outcome interface {
	outcome()
}

func (*Node) outcome()      {}
func (*GraphNode) outcome() {}
func (*Action) outcome()    {}

// Action is a (graph node, operation) pair: "run this operation against this
// node". Returned from a handler it acts as a redirect whose result becomes
// the handler's result.
type Action struct {
	Target    *GraphNode
	Operation *Operation
}

// Redirect builds an Action outcome.
func Redirect(target *GraphNode, op *Operation) *Action {
	return &Action{Target: target, Operation: op}
}
