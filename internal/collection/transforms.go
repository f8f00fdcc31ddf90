package collection

import (
	"sort"

	"github.com/specialistvlad/lazygraph/internal/graph"
	"github.com/specialistvlad/lazygraph/internal/nodes"
)

type transformFunc func(rc *graph.RunContext, items []*graph.GraphNode) ([]*graph.GraphNode, graph.Outcome)

func transformType(name string, fn transformFunc) *graph.NodeType {
	return &graph.NodeType{
		Name: name,
		Operations: map[string]*graph.OperationHandler{
			graph.OpTransformItems: {
				Run: func(rc *graph.RunContext, op *graph.Operation, _ []*graph.GraphNode) graph.Outcome {
					out, halt := fn(rc, op.Items())
					if halt != nil {
						return halt
					}
					return graph.Items(out)
				},
			},
		},
	}
}

// callValue calls fn with item and resolves the result to a plain value.
// A nil fn yields the item's own value.
func callValue(rc *graph.RunContext, fn *graph.GraphNode, item *graph.GraphNode) (any, graph.Outcome) {
	if fn == nil {
		return rc.ValueOf(item)
	}
	return rc.ValueOf(rc.Call(fn, item))
}

func activateOptional(rc *graph.RunContext, def *graph.Node) *graph.GraphNode {
	if def == nil {
		return nil
	}
	return rc.Activate(def)
}

// FilterType keeps the items for which fn returns a truthy value.
var FilterType = transformType("filter", func(rc *graph.RunContext, items []*graph.GraphNode) ([]*graph.GraphNode, graph.Outcome) {
	fn := rc.Activate(rc.Props().Node("fn"))
	out := make([]*graph.GraphNode, 0, len(items))
	for _, item := range items {
		v, halt := callValue(rc, fn, item)
		if halt != nil {
			return nil, halt
		}
		if nodes.Truthy(v) {
			out = append(out, item)
		}
	}
	return out, nil
})

// Filter keeps the items for which the callable fn returns a truthy value.
func Filter(fn *graph.Node) *graph.Node {
	return graph.NewNode(FilterType, graph.Props{"fn": fn})
}

// FilterBy is Filter(ItemFn(body)).
func FilterBy(body *graph.Node) *graph.Node { return Filter(ItemFn(body)) }

// MapType replaces every item with the result of calling fn on it.
var MapType = transformType("map", func(rc *graph.RunContext, items []*graph.GraphNode) ([]*graph.GraphNode, graph.Outcome) {
	fn := rc.Activate(rc.Props().Node("fn"))
	out := make([]*graph.GraphNode, len(items))
	for i, item := range items {
		out[i] = rc.Call(fn, item)
	}
	return out, nil
})

// Map replaces every item with the result of calling fn on it.
func Map(fn *graph.Node) *graph.Node {
	return graph.NewNode(MapType, graph.Props{"fn": fn})
}

// MapTo is Map(ItemFn(body)).
func MapTo(body *graph.Node) *graph.Node { return Map(ItemFn(body)) }

// Order is one sort key. A nil By sorts by the item value itself.
type Order struct {
	By         *graph.Node
	Descending bool
}

// Ascending sorts by the value by returns for each item.
func Ascending(by *graph.Node) Order { return Order{By: by} }

// Descending sorts by the value by returns for each item, largest first.
func Descending(by *graph.Node) Order { return Order{By: by, Descending: true} }

// SortType orders items by one or more keys. Equal items keep their order.
var SortType = transformType("sort", func(rc *graph.RunContext, items []*graph.GraphNode) ([]*graph.GraphNode, graph.Outcome) {
	orders := ordersOf(rc.Props())
	fns := make([]*graph.GraphNode, len(orders))
	for i, o := range orders {
		fns[i] = activateOptional(rc, o.By)
	}

	keys := make([][]any, len(items))
	for i, item := range items {
		keys[i] = make([]any, len(orders))
		for j := range orders {
			v, halt := callValue(rc, fns[j], item)
			if halt != nil {
				return nil, halt
			}
			keys[i][j] = v
		}
	}

	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		for j, o := range orders {
			c := nodes.Compare(keys[idx[a]][j], keys[idx[b]][j])
			if o.Descending {
				c = -c
			}
			if c != 0 {
				return c < 0
			}
		}
		return false
	})

	out := make([]*graph.GraphNode, len(items))
	for i, k := range idx {
		out[i] = items[k]
	}
	return out, nil
})

func ordersOf(p graph.Props) []Order {
	list, _ := p["orders"].([]any)
	out := make([]Order, 0, len(list))
	for _, e := range list {
		m, _ := e.(map[string]any)
		by, _ := m["by"].(*graph.Node)
		desc, _ := m["descending"].(bool)
		out = append(out, Order{By: by, Descending: desc})
	}
	return out
}

// Sort orders items by orders, the first order being the primary key. With
// no orders items are sorted ascending by value.
func Sort(orders ...Order) *graph.Node {
	if len(orders) == 0 {
		orders = []Order{{}}
	}
	list := make([]any, len(orders))
	for i, o := range orders {
		m := map[string]any{"descending": o.Descending}
		if o.By != nil {
			m["by"] = o.By
		}
		list[i] = m
	}
	return graph.NewNode(SortType, graph.Props{"orders": list})
}

// CountType replaces the items with a single item: their number.
var CountType = transformType("count", func(rc *graph.RunContext, items []*graph.GraphNode) ([]*graph.GraphNode, graph.Outcome) {
	return []*graph.GraphNode{rc.Activate(graph.NewValue(len(items)))}, nil
})

var countNode = graph.NewNode(CountType, nil)

// Count replaces the items with a single item holding their number.
func Count() *graph.Node { return countNode }

// GroupType partitions items by the value fn returns for them. Groups appear
// in the order of their first item and keep the item order.
var GroupType = transformType("group", func(rc *graph.RunContext, items []*graph.GraphNode) ([]*graph.GraphNode, graph.Outcome) {
	fn := rc.Activate(rc.Props().Node("fn"))
	var order []string
	groups := map[string][]*graph.GraphNode{}
	for _, item := range items {
		v, halt := callValue(rc, fn, item)
		if halt != nil {
			return nil, halt
		}
		k := graph.CanonicalString(v)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], item)
	}
	out := make([]*graph.GraphNode, len(order))
	for i, k := range order {
		out[i] = rc.Activate(graph.Items(groups[k]))
	}
	return out, nil
})

// Group partitions items into lists by the value of the callable fn.
func Group(fn *graph.Node) *graph.Node {
	return graph.NewNode(GroupType, graph.Props{"fn": fn})
}
