package collection

import (
	"github.com/specialistvlad/lazygraph/internal/graph"
	"github.com/specialistvlad/lazygraph/internal/nodes"
)

// Slice modes. All three select a half-open range [lo, hi) of the items.
const (
	// ModeOffset takes length items starting at offset.
	ModeOffset = "offset"
	// ModeFromTo takes the items from from up to, not including, to.
	// Negative bounds clamp to zero.
	ModeFromTo = "from-to"
	// ModeBeginEnd is ModeFromTo with negative bounds counted from the end.
	ModeBeginEnd = "begin-end"
)

// SliceType selects a contiguous range of items. Bounds are definitions so
// a page offset can live in a Variable.
var SliceType = transformType("slice", func(rc *graph.RunContext, items []*graph.GraphNode) ([]*graph.GraphNode, graph.Outcome) {
	lo, hi, halt := sliceRange(rc, len(items))
	if halt != nil {
		return nil, halt
	}
	return items[lo:hi], nil
})

func sliceRange(rc *graph.RunContext, n int) (int, int, graph.Outcome) {
	p := rc.Props()
	first, ok, halt := bound(rc, p.Node("first"))
	if halt != nil {
		return 0, 0, halt
	}
	if !ok {
		first = 0
	}
	second, hasSecond, halt := bound(rc, p.Node("second"))
	if halt != nil {
		return 0, 0, halt
	}

	var lo, hi int
	switch p.String("mode") {
	case ModeOffset:
		lo = clamp(first, 0, n)
		hi = n
		if hasSecond {
			hi = clamp(lo+max(second, 0), lo, n)
		}
	case ModeFromTo:
		lo = clamp(first, 0, n)
		hi = n
		if hasSecond {
			hi = clamp(second, lo, n)
		}
	case ModeBeginEnd:
		lo = clamp(fromEnd(first, n), 0, n)
		hi = n
		if hasSecond {
			hi = clamp(fromEnd(second, n), lo, n)
		}
	default:
		return 0, 0, rc.Fail(graph.Errorf("unknown slice mode %q", p.String("mode")))
	}
	return lo, hi, nil
}

// bound resolves an optional integer bound.
func bound(rc *graph.RunContext, def *graph.Node) (int, bool, graph.Outcome) {
	if def == nil {
		return 0, false, nil
	}
	v, halt := rc.Value(def)
	if halt != nil {
		return 0, false, halt
	}
	switch x := v.(type) {
	case nil:
		return 0, false, nil
	case float64:
		return int(x), true, nil
	default:
		return 0, false, rc.Fail(graph.Errorf("slice bound is %T, not a number", v))
	}
}

func fromEnd(i, n int) int {
	if i < 0 {
		return n + i
	}
	return i
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

func newSlice(mode string, first, second any) *graph.Node {
	props := graph.Props{"mode": mode}
	if first != nil {
		props["first"] = nodes.FromValue(first)
	}
	if second != nil {
		props["second"] = nodes.FromValue(second)
	}
	return graph.NewNode(SliceType, props)
}

// Slice takes length items starting at offset. A nil length takes the rest.
// Bounds are numbers or definitions resolving to numbers.
func Slice(offset, length any) *graph.Node { return newSlice(ModeOffset, offset, length) }

// SliceFromTo takes the items in [from, to). A nil to takes the rest.
func SliceFromTo(from, to any) *graph.Node { return newSlice(ModeFromTo, from, to) }

// SliceBeginEnd takes the items in [begin, end) where negative bounds count
// from the end. A nil end takes the rest.
func SliceBeginEnd(begin, end any) *graph.Node { return newSlice(ModeBeginEnd, begin, end) }

// FirstItemType keeps only the first item.
var FirstItemType = transformType("first-item", func(_ *graph.RunContext, items []*graph.GraphNode) ([]*graph.GraphNode, graph.Outcome) {
	return items[:min(1, len(items))], nil
})

// LastItemType keeps only the last item.
var LastItemType = transformType("last-item", func(_ *graph.RunContext, items []*graph.GraphNode) ([]*graph.GraphNode, graph.Outcome) {
	return items[max(len(items)-1, 0):], nil
})

// NthItemType keeps only the item at an index; negative indexes count from
// the end. Out-of-range indexes leave no items.
var NthItemType = transformType("nth-item", func(rc *graph.RunContext, items []*graph.GraphNode) ([]*graph.GraphNode, graph.Outcome) {
	i, ok, halt := bound(rc, rc.Props().Node("index"))
	if halt != nil {
		return nil, halt
	}
	i = fromEnd(i, len(items))
	if !ok || i < 0 || i >= len(items) {
		return []*graph.GraphNode{}, nil
	}
	return items[i : i+1], nil
})

var (
	firstItemNode = graph.NewNode(FirstItemType, nil)
	lastItemNode  = graph.NewNode(LastItemType, nil)
)

// FirstItem keeps only the first item.
func FirstItem() *graph.Node { return firstItemNode }

// LastItem keeps only the last item.
func LastItem() *graph.Node { return lastItemNode }

// NthItem keeps only the item at index.
func NthItem(index any) *graph.Node {
	return graph.NewNode(NthItemType, graph.Props{"index": nodes.FromValue(index)})
}
