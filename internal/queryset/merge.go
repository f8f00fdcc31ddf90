package queryset

import (
	"fmt"

	"github.com/specialistvlad/lazygraph/internal/graph"
)

// Merge combines root operations into one root. Operations with equal self
// keys are unified and their children merged, so shared path prefixes are
// requested once. Inputs are not modified.
func Merge(roots ...*Operation) *Operation {
	merged := Root()
	for _, r := range roots {
		merged.Children = mergeChildren(merged.Children, r.Children)
	}
	return merged
}

func mergeChildren(dst, src []*Operation) []*Operation {
	for _, s := range src {
		key := s.SelfKey()
		found := false
		for i, d := range dst {
			if d.SelfKey() == key {
				c := *d
				c.Children = mergeChildren(append([]*Operation(nil), d.Children...), s.Children)
				dst[i] = &c
				found = true
				break
			}
		}
		if !found {
			c := *s
			c.Children = mergeChildren(nil, s.Children)
			dst = append(dst, &c)
		}
	}
	return dst
}

// Extract recovers the response to request from the response to merged,
// where merged is the result of a Merge that included request.
func Extract(request, merged *Operation, response any) (any, error) {
	return extract(request, merged, response)
}

func extract(req, merged *Operation, resp any) (any, error) {
	if req.Kind.IsLeaf() {
		return resp, nil
	}
	list, ok := resp.([]any)
	if !ok {
		if _, sentinel := resp.(*graph.Node); sentinel {
			return resp, nil
		}
		return nil, fmt.Errorf("%s: expected a response list, got %T", req.Kind, resp)
	}
	if req.Kind != KindGetItems {
		return pick(req, merged, list)
	}
	out := make([]any, len(list))
	for i, item := range list {
		itemList, ok := item.([]any)
		if !ok {
			out[i] = item
			continue
		}
		picked, err := pick(req, merged, itemList)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out[i] = picked
	}
	return out, nil
}

func pick(req, merged *Operation, list []any) ([]any, error) {
	if len(list) != len(merged.Children) {
		return nil, fmt.Errorf("%s: response has %d entries for %d operations", req.Kind, len(list), len(merged.Children))
	}
	out := make([]any, len(req.Children))
	for i, c := range req.Children {
		j := indexOf(merged.Children, c.SelfKey())
		if j < 0 {
			return nil, fmt.Errorf("operation %s is not part of the merged request", c.SelfKey())
		}
		sub, err := extract(c, merged.Children[j], list[j])
		if err != nil {
			return nil, err
		}
		out[i] = sub
	}
	return out, nil
}

func indexOf(ops []*Operation, selfKey string) int {
	for i, o := range ops {
		if o.SelfKey() == selfKey {
			return i
		}
	}
	return -1
}

// Walk calls fn for every leaf response of a response tree.
func Walk(response any, fn func(leaf *graph.Node) *graph.Node) any {
	switch x := response.(type) {
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Walk(e, fn)
		}
		return out
	case *graph.Node:
		return fn(x)
	default:
		return x
	}
}
