package queryset

import (
	"fmt"

	"github.com/specialistvlad/lazygraph/internal/codec"
	"github.com/specialistvlad/lazygraph/internal/graph"
	"github.com/specialistvlad/lazygraph/internal/nodepath"
)

// TypeTag is the envelope tag of an encoded operation.
const TypeTag = "query-set"

// Encode converts the tree into the envelope form.
func (o *Operation) Encode() (any, error) {
	data := map[string]any{"kind": string(o.Kind)}
	switch o.Kind {
	case KindGetChild:
		data["key"] = o.Key.Value()
	case KindGetItems:
		list, err := encodeDefs(o.Transforms)
		if err != nil {
			return nil, fmt.Errorf("transforms: %w", err)
		}
		data["transforms"] = list
	case KindCall:
		list, err := encodeDefs(o.Args)
		if err != nil {
			return nil, fmt.Errorf("args: %w", err)
		}
		data["args"] = list
	case KindSet:
		v, err := codec.Encode(o.Value)
		if err != nil {
			return nil, fmt.Errorf("value: %w", err)
		}
		data["value"] = v
	}
	if len(o.Children) > 0 {
		children := make([]any, len(o.Children))
		for i, c := range o.Children {
			ec, err := c.Encode()
			if err != nil {
				return nil, err
			}
			children[i] = ec
		}
		data["children"] = children
	}
	return map[string]any{codec.TypeKey: TypeTag, codec.DataKey: data}, nil
}

func encodeDefs(defs []*graph.Node) ([]any, error) {
	out := make([]any, len(defs))
	for i, d := range defs {
		e, err := codec.Encode(d)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

// Decode converts an envelope back into an operation tree and validates it.
func Decode(d *codec.Decoder, v any) (*Operation, error) {
	op, err := decode(d, v)
	if err != nil {
		return nil, err
	}
	if err := op.Validate(); err != nil {
		return nil, err
	}
	return op, nil
}

func decode(d *codec.Decoder, v any) (*Operation, error) {
	env, ok := v.(map[string]any)
	if !ok || env[codec.TypeKey] != TypeTag {
		return nil, fmt.Errorf("expected a %s envelope", TypeTag)
	}
	data, ok := env[codec.DataKey].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s envelope has no data", TypeTag)
	}
	kind, _ := data["kind"].(string)
	op := &Operation{Kind: Kind(kind)}

	var err error
	switch op.Kind {
	case KindGetChild:
		if op.Key, err = nodepath.FromValue(data["key"]); err != nil {
			return nil, fmt.Errorf("get-child: %w", err)
		}
	case KindGetItems:
		if op.Transforms, err = decodeDefs(d, data["transforms"]); err != nil {
			return nil, fmt.Errorf("get-items: %w", err)
		}
	case KindCall:
		if op.Args, err = decodeDefs(d, data["args"]); err != nil {
			return nil, fmt.Errorf("call: %w", err)
		}
	case KindSet:
		if op.Value, err = d.Decode(data["value"]); err != nil {
			return nil, fmt.Errorf("set: %w", err)
		}
	}

	children, _ := data["children"].([]any)
	for _, c := range children {
		child, err := decode(d, c)
		if err != nil {
			return nil, err
		}
		op.Children = append(op.Children, child)
	}
	return op, nil
}

func decodeDefs(d *codec.Decoder, v any) ([]*graph.Node, error) {
	if v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a list, got %T", v)
	}
	out := make([]*graph.Node, len(list))
	for i, e := range list {
		n, err := d.Decode(e)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = n
	}
	return out, nil
}

// RegisterHook lets d decode operations nested in definition properties.
func RegisterHook(d *codec.Decoder) {
	if d.Hooks == nil {
		d.Hooks = map[string]func(*codec.Decoder, any) (any, error){}
	}
	d.Hooks[TypeTag] = func(d *codec.Decoder, data any) (any, error) {
		return Decode(d, map[string]any{codec.TypeKey: TypeTag, codec.DataKey: data})
	}
}
