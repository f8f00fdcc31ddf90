// Package codec converts definitions and query responses to and from the
// JSON-compatible envelope form {"$type": <type name>, "data": <properties>}.
//
// Plain objects whose keys do not include "$type" pass through unchanged, so
// the key is reserved inside encoded properties. Graph nodes and opaque Go
// values have no encoded form.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/specialistvlad/lazygraph/internal/graph"
)

const (
	// TypeKey names the type tag of an envelope.
	TypeKey = "$type"
	// DataKey names the properties of an envelope.
	DataKey = "data"
)

// ErrNotSerializable is returned for definitions holding values that only
// exist inside one process: Go functions, pipelines and graph nodes.
var ErrNotSerializable = errors.New("value is not serializable")

// Encoder is implemented by property values that are not definitions but
// have an encoded form, such as query-set operations.
type Encoder interface {
	Encode() (any, error)
}

// Encode converts n into its envelope form.
func Encode(n *graph.Node) (map[string]any, error) {
	if n == nil {
		return nil, errors.New("cannot encode a nil definition")
	}
	data := make(map[string]any, len(n.Props()))
	for _, k := range sortedKeys(n.Props()) {
		v, err := EncodeValue(n.Props()[k])
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", n.Type().Name, k, err)
		}
		data[k] = v
	}
	return map[string]any{TypeKey: n.Type().Name, DataKey: data}, nil
}

// EncodeValue converts a property value or a response tree into its
// JSON-compatible form. Definitions found anywhere in v become envelopes.
func EncodeValue(v any) (any, error) {
	switch x := v.(type) {
	case nil, bool, float64, string:
		return x, nil
	case *graph.Node:
		return Encode(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			ev, err := EncodeValue(e)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = ev
		}
		return out, nil
	case map[string]any:
		if _, reserved := x[TypeKey]; reserved {
			return nil, fmt.Errorf("object key %q is reserved", TypeKey)
		}
		out := make(map[string]any, len(x))
		for k, e := range x {
			ev, err := EncodeValue(e)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = ev
		}
		return out, nil
	case Encoder:
		return x.Encode()
	case *graph.GraphNode, *graph.Opaque:
		return nil, fmt.Errorf("%T: %w", v, ErrNotSerializable)
	default:
		n := graph.NormalizeValue(v)
		switch n.(type) {
		case nil, bool, float64, string, []any, map[string]any:
			return EncodeValue(n)
		}
		return nil, fmt.Errorf("%T: %w", v, ErrNotSerializable)
	}
}

// Decoder turns envelopes back into definitions using the node types of a
// registry.
type Decoder struct {
	Registry *graph.Registry

	// Hooks decode property values of types that are not definitions, keyed
	// by their $type tag.
	Hooks map[string]func(d *Decoder, data any) (any, error)
}

// NewDecoder creates a decoder for the types registered in r.
func NewDecoder(r *graph.Registry) *Decoder {
	return &Decoder{Registry: r}
}

// Decode converts an envelope into a definition.
func (d *Decoder) Decode(v any) (*graph.Node, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected an envelope object, got %T", v)
	}
	tag, ok := m[TypeKey].(string)
	if !ok {
		return nil, fmt.Errorf("envelope has no %q tag", TypeKey)
	}
	t, ok := d.Registry.Lookup(tag)
	if !ok {
		return nil, fmt.Errorf("unknown node type %q", tag)
	}
	var props graph.Props
	if raw := m[DataKey]; raw != nil {
		data, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s: %q must be an object, got %T", tag, DataKey, raw)
		}
		props = make(graph.Props, len(data))
		for k, e := range data {
			dv, err := d.DecodeValue(e)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", tag, k, err)
			}
			props[k] = dv
		}
	}
	return graph.NewNode(t, props), nil
}

// DecodeValue reverses EncodeValue.
func (d *Decoder) DecodeValue(v any) (any, error) {
	switch x := v.(type) {
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			dv, err := d.DecodeValue(e)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = dv
		}
		return out, nil
	case map[string]any:
		if tag, ok := x[TypeKey].(string); ok {
			if hook, ok := d.Hooks[tag]; ok {
				return hook(d, x[DataKey])
			}
			return d.Decode(x)
		}
		out := make(map[string]any, len(x))
		for k, e := range x {
			dv, err := d.DecodeValue(e)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = dv
		}
		return out, nil
	default:
		return graph.NormalizeValue(v), nil
	}
}

// Marshal encodes n as JSON.
func Marshal(n *graph.Node) ([]byte, error) {
	env, err := Encode(n)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// Unmarshal decodes a JSON envelope.
func (d *Decoder) Unmarshal(data []byte) (*graph.Node, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to parse envelope: %w", err)
	}
	return d.Decode(v)
}

func sortedKeys(p graph.Props) []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
