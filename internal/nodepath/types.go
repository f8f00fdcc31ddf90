package nodepath

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Key is a single child key: either a name or an index.
type Key struct {
	Name  string
	Index int // -1 indicates a named key.
}

// Name creates a named key.
func Name(name string) Key {
	return Key{Name: name, Index: -1}
}

// Index creates an index key.
func Index(i int) Key {
	return Key{Index: i}
}

// IsIndex reports whether the key addresses a collection position.
func (k Key) IsIndex() bool {
	return k.Index >= 0
}

func (k Key) String() string {
	if k.IsIndex() {
		return "[" + strconv.Itoa(k.Index) + "]"
	}
	return k.Name
}

// Value returns the JSON-compatible form of the key: a string for names and
// a float64 for indexes.
func (k Key) Value() any {
	if k.IsIndex() {
		return float64(k.Index)
	}
	return k.Name
}

// FromValue converts a JSON-compatible value back into a key.
func FromValue(v any) (Key, error) {
	switch x := v.(type) {
	case string:
		return Name(x), nil
	case float64:
		if x < 0 || x != float64(int(x)) {
			return Key{}, fmt.Errorf("invalid index key %v", x)
		}
		return Index(int(x)), nil
	case int:
		if x < 0 {
			return Key{}, fmt.Errorf("invalid index key %d", x)
		}
		return Index(x), nil
	case Key:
		return x, nil
	default:
		return Key{}, fmt.Errorf("unsupported key type %T", v)
	}
}

func (k Key) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.Value())
}

func (k *Key) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := FromValue(raw)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Path is an ordered list of child keys from some root.
type Path []Key

// Append returns a new path with keys appended. The receiver is never
// modified, so paths can be shared between contexts.
func (p Path) Append(keys ...Key) Path {
	out := make(Path, 0, len(p)+len(keys))
	out = append(out, p...)
	return append(out, keys...)
}

// Values returns the JSON-compatible form of the path.
func (p Path) Values() []any {
	if p == nil {
		return nil
	}
	out := make([]any, len(p))
	for i, k := range p {
		out[i] = k.Value()
	}
	return out
}

// FromValues converts a JSON-compatible list back into a path.
func FromValues(values []any) (Path, error) {
	if values == nil {
		return nil, nil
	}
	out := make(Path, len(values))
	for i, v := range values {
		k, err := FromValue(v)
		if err != nil {
			return nil, err
		}
		out[i] = k
	}
	return out, nil
}
