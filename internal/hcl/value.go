package hcl

import (
	"encoding/json"
	"fmt"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// toGo converts a cty value into plain Go values: maps, slices, strings,
// float64 numbers and bools. Unset and null values become nil.
func toGo(v cty.Value) (any, error) {
	if unset(v) {
		return nil, nil
	}
	if !v.IsWhollyKnown() {
		return nil, fmt.Errorf("value is not known at load time")
	}
	data, err := ctyjson.Marshal(v, v.Type())
	if err != nil {
		return nil, fmt.Errorf("failed to convert value: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to convert value: %w", err)
	}
	return out, nil
}

func unset(v cty.Value) bool {
	return v.Type() == cty.NilType || v.IsNull()
}
