package nodes

import (
	"fmt"

	"github.com/specialistvlad/lazygraph/internal/graph"
)

type operator struct {
	name  string
	arity int // -1 for variadic
	apply func(values []any) (any, error)
}

var operators = []operator{
	{name: "eq", arity: 2, apply: func(v []any) (any, error) { return Compare(v[0], v[1]) == 0, nil }},
	{name: "gt", arity: 2, apply: func(v []any) (any, error) { return Compare(v[0], v[1]) > 0, nil }},
	{name: "gte", arity: 2, apply: func(v []any) (any, error) { return Compare(v[0], v[1]) >= 0, nil }},
	{name: "lt", arity: 2, apply: func(v []any) (any, error) { return Compare(v[0], v[1]) < 0, nil }},
	{name: "lte", arity: 2, apply: func(v []any) (any, error) { return Compare(v[0], v[1]) <= 0, nil }},
	{name: "not", arity: 1, apply: func(v []any) (any, error) { return !Truthy(v[0]), nil }},
	{name: "and", arity: -1, apply: func(v []any) (any, error) {
		for _, x := range v {
			if !Truthy(x) {
				return false, nil
			}
		}
		return true, nil
	}},
	{name: "or", arity: -1, apply: func(v []any) (any, error) {
		for _, x := range v {
			if Truthy(x) {
				return true, nil
			}
		}
		return false, nil
	}},
	{name: "add", arity: -1, apply: arithmetic(func(a, b float64) (float64, error) { return a + b, nil })},
	{name: "subtract", arity: -1, apply: arithmetic(func(a, b float64) (float64, error) { return a - b, nil })},
	{name: "multiply", arity: -1, apply: arithmetic(func(a, b float64) (float64, error) { return a * b, nil })},
	{name: "divide", arity: -1, apply: arithmetic(func(a, b float64) (float64, error) {
		if b == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return a / b, nil
	})},
}

func arithmetic(fn func(a, b float64) (float64, error)) func([]any) (any, error) {
	return func(values []any) (any, error) {
		if len(values) == 0 {
			return nil, fmt.Errorf("no operands")
		}
		acc, ok := values[0].(float64)
		if !ok {
			return nil, fmt.Errorf("operand 0 is %T, not a number", values[0])
		}
		for i, v := range values[1:] {
			f, ok := v.(float64)
			if !ok {
				return nil, fmt.Errorf("operand %d is %T, not a number", i+1, v)
			}
			var err error
			if acc, err = fn(acc, f); err != nil {
				return nil, err
			}
		}
		return acc, nil
	}
}

var operatorTypeByName = func() map[string]*graph.NodeType {
	out := make(map[string]*graph.NodeType, len(operators))
	for _, op := range operators {
		out[op.name] = newOperatorType(op)
	}
	return out
}()

func newOperatorType(op operator) *graph.NodeType {
	return &graph.NodeType{
		Name: op.name,
		Operations: map[string]*graph.OperationHandler{
			graph.OpEvaluate: {
				Run: func(rc *graph.RunContext, _ *graph.Operation, _ []*graph.GraphNode) graph.Outcome {
					args := rc.Props().Nodes("args")
					if op.arity >= 0 && len(args) != op.arity {
						return rc.Fail(graph.Errorf("%s expects %d operands, got %d", op.name, op.arity, len(args)))
					}
					values := make([]any, len(args))
					for i, a := range args {
						v, halt := rc.Value(a)
						if halt != nil {
							return halt
						}
						values[i] = v
					}
					out, err := op.apply(values)
					if err != nil {
						return rc.Fail(graph.NewError(fmt.Sprintf("%s: %v", op.name, err)))
					}
					return graph.NewValue(out)
				},
			},
		},
	}
}

func operatorTypes() []*graph.NodeType {
	out := make([]*graph.NodeType, 0, len(operators))
	for _, op := range operators {
		out = append(out, operatorTypeByName[op.name])
	}
	return out
}

func applyOperator(name string, args ...any) *graph.Node {
	defs := make([]*graph.Node, len(args))
	for i, a := range args {
		defs[i] = FromValue(a)
	}
	return graph.NewNode(operatorTypeByName[name], graph.Props{"args": defs})
}

// Eq is true when a and b are equal values.
func Eq(a, b any) *graph.Node { return applyOperator("eq", a, b) }

// Gt is true when a > b.
func Gt(a, b any) *graph.Node { return applyOperator("gt", a, b) }

// Gte is true when a >= b.
func Gte(a, b any) *graph.Node { return applyOperator("gte", a, b) }

// Lt is true when a < b.
func Lt(a, b any) *graph.Node { return applyOperator("lt", a, b) }

// Lte is true when a <= b.
func Lte(a, b any) *graph.Node { return applyOperator("lte", a, b) }

// Not negates the truthiness of a.
func Not(a any) *graph.Node { return applyOperator("not", a) }

// And is true when every operand is truthy.
func And(args ...any) *graph.Node { return applyOperator("and", args...) }

// Or is true when any operand is truthy.
func Or(args ...any) *graph.Node { return applyOperator("or", args...) }

// Add sums numbers.
func Add(args ...any) *graph.Node { return applyOperator("add", args...) }

// Subtract subtracts the remaining operands from the first.
func Subtract(args ...any) *graph.Node { return applyOperator("subtract", args...) }

// Multiply multiplies numbers.
func Multiply(args ...any) *graph.Node { return applyOperator("multiply", args...) }

// Divide divides the first operand by the remaining ones.
func Divide(args ...any) *graph.Node { return applyOperator("divide", args...) }

// Compare orders JSON-like values: nil < bool < number < string < other.
// Values of the same kind compare naturally; lists compare element-wise.
func Compare(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmpInt(ra, rb)
	}
	switch x := a.(type) {
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case float64:
		y := b.(float64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		default:
			return 0
		}
	case string:
		y := b.(string)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		default:
			return 0
		}
	case []any:
		y := b.([]any)
		for i := 0; i < len(x) && i < len(y); i++ {
			if c := Compare(x[i], y[i]); c != 0 {
				return c
			}
		}
		return cmpInt(len(x), len(y))
	case nil:
		return 0
	default:
		return cmpString(graph.CanonicalString(a), graph.CanonicalString(b))
	}
}

func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64:
		return 2
	case string:
		return 3
	case []any:
		return 4
	default:
		return 5
	}
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
