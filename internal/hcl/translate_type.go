package hcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/specialistvlad/lazygraph/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
)

// keywordTypes are the type keywords a variable's type may name.
var keywordTypes = map[string]cty.Type{
	"string": cty.String,
	"number": cty.Number,
	"bool":   cty.Bool,
	"any":    cty.DynamicPseudoType,
}

// collectionTypes are the constructors wrapping one element type.
var collectionTypes = map[string]func(cty.Type) cty.Type{
	"list": cty.List,
	"map":  cty.Map,
	"set":  cty.Set,
}

// variableType converts the type constraint of a variable block, such as
// `number` or `list(string)`, into the cty.Type its default is converted to.
// A variable without a type accepts any value.
func variableType(ctx context.Context, expr hcl.Expression) (cty.Type, error) {
	if expr == nil || isNullExpr(expr) {
		return cty.DynamicPseudoType, nil
	}
	logger := ctxlog.FromContext(ctx)

	switch e := expr.(type) {
	case *hclsyntax.ScopeTraversalExpr:
		// A bare keyword parses as a reference to a variable of that name.
		if len(e.Traversal) != 1 {
			return cty.DynamicPseudoType, fmt.Errorf("invalid type keyword: traversal path is not a single identifier")
		}
		name := e.Traversal.RootName()
		ty, ok := keywordTypes[name]
		if !ok {
			return cty.DynamicPseudoType, fmt.Errorf("unknown primitive type %q", name)
		}
		logger.Debug("Parsed variable type keyword.", "type", name)
		return ty, nil

	case *hclsyntax.FunctionCallExpr:
		wrap, ok := collectionTypes[e.Name]
		if !ok {
			return cty.DynamicPseudoType, fmt.Errorf("unknown type constructor function %q", e.Name)
		}
		if len(e.Args) != 1 {
			return cty.DynamicPseudoType, fmt.Errorf("%s(...) takes exactly one element type, got %d", e.Name, len(e.Args))
		}
		elem, err := variableType(ctx, e.Args[0])
		if err != nil {
			return cty.DynamicPseudoType, err
		}
		// Converting into a collection of any would leave its elements unchecked.
		if elem == cty.DynamicPseudoType {
			return cty.DynamicPseudoType, fmt.Errorf("%s(...) needs a concrete element type, not any", e.Name)
		}
		ty := wrap(elem)
		logger.Debug("Parsed variable collection type.", "type", ty.FriendlyName())
		return ty, nil

	default:
		return cty.DynamicPseudoType, fmt.Errorf("unsupported expression for type definition: %T", e)
	}
}

// isNullExpr reports the null expression gohcl assigns to a missing optional
// attribute.
func isNullExpr(expr hcl.Expression) bool {
	if len(expr.Variables()) > 0 {
		return false
	}
	v, diags := expr.Value(nil)
	return !diags.HasErrors() && v.IsNull()
}
