package nodes

import "github.com/specialistvlad/lazygraph/internal/graph"

// Module implements the graph.Module interface for this package.
type Module struct{}

// Register registers every built-in node type.
func (m *Module) Register(r *graph.Registry) {
	r.Register(
		TreeType, ArrayType,
		VariableType, SetType, ResetType,
		RefType, RootType, GetType, ParamType, WithContextType,
		ComputedType, FnType, CallType, ActionType,
		SeriesType, IfElseType, IfErrorType, CatchErrorType,
		LengthType,
		FromFutureType, FromStreamType, OnGlobalEventType, DispatchType,
		ScopeType,
	)
	r.Register(operatorTypes()...)
}
