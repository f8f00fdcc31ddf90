package collection

import "github.com/specialistvlad/lazygraph/internal/graph"

// Module implements the graph.Module interface for this package.
type Module struct{}

// Register registers Apply and every transform type.
func (m *Module) Register(r *graph.Registry) {
	r.Register(
		ApplyType,
		FilterType, MapType, SortType, SliceType,
		CountType, GroupType,
		FirstItemType, LastItemType, NthItemType,
	)
}
