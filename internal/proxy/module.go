package proxy

import "github.com/specialistvlad/lazygraph/internal/graph"

// Module implements the graph.Module interface for this package.
type Module struct{}

// Register registers the proxy node types.
func (m *Module) Register(r *graph.Registry) {
	r.Register(ProxyType, ProxiedType)
}
