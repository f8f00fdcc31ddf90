package sources

import (
	"os"
	"strings"

	"github.com/specialistvlad/lazygraph/internal/graph"
	"github.com/specialistvlad/lazygraph/internal/nodes"
)

// Environ returns the environment variables whose name starts with prefix,
// keyed by the rest of the name.
func Environ(prefix string) map[string]any {
	env := make(map[string]any)
	for _, e := range os.Environ() {
		name, value, ok := strings.Cut(e, "=")
		if !ok || !strings.HasPrefix(name, prefix) || name == prefix {
			continue
		}
		env[strings.TrimPrefix(name, prefix)] = value
	}
	return env
}

// Env is a tree of the environment variables starting with prefix, read when
// the definition is created.
func Env(prefix string) *graph.Node {
	return nodes.FromValue(Environ(prefix))
}
