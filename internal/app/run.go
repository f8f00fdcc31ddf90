package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net"

	"github.com/hashicorp/go-multierror"
	"github.com/specialistvlad/lazygraph/internal/ctxlog"
	"github.com/specialistvlad/lazygraph/internal/nodepath"
	"github.com/specialistvlad/lazygraph/internal/nodes"
)

// Run builds the graph and either resolves the configured path once or
// serves the graph until ctx is done.
func (a *App) Run(ctx context.Context) (err error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")
	defer func() {
		if cerr := a.Close(); cerr != nil {
			err = multierror.Append(err, cerr).ErrorOrNil()
		}
	}()

	if err := a.Build(ctx); err != nil {
		return fmt.Errorf("failed to build graph: %w", err)
	}
	if a.config.Resolve != "" {
		return a.resolve(ctx, a.config.Resolve)
	}

	ln, err := net.Listen("tcp", a.config.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.config.Listen, err)
	}
	return a.serve(ctx, ln)
}

// resolve prints the value at path as JSON.
func (a *App) resolve(ctx context.Context, raw string) error {
	path, err := nodepath.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid path %q: %w", raw, err)
	}
	ctx, cancel := context.WithTimeout(ctx, a.config.ResolveTimeout)
	defer cancel()

	a.logger.Debug("Resolving path.", "path", path.String())
	v, err := a.graph.Resolve(ctx, nodes.Ref(path.Values()...))
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	enc := json.NewEncoder(a.outW)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
