package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/specialistvlad/lazygraph/internal/collection"
	"github.com/specialistvlad/lazygraph/internal/config"
	"github.com/specialistvlad/lazygraph/internal/ctxlog"
	"github.com/specialistvlad/lazygraph/internal/graph"
	"github.com/specialistvlad/lazygraph/internal/nodes"
	"github.com/specialistvlad/lazygraph/internal/proxy"
	"github.com/specialistvlad/lazygraph/internal/query"
	"github.com/specialistvlad/lazygraph/internal/remote"
	"github.com/specialistvlad/lazygraph/internal/sources"
	"github.com/specialistvlad/lazygraph/internal/transport/message"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	config   *Config
	model    *config.Model
	registry *graph.Registry
	codec    *message.Codec
	metrics  *prometheus.Registry
	fetcher  *sources.Fetcher

	graph   *graph.Graph
	server  *remote.Server
	closers []io.Closer
}

// NewApp loads the graph file named by cfg. A graph file that cannot be
// loaded is a fatal startup error and panics.
func NewApp(outW io.Writer, cfg *Config, loader config.Loader) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	model, err := loader.Load(ctx, cfg.GraphPath)
	if err != nil {
		panic(fmt.Errorf("failed to load graph file: %w", err))
	}
	logger.Debug("Graph file loaded.", "branches", model.Names())

	reg := graph.NewRegistry(&nodes.Module{}, &collection.Module{}, &query.Module{}, &proxy.Module{})
	metrics := prometheus.NewRegistry()
	metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &App{
		outW:     outW,
		logger:   logger,
		config:   cfg,
		model:    model,
		registry: reg,
		codec:    message.NewCodec(reg),
		metrics:  metrics,
		fetcher:  sources.NewFetcher(nil),
	}
}

// Build creates the graph described by the graph file, connecting the
// proxies that use streaming transports. It is called by Run and only needs
// to be called directly by tests.
func (a *App) Build(ctx context.Context) error {
	if a.graph != nil {
		return nil
	}
	ctx = ctxlog.WithLogger(ctx, a.logger)
	root, err := a.buildRoot(ctx)
	if err != nil {
		return err
	}
	a.graph = graph.New(root, graph.WithRegistry(a.registry), graph.WithLogger(a.logger))
	a.server = remote.NewServer(a.graph)
	a.logger.Info("Graph built.", "branches", a.model.Names())
	return nil
}

// Graph returns the built graph, or nil before Build.
func (a *App) Graph() *graph.Graph { return a.graph }

// Close closes the graph and the proxy connections.
func (a *App) Close() error {
	var errs *multierror.Error
	if a.graph != nil {
		a.graph.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	a.closers = nil
	return errs.ErrorOrNil()
}
