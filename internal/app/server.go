package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/specialistvlad/lazygraph/internal/ctxlog"
	"github.com/specialistvlad/lazygraph/internal/transport/httptransport"
	"github.com/specialistvlad/lazygraph/internal/transport/wstransport"
	"golang.org/x/sync/errgroup"
)

// healthHandler answers liveness probes.
func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// Handler serves the built graph:
//
//	POST /query    one-shot query-set
//	GET  /ws       websocket subscriptions
//	GET  /metrics  prometheus metrics
//	GET  /health   liveness
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/query", httptransport.NewHandler(a.server, a.codec, a.config.QueryTimeout))
	mux.Handle("/ws", wstransport.NewHandler(a.server.Handle, a.codec))
	mux.Handle("/metrics", promhttp.HandlerFor(a.metrics, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", a.healthHandler)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mux.ServeHTTP(w, r.WithContext(ctxlog.WithLogger(r.Context(), a.logger)))
	})
}

// serve runs the graph server on ln, and the health check server when a
// port is configured, until ctx is done.
func (a *App) serve(ctx context.Context, ln net.Listener) error {
	logger := a.logger
	base, cancelBase := context.WithCancel(ctxlog.WithLogger(context.Background(), logger))
	defer cancelBase()

	servers := []*http.Server{{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return base },
	}}
	listeners := []net.Listener{ln}

	if a.config.HealthcheckPort > 0 {
		hln, err := net.Listen("tcp", fmt.Sprintf(":%d", a.config.HealthcheckPort))
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("failed to listen for health checks: %w", err)
		}
		mux := http.NewServeMux()
		mux.HandleFunc("/health", a.healthHandler)
		servers = append(servers, &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second})
		listeners = append(listeners, hln)
		logger.Info("🩺 Health check server starting", "address", hln.Addr().String())
	}

	eg, ctx := errgroup.WithContext(ctx)
	for i, srv := range servers {
		srv, l := srv, listeners[i]
		eg.Go(func() error {
			if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server on %s failed: %w", l.Addr(), err)
			}
			return nil
		})
	}
	logger.Info("🚀 Serving graph", "address", ln.Addr().String())

	eg.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down servers...")
		// Websocket sessions are hijacked connections; ending the base context
		// closes them.
		cancelBase()
		sctx, cancel := context.WithTimeout(context.Background(), a.config.ShutdownTimeout)
		defer cancel()
		var errs *multierror.Error
		for _, srv := range servers {
			if err := srv.Shutdown(sctx); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
		return errs.ErrorOrNil()
	})
	return eg.Wait()
}
