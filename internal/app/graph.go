package app

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/specialistvlad/lazygraph/internal/config"
	"github.com/specialistvlad/lazygraph/internal/ctxlog"
	"github.com/specialistvlad/lazygraph/internal/graph"
	"github.com/specialistvlad/lazygraph/internal/middleware"
	"github.com/specialistvlad/lazygraph/internal/nodes"
	"github.com/specialistvlad/lazygraph/internal/proxy"
	"github.com/specialistvlad/lazygraph/internal/sources"
	"github.com/specialistvlad/lazygraph/internal/transport/httptransport"
	"github.com/specialistvlad/lazygraph/internal/transport/message"
	"github.com/specialistvlad/lazygraph/internal/transport/socketio"
	"github.com/specialistvlad/lazygraph/internal/transport/wstransport"
)

// buildRoot turns the model into the root tree of the graph.
func (a *App) buildRoot(ctx context.Context) (*graph.Node, error) {
	branches := make(map[string]*graph.Node, len(a.model.Names()))
	for name, d := range a.model.Data {
		branches[name] = nodes.FromValue(d.Value)
	}
	for name, v := range a.model.Variables {
		branches[name] = nodes.Variable(v.Default)
	}
	for name, e := range a.model.Envs {
		branches[name] = sources.Env(e.Prefix)
	}
	for name, f := range a.model.Fetches {
		branches[name] = a.fetcher.Node(sources.Request{
			URL:      f.URL,
			Method:   f.Method,
			Headers:  f.Headers,
			Interval: f.Interval,
		})
	}

	var errs *multierror.Error
	for name, p := range a.model.Proxies {
		mws, err := a.pipeline(ctx, p)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("proxy %q: %w", name, err))
			continue
		}
		branches[name] = proxy.New(mws...)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return nodes.Tree(branches), nil
}

// pipeline builds the middlewares of a proxy, outermost first: callers are
// counted once, a batch is retried as a whole and every attempt is timed.
func (a *App) pipeline(ctx context.Context, p *config.Proxy) ([]proxy.Middleware, error) {
	logger := ctxlog.FromContext(ctx).With("proxy", p.Name, "url", p.URL, "transport", p.Transport)

	var mws []proxy.Middleware
	if p.Log {
		mws = append(mws, middleware.Logging())
	}
	mws = append(mws, middleware.Metrics(a.metrics))
	if p.Batch {
		mws = append(mws, middleware.Batch(proxy.NextTick()))
	}
	if p.Retries > 0 {
		mws = append(mws, middleware.Retry(p.Retries, p.RetryDelay))
	}
	if p.Timeout > 0 {
		mws = append(mws, middleware.Timeout(p.Timeout))
	}
	mws = append(mws, middleware.RemoteErrors())

	switch p.Transport {
	case config.TransportHTTP:
		mws = append(mws, httptransport.Client(p.URL, a.codec))
	case config.TransportWebSocket:
		ch, err := wstransport.Dial(ctx, p.URL, a.codec)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, ch)
		mws = append(mws, message.Client(ch))
	case config.TransportSocketIO:
		ch, err := socketio.Dial(ctx, p.URL, a.codec, socketio.Options{
			Namespace:          p.Namespace,
			InsecureSkipVerify: p.InsecureSkipVerify,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, ch)
		mws = append(mws, message.Client(ch))
	default:
		return nil, fmt.Errorf("unknown transport %q", p.Transport)
	}
	logger.Debug("Proxy pipeline built.", "middlewares", len(mws))
	return mws, nil
}
