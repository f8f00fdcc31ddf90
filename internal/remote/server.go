// Package remote serves a graph to proxies in other processes or graphs.
//
// A Server answers query-set requests against the root of its graph. Handle
// keeps answering as the graph changes until the request context is done,
// which suits streaming transports; Query answers once, which suits
// request/response transports such as HTTP.
package remote

import (
	"context"
	"fmt"

	"github.com/specialistvlad/lazygraph/internal/ctxlog"
	"github.com/specialistvlad/lazygraph/internal/graph"
	"github.com/specialistvlad/lazygraph/internal/nodes"
	"github.com/specialistvlad/lazygraph/internal/proxy"
	"github.com/specialistvlad/lazygraph/internal/query"
	"github.com/specialistvlad/lazygraph/internal/queryset"
)

// Server executes query-sets against a graph.
type Server struct {
	g *graph.Graph
}

// NewServer creates a server for g. The graph's registry must include the
// query module.
func NewServer(g *graph.Graph) *Server {
	return &Server{g: g}
}

// Graph returns the served graph.
func (s *Server) Graph() *graph.Graph { return s.g }

// Handle subscribes to the answer of req and emits every change of it. When
// ctx is done the subscription ends and a final AbortedError is emitted.
// Handle has the signature of a proxy.Handler, so a server can end the
// pipeline of a proxy in the same process (proxy.Local).
func (s *Server) Handle(ctx context.Context, req *proxy.Request, emit func(*proxy.Response)) {
	logger := ctxlog.FromContext(ctx).With("id", req.ID)
	if req.QuerySet == nil {
		emit(&proxy.Response{Err: graph.NewError("request has no query-set")})
		return
	}
	if err := req.QuerySet.Validate(); err != nil {
		emit(&proxy.Response{Err: graph.Errorf("invalid query-set: %v", err)})
		return
	}
	if ctx.Err() != nil {
		emit(&proxy.Response{Err: graph.AbortedError(fmt.Sprintf("request %s was cancelled", req.ID))})
		return
	}

	logger.Debug("subscribing to query-set", "request", req.QuerySet.String())
	sub := s.g.Subscribe(query.Execute(nodes.Root(), req.QuerySet), func(r graph.Result) {
		if ctx.Err() != nil {
			return
		}
		emit(&proxy.Response{Result: responseOf(r)})
	})
	context.AfterFunc(ctx, func() {
		sub.Unsubscribe()
		logger.Debug("query-set subscription cancelled")
		emit(&proxy.Response{Err: graph.AbortedError(fmt.Sprintf("request %s was cancelled", req.ID))})
	})
}

// Query answers op once every leaf of the answer has settled, or with
// whatever is known when ctx is done.
func (s *Server) Query(ctx context.Context, op *queryset.Operation) (any, error) {
	if err := op.Validate(); err != nil {
		return nil, fmt.Errorf("invalid query-set: %w", err)
	}
	results := make(chan any, 1)
	sub := s.g.Subscribe(query.Execute(nodes.Root(), op), func(r graph.Result) {
		resp := responseOf(r)
		if hasPending(resp) {
			return
		}
		select {
		case results <- resp:
		default:
		}
	})
	defer sub.Unsubscribe()

	select {
	case resp := <-results:
		return resp, nil
	case <-ctx.Done():
		return nil, graph.AbortedError(ctx.Err().Error())
	}
}

// responseOf converts a subscription result of an execute node into a
// response tree.
func responseOf(r graph.Result) any {
	switch {
	case r.Pending:
		return graph.Pending()
	case r.Err != nil:
		return graph.ErrorNode(r.Err)
	default:
		return r.Value
	}
}

func hasPending(resp any) bool {
	switch x := resp.(type) {
	case []any:
		for _, e := range x {
			if hasPending(e) {
				return true
			}
		}
		return false
	case *graph.Node:
		return x.Type().Name == graph.PendingTypeName
	default:
		return false
	}
}
