package proxy

import (
	"context"
	"errors"

	"github.com/specialistvlad/lazygraph/internal/queryset"
)

// Request is one query-set sent through a pipeline.
type Request struct {
	ID       string
	QuerySet *queryset.Operation
}

// Response answers a Request. Result is the response tree of the query-set
// (see package queryset); Err reports a failure of the whole request.
type Response struct {
	Result any
	Err    error
}

// Handler sends a request. It must not block: results are delivered through
// emit, from any goroutine, once for one-shot transports and repeatedly for
// streaming ones. The handler stops emitting once ctx is done.
type Handler func(ctx context.Context, req *Request, emit func(*Response))

// Middleware wraps the next handler of a pipeline.
type Middleware func(next Handler) Handler

// ErrNoTransport is emitted by a pipeline that has no terminal transport.
var ErrNoTransport = errors.New("proxy: pipeline has no transport")

// Compose builds a handler from middlewares. The first middleware is the
// outermost one; the last one is usually a transport that ignores next.
func Compose(middlewares ...Middleware) Handler {
	h := Handler(func(_ context.Context, _ *Request, emit func(*Response)) {
		emit(&Response{Err: ErrNoTransport})
	})
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// Local ends a pipeline with an in-process handler, typically the Handle
// method of a remote server running another graph.
func Local(h Handler) Middleware {
	return func(Handler) Handler { return h }
}
