package middleware

import (
	"context"
	"errors"

	"github.com/specialistvlad/lazygraph/internal/graph"
	"github.com/specialistvlad/lazygraph/internal/proxy"
	"github.com/specialistvlad/lazygraph/internal/queryset"
)

// MapErrors rewrites the errors of responses: the error of a failed request
// and every error leaf of a response tree. Returning nil keeps the error.
func MapErrors(fn func(*graph.Error) *graph.Error) proxy.Middleware {
	mapLeaf := func(def *graph.Node) *graph.Node {
		err := graph.ErrorFromNode(def)
		if err == nil {
			return def
		}
		if mapped := fn(err); mapped != nil {
			return graph.ErrorNode(mapped)
		}
		return def
	}
	return func(next proxy.Handler) proxy.Handler {
		return func(ctx context.Context, req *proxy.Request, emit func(*proxy.Response)) {
			next(ctx, req, func(resp *proxy.Response) {
				out := &proxy.Response{Result: queryset.Walk(resp.Result, mapLeaf), Err: resp.Err}
				var e *graph.Error
				if errors.As(resp.Err, &e) {
					if mapped := fn(e); mapped != nil {
						out.Err = mapped
					}
				}
				emit(out)
			})
		}
	}
}

// RemoteErrors reports generic errors of the remote graph as RemoteError,
// keeping their message, data and location. Errors with a specific code
// pass through.
func RemoteErrors() proxy.Middleware {
	return MapErrors(func(err *graph.Error) *graph.Error {
		if err.Code != graph.CodeError {
			return nil
		}
		out := graph.RemoteError(err.Message, err.Data)
		out.Path, out.RemotePath = err.Path, err.RemotePath
		return out
	})
}
