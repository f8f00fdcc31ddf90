package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/specialistvlad/lazygraph/internal/ctxlog"
	"github.com/specialistvlad/lazygraph/internal/graph"
	"github.com/specialistvlad/lazygraph/internal/proxy"
)

// Retry re-sends a request that failed, up to numberOfRetries times with
// retryDelay between attempts. When the retries are used up the caller
// receives a NetworkError.
func Retry(numberOfRetries int, retryDelay time.Duration) proxy.Middleware {
	return func(next proxy.Handler) proxy.Handler {
		return func(ctx context.Context, req *proxy.Request, emit func(*proxy.Response)) {
			var attempt func(n int)
			attempt = func(n int) {
				var failed sync.Once
				next(ctx, req, func(resp *proxy.Response) {
					if resp.Err == nil {
						emit(resp)
						return
					}
					failed.Do(func() {
						if ctx.Err() != nil {
							return
						}
						if n >= numberOfRetries {
							emit(&proxy.Response{Err: networkError(resp.Err, n+1)})
							return
						}
						ctxlog.FromContext(ctx).Debug("retrying request",
							"id", req.ID, "attempt", n+1, "delay", retryDelay, "error", resp.Err)
						time.AfterFunc(retryDelay, func() {
							if ctx.Err() == nil {
								attempt(n + 1)
							}
						})
					})
				})
			}
			attempt(0)
		}
	}
}

func networkError(err error, attempts int) *graph.Error {
	if errors.Is(err, graph.ErrNetwork) {
		return graph.AsError(err)
	}
	return graph.NetworkError(fmt.Errorf("%d attempts failed: %w", attempts, err))
}
