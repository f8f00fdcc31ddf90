package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/specialistvlad/lazygraph/internal/ctxlog"
	"github.com/specialistvlad/lazygraph/internal/proxy"
)

// Logging logs every request and its responses with the logger carried by
// the request context.
func Logging() proxy.Middleware {
	return func(next proxy.Handler) proxy.Handler {
		return func(ctx context.Context, req *proxy.Request, emit func(*proxy.Response)) {
			logger := ctxlog.FromContext(ctx).With("id", req.ID)
			logger.Debug("sending query-set", "request", req.QuerySet.String())
			start := time.Now()
			var (
				mu    sync.Mutex
				count int
			)
			next(ctx, req, func(resp *proxy.Response) {
				mu.Lock()
				count++
				n := count
				mu.Unlock()
				if resp.Err != nil {
					logger.Warn("query-set failed", "error", resp.Err, "elapsed", time.Since(start), "response", n)
				} else {
					logger.Debug("query-set answered", "elapsed", time.Since(start), "response", n)
				}
				emit(resp)
			})
		}
	}
}
