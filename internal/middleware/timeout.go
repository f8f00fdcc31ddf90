package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/specialistvlad/lazygraph/internal/graph"
	"github.com/specialistvlad/lazygraph/internal/proxy"
)

// Timeout fails a request with a TimeoutError when no response arrives
// within d. The request is then cancelled downstream and late responses are
// dropped. Streaming responses after the first one are not timed.
func Timeout(d time.Duration) proxy.Middleware {
	return func(next proxy.Handler) proxy.Handler {
		return func(ctx context.Context, req *proxy.Request, emit func(*proxy.Response)) {
			ctx, cancel := context.WithCancel(ctx)
			var (
				mu       sync.Mutex
				answered bool
				expired  bool
			)
			timer := time.AfterFunc(d, func() {
				mu.Lock()
				if answered || ctx.Err() != nil {
					mu.Unlock()
					return
				}
				expired = true
				mu.Unlock()
				cancel()
				emit(&proxy.Response{Err: graph.TimeoutError(fmt.Sprintf("request %s timed out after %s", req.ID, d))})
			})
			context.AfterFunc(ctx, func() { timer.Stop() })

			next(ctx, req, func(resp *proxy.Response) {
				mu.Lock()
				if expired {
					mu.Unlock()
					return
				}
				answered = true
				mu.Unlock()
				timer.Stop()
				emit(resp)
			})
		}
	}
}
