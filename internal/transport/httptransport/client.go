// Package httptransport sends query-sets as HTTP POST requests. Every request
// is answered once, after every leaf of the answer has settled on the
// server.
package httptransport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/specialistvlad/lazygraph/internal/ctxlog"
	"github.com/specialistvlad/lazygraph/internal/proxy"
	"github.com/specialistvlad/lazygraph/internal/transport/message"
)

// maxBodySize bounds request and response bodies.
const maxBodySize = 16 << 20

type client struct {
	url   string
	codec *message.Codec
	http  *http.Client
}

// ClientOption configures the HTTP client transport.
type ClientOption func(*client)

// WithHTTPClient replaces the pooled client used by default.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *client) { c.http = hc }
}

// Client ends a proxy pipeline with HTTP requests to url.
func Client(url string, codec *message.Codec, opts ...ClientOption) proxy.Middleware {
	c := &client{url: url, codec: codec, http: cleanhttp.DefaultPooledClient()}
	for _, opt := range opts {
		opt(c)
	}
	return func(proxy.Handler) proxy.Handler { return c.handle }
}

func (c *client) handle(ctx context.Context, req *proxy.Request, emit func(*proxy.Response)) {
	go func() {
		resp := c.do(ctx, req)
		if ctx.Err() != nil {
			return
		}
		emit(resp)
	}()
}

func (c *client) do(ctx context.Context, req *proxy.Request) *proxy.Response {
	logger := ctxlog.FromContext(ctx).With("url", c.url, "id", req.ID)
	body, err := c.codec.Marshal(&message.Message{Type: message.TypeQuery, ID: req.ID, QuerySet: req.QuerySet})
	if err != nil {
		return &proxy.Response{Err: fmt.Errorf("httptransport: encode request: %w", err)}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return &proxy.Response{Err: fmt.Errorf("httptransport: create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	logger.Debug("posting query-set")
	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return &proxy.Response{Err: fmt.Errorf("httptransport: post: %w", err)}
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodySize))
	if err != nil {
		return &proxy.Response{Err: fmt.Errorf("httptransport: read response: %w", err)}
	}
	if httpResp.StatusCode != http.StatusOK {
		return &proxy.Response{Err: fmt.Errorf("httptransport: HTTP %d: %s", httpResp.StatusCode, bytes.TrimSpace(data))}
	}
	m, err := c.codec.Unmarshal(data)
	if err != nil {
		return &proxy.Response{Err: fmt.Errorf("httptransport: decode response: %w", err)}
	}
	return m.Response()
}
