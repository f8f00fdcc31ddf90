package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/specialistvlad/lazygraph/internal/ctxlog"
	"github.com/specialistvlad/lazygraph/internal/graph"
	"github.com/specialistvlad/lazygraph/internal/nodes"
)

const maxBodySize = 16 << 20

// Request describes an HTTP endpoint to fetch.
type Request struct {
	URL     string
	Method  string
	Headers map[string]string
	// Interval re-fetches the endpoint while the branch is watched. Zero
	// fetches it once per activation.
	Interval time.Duration
}

// Fetcher performs Requests with one shared client.
type Fetcher struct {
	client *http.Client
}

// NewFetcher returns a fetcher using client, or a pooled client when it is
// nil.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = cleanhttp.DefaultPooledClient()
	}
	return &Fetcher{client: client}
}

// Node returns a branch holding the latest response of req as a tree with
// status_code, headers and body. JSON bodies are decoded; other bodies are
// kept as a string. A failed request is a NetworkError; a non-2xx status is
// not an error.
func (f *Fetcher) Node(req Request) *graph.Node {
	if req.Interval <= 0 {
		return nodes.FromFuture(func(ctx context.Context) (any, error) {
			return f.do(ctx, req)
		})
	}
	return nodes.FromStream(func(ctx context.Context, emit func(any)) error {
		ticker := time.NewTicker(req.Interval)
		defer ticker.Stop()
		var last string
		for {
			v, err := f.do(ctx, req)
			switch {
			case ctx.Err() != nil:
				return ctx.Err()
			case err != nil:
				// Keep the last good response and try again on the next tick.
				ctxlog.FromContext(ctx).Warn("fetch failed", "url", req.URL, "error", err)
			default:
				if key := graph.CanonicalString(v); key != last {
					last = key
					emit(v)
				}
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
	})
}

func (f *Fetcher) do(ctx context.Context, req Request) (any, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Fetching endpoint.", "method", method, "url", req.URL)

	hreq, err := http.NewRequestWithContext(ctx, method, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range req.Headers {
		hreq.Header.Set(k, v)
	}
	resp, err := f.client.Do(hreq)
	if err != nil {
		return nil, graph.NetworkError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, graph.NetworkError(fmt.Errorf("failed to read response body: %w", err))
	}
	logger.Debug("Received response.", "url", req.URL, "status", resp.Status)

	headers := make(map[string]any, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}
	body, err := decodeBody(resp.Header.Get("Content-Type"), raw)
	if err != nil {
		return nil, graph.NewError(fmt.Sprintf("failed to decode response of %s: %v", req.URL, err))
	}
	return map[string]any{
		"status_code": float64(resp.StatusCode),
		"headers":     headers,
		"body":        body,
	}, nil
}

func decodeBody(contentType string, raw []byte) (any, error) {
	mt, _, _ := mime.ParseMediaType(contentType)
	if mt != "application/json" {
		return string(raw), nil
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}
