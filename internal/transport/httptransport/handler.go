package httptransport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/specialistvlad/lazygraph/internal/ctxlog"
	"github.com/specialistvlad/lazygraph/internal/proxy"
	"github.com/specialistvlad/lazygraph/internal/remote"
	"github.com/specialistvlad/lazygraph/internal/transport/message"
)

// Handler answers query messages posted by Client.
type Handler struct {
	server  *remote.Server
	codec   *message.Codec
	timeout time.Duration
}

// NewHandler creates a handler answering with server. A positive timeout
// bounds how long a query may wait for pending leaves.
func NewHandler(server *remote.Server, codec *message.Codec, timeout time.Duration) *Handler {
	return &Handler{server: server, codec: codec, timeout: timeout}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := ctxlog.FromContext(r.Context())
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read body: %v", err), http.StatusBadRequest)
		return
	}
	m, err := h.codec.Unmarshal(data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if m.Type != message.TypeQuery {
		http.Error(w, fmt.Sprintf("expected a %s message, got %s", message.TypeQuery, m.Type), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	result, err := h.server.Query(ctx, m.QuerySet)
	if err != nil {
		logger.Warn("query failed", "id", m.ID, "error", err)
	}
	body, err := h.codec.Marshal(message.Result(message.TypeResult, m.ID, &proxy.Response{Result: result, Err: err}))
	if err != nil {
		logger.Error("failed to encode result", "id", m.ID, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}
