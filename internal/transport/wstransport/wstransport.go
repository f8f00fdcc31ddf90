// Package wstransport carries the subscription protocol of package message
// over websocket connections.
package wstransport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/specialistvlad/lazygraph/internal/ctxlog"
	"github.com/specialistvlad/lazygraph/internal/proxy"
	"github.com/specialistvlad/lazygraph/internal/transport/message"
)

const closeGracePeriod = time.Second

// Channel is a message.Channel over one websocket connection. Receive only
// returns when a message arrives or the connection is closed.
type Channel struct {
	conn  *websocket.Conn
	codec *message.Codec

	writeMu   sync.Mutex
	closeOnce sync.Once
}

var _ message.Channel = (*Channel)(nil)

// NewChannel wraps an established connection.
func NewChannel(conn *websocket.Conn, codec *message.Codec) *Channel {
	return &Channel{conn: conn, codec: codec}
}

// Dial connects to a websocket endpoint served by Handler.
func Dial(ctx context.Context, url string, codec *message.Codec) (*Channel, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("wstransport: dial %s: %w", url, err)
	}
	return NewChannel(conn, codec), nil
}

// Send writes m as one text frame.
func (c *Channel) Send(ctx context.Context, m *message.Message) error {
	data, err := c.codec.Marshal(m)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	_ = c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return closedOr(err)
	}
	return nil
}

// Receive reads the next message.
func (c *Channel) Receive(_ context.Context) (*message.Message, error) {
	for {
		typ, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, closedOr(err)
		}
		if typ != websocket.TextMessage {
			continue
		}
		return c.codec.Unmarshal(data)
	}
}

// Close sends a close frame and closes the connection.
func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeGracePeriod))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

func closedOr(err error) error {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || errors.Is(err, net.ErrClosed) {
		return message.ErrClosed
	}
	return err
}

// Handler upgrades requests to websocket connections and serves the
// subscription protocol on them.
type Handler struct {
	server   proxy.Handler
	codec    *message.Codec
	upgrader websocket.Upgrader
}

// NewHandler creates a handler answering subscriptions with server, usually
// the Handle method of a remote.Server.
func NewHandler(server proxy.Handler, codec *message.Codec) *Handler {
	return &Handler{
		server: server,
		codec:  codec,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := ctxlog.FromContext(r.Context())
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("failed to upgrade the websocket", "error", err)
		return
	}
	logger.Debug("websocket client connected", "remote", r.RemoteAddr)
	if err := message.Serve(r.Context(), NewChannel(conn, h.codec), h.server); err != nil {
		logger.Warn("websocket session ended with an error", "remote", r.RemoteAddr, "error", err)
		return
	}
	logger.Debug("websocket client disconnected", "remote", r.RemoteAddr)
}
