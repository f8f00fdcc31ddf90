// Package socketio carries the subscription protocol of package message over
// a socket.io connection. Every protocol message travels as the JSON text of
// one "message" event.
package socketio

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/specialistvlad/lazygraph/internal/ctxlog"
	"github.com/specialistvlad/lazygraph/internal/transport/message"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// Event is the socket.io event carrying protocol messages.
const Event = "message"

// DefaultConnectTimeout bounds Dial when the context has no deadline.
const DefaultConnectTimeout = 15 * time.Second

// Options configures Dial.
type Options struct {
	Namespace          string
	InsecureSkipVerify bool
}

// Channel is a message.Channel over a connected socket.io client.
type Channel struct {
	io    *socket.Socket
	codec *message.Codec

	incoming  chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

var _ message.Channel = (*Channel)(nil)

// Dial connects to a socket.io server over the websocket transport.
func Dial(ctx context.Context, rawURL string, codec *message.Codec, o Options) (*Channel, error) {
	logger := ctxlog.FromContext(ctx).With("url", rawURL, "namespace", o.Namespace)

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("socketio: failed to parse URL: %w", err)
	}
	opts := socket.DefaultOptions()
	if parsedURL.Path != "" {
		opts.SetPath(parsedURL.Path)
	}
	if o.InsecureSkipVerify {
		logger.Warn("skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	namespace := o.Namespace
	if namespace == "" {
		namespace = "/"
	}
	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	io := socket.NewManager(baseURL, opts).Socket(namespace, opts)

	c := &Channel{
		io:       io,
		codec:    codec,
		incoming: make(chan []byte, 64),
		done:     make(chan struct{}),
	}
	io.On(types.EventName(Event), func(data ...any) {
		if len(data) == 0 {
			return
		}
		var raw []byte
		switch x := data[0].(type) {
		case string:
			raw = []byte(x)
		case []byte:
			raw = x
		default:
			logger.Warn("ignoring a non-text message event", "type", fmt.Sprintf("%T", x))
			return
		}
		select {
		case c.incoming <- raw:
		case <-c.done:
		}
	})
	io.On(types.EventName("disconnect"), func(...any) {
		logger.Debug("socket.io client disconnected")
		c.closeDone()
	})

	connected := make(chan error, 1)
	io.Once(types.EventName("connect"), func(...any) {
		logger.Debug("socket.io client connected", "sid", io.Id())
		select {
		case connected <- nil:
		default:
		}
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		var err error
		if len(errs) > 0 {
			err, _ = errs[0].(error)
		}
		if err == nil {
			err = fmt.Errorf("connect_error %v", errs)
		}
		select {
		case connected <- err:
		default:
		}
	})
	io.Connect()

	timeout := time.NewTimer(DefaultConnectTimeout)
	defer timeout.Stop()
	select {
	case err := <-connected:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socketio: connection failed: %w", err)
		}
		return c, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("socketio: cancelled while connecting: %w", ctx.Err())
	case <-timeout.C:
		io.Disconnect()
		return nil, fmt.Errorf("socketio: timed out after %s waiting for the connection", DefaultConnectTimeout)
	}
}

// Send emits m as one message event.
func (c *Channel) Send(_ context.Context, m *message.Message) error {
	select {
	case <-c.done:
		return message.ErrClosed
	default:
	}
	data, err := c.codec.Marshal(m)
	if err != nil {
		return err
	}
	c.io.Emit(Event, string(data))
	return nil
}

// Receive returns the next message event.
func (c *Channel) Receive(ctx context.Context) (*message.Message, error) {
	select {
	case raw := <-c.incoming:
		return c.codec.Unmarshal(raw)
	case <-c.done:
		return nil, message.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close disconnects the client.
func (c *Channel) Close() error {
	c.closeDone()
	c.io.Disconnect()
	return nil
}

func (c *Channel) closeDone() {
	c.closeOnce.Do(func() { close(c.done) })
}
