// Package message implements the subscription protocol spoken between a
// proxy and a remote server over a bidirectional channel:
//
//	subscribe(id, querySet)       client -> server
//	unsubscribe(id)               client -> server
//	subscriptionResult(id, result) server -> client
//
// A subscription streams a result every time the answer changes on the
// server, until the client unsubscribes. The one-shot query/result pair is
// used by request/response transports.
package message

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/specialistvlad/lazygraph/internal/codec"
	"github.com/specialistvlad/lazygraph/internal/graph"
	"github.com/specialistvlad/lazygraph/internal/proxy"
	"github.com/specialistvlad/lazygraph/internal/queryset"
)

// Type identifies a message.
type Type string

// Message types.
const (
	TypeSubscribe          Type = "subscribe"
	TypeUnsubscribe        Type = "unsubscribe"
	TypeSubscriptionResult Type = "subscriptionResult"
	TypeQuery              Type = "query"
	TypeResult             Type = "result"
)

// Message is one protocol message. QuerySet is set on subscribe and query;
// Result or Error on subscriptionResult and result.
type Message struct {
	Type     Type
	ID       string
	QuerySet *queryset.Operation
	Result   any
	Error    *graph.Error
}

// Result builds the message answering request id with resp.
func Result(typ Type, id string, resp *proxy.Response) *Message {
	m := &Message{Type: typ, ID: id, Result: resp.Result}
	if resp.Err != nil {
		m.Result = nil
		m.Error = graph.AsError(resp.Err)
	}
	return m
}

// Response converts a result message back into a pipeline response.
func (m *Message) Response() *proxy.Response {
	if m.Error != nil {
		return &proxy.Response{Err: m.Error}
	}
	return &proxy.Response{Result: m.Result}
}

// Codec converts messages to and from their JSON form. Query-sets and
// response trees use the envelope encoding of package codec.
type Codec struct {
	decoder *codec.Decoder
}

// NewCodec creates a codec decoding definitions with the types of r.
func NewCodec(r *graph.Registry) *Codec {
	d := codec.NewDecoder(r)
	queryset.RegisterHook(d)
	return &Codec{decoder: d}
}

// Encode converts m into a JSON-compatible object.
func (c *Codec) Encode(m *Message) (map[string]any, error) {
	out := map[string]any{"type": string(m.Type), "id": m.ID}
	switch m.Type {
	case TypeSubscribe, TypeQuery:
		if m.QuerySet == nil {
			return nil, fmt.Errorf("%s message has no query-set", m.Type)
		}
		qs, err := m.QuerySet.Encode()
		if err != nil {
			return nil, fmt.Errorf("failed to encode query-set: %w", err)
		}
		out["querySet"] = qs
	case TypeSubscriptionResult, TypeResult:
		if m.Error != nil {
			env, err := codec.Encode(graph.ErrorNode(m.Error))
			if err != nil {
				return nil, fmt.Errorf("failed to encode error: %w", err)
			}
			out["error"] = env
			break
		}
		r, err := codec.EncodeValue(m.Result)
		if err != nil {
			return nil, fmt.Errorf("failed to encode result: %w", err)
		}
		out["result"] = r
	case TypeUnsubscribe:
	default:
		return nil, fmt.Errorf("unknown message type %q", m.Type)
	}
	return out, nil
}

// Decode reverses Encode.
func (c *Codec) Decode(v any) (*Message, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a message object, got %T", v)
	}
	typ, _ := obj["type"].(string)
	id, _ := obj["id"].(string)
	if id == "" {
		return nil, errors.New("message has no id")
	}
	m := &Message{Type: Type(typ), ID: id}
	switch m.Type {
	case TypeSubscribe, TypeQuery:
		qs, err := queryset.Decode(c.decoder, obj["querySet"])
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", m.Type, id, err)
		}
		m.QuerySet = qs
	case TypeSubscriptionResult, TypeResult:
		if raw, ok := obj["error"]; ok && raw != nil {
			n, err := c.decoder.Decode(raw)
			if err != nil {
				return nil, fmt.Errorf("%s %s: %w", m.Type, id, err)
			}
			if m.Error = graph.ErrorFromNode(n); m.Error == nil {
				return nil, fmt.Errorf("%s %s: error is a %s definition", m.Type, id, n.Type().Name)
			}
			break
		}
		r, err := c.decoder.DecodeValue(obj["result"])
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", m.Type, id, err)
		}
		m.Result = r
	case TypeUnsubscribe:
	default:
		return nil, fmt.Errorf("unknown message type %q", typ)
	}
	return m, nil
}

// Marshal encodes m as JSON.
func (c *Codec) Marshal(m *Message) ([]byte, error) {
	obj, err := c.Encode(m)
	if err != nil {
		return nil, err
	}
	return json.Marshal(obj)
}

// Unmarshal decodes a JSON message.
func (c *Codec) Unmarshal(data []byte) (*Message, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return c.Decode(v)
}
