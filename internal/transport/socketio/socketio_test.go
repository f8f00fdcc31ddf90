package socketio

import (
	"context"
	"testing"
	"time"

	"github.com/specialistvlad/lazygraph/internal/graph"
	"github.com/specialistvlad/lazygraph/internal/transport/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDial_Failures(t *testing.T) {
	codec := message.NewCodec(graph.NewRegistry())

	testCases := []struct {
		name    string
		url     string
		wantErr string
	}{
		{name: "invalid url", url: "http://[::1", wantErr: "socketio: failed to parse URL"},
		{name: "unreachable", url: "http://127.0.0.1:1/socket.io/", wantErr: "socketio:"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
			defer cancel()
			ch, err := Dial(ctx, tc.url, codec, Options{})
			require.Error(t, err)
			assert.Nil(t, ch)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
