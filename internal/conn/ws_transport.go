// internal/conn/ws_transport.go
package conn

import (
	"context"

	"github.com/coder/websocket"
)

// wsTransport adapts a coder/websocket connection to the Transport surface.
type wsTransport struct {
	c *websocket.Conn
}

// Read returns the next text payload, skipping any non-text message.
func (t *wsTransport) Read(ctx context.Context) ([]byte, error) {
	for {
		typ, data, err := t.c.Read(ctx)
		if err != nil {
			return nil, err
		}
		if typ != websocket.MessageText {
			continue
		}
		return data, nil
	}
}

func (t *wsTransport) Write(ctx context.Context, data []byte) error {
	return t.c.Write(ctx, websocket.MessageText, data)
}

func (t *wsTransport) Close(code websocket.StatusCode, reason string) error {
	return t.c.Close(code, reason)
}
