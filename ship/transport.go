package ship

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

// maxFrameBytes is the read-limit ceiling §4.6 requires (≥ 512 MiB); signed
// blocks with a full transaction list can be large, and the node does not
// chunk frames.
const maxFrameBytes = 512 << 20

// Transport is the minimum websocket session surface ShipClient needs. It
// exists so tests can drive the frame handler without a real socket;
// dialWebsocket is the only production implementation.
type Transport interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer opens a Transport to wsEndpoint. Production code uses
// DialWebsocket; tests supply a fake.
type Dialer func(ctx context.Context, wsEndpoint string) (Transport, error)

type wsTransport struct {
	conn *websocket.Conn
}

// DialWebsocket is the default Dialer, built on
// github.com/gorilla/websocket with per-message compression disabled and
// the oversized frame cap §4.6 calls for.
func DialWebsocket(ctx context.Context, wsEndpoint string) (Transport, error) {
	dialer := websocket.Dialer{
		EnableCompression: false,
		HandshakeTimeout:  15 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, wsEndpoint, nil)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(maxFrameBytes)
	return &wsTransport{conn: conn}, nil
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	return data, err
}

func (t *wsTransport) WriteMessage(data []byte) error {
	return t.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}
