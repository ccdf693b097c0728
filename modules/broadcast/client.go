package broadcast

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/example/socket-playground-demo/domain/identity"
)

// Sender is the write side of a connection. *websocket.Conn satisfies
// it; tests use fakes so the hub can be exercised without a socket layer.
type Sender interface {
	WriteMessage(messageType int, data []byte) error
}

// Client represents a connected, authenticated WebSocket client.
type Client struct {
	ID          string
	User        identity.Identity
	Conn        Sender
	ConnectedAt time.Time

	// The connection allows only one concurrent writer, so every write
	// to Conn must hold writeMu.
	writeMu sync.Mutex
}

// Envelope is the wire format for every message in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// encodeEnvelope marshals a typed payload into the wire envelope.
func encodeEnvelope(msgType string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = data
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}
