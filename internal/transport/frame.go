package transport

import "encoding/json"

// Frame is one JSON text message on the socket. Requests carry Event and ID,
// acknowledgements carry Ack, and pushes carry Event only.
type Frame struct {
	Event string          `json:"event,omitempty"`
	ID    uint64          `json:"id,omitempty"`
	Ack   uint64          `json:"ack,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// IsAck reports whether the frame answers a request.
func (f Frame) IsAck() bool {
	return f.Ack != 0
}

func encodePayload(payload any) (json.RawMessage, error) {
	if payload == nil {
		return json.RawMessage(`{}`), nil
	}
	if raw, ok := payload.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(payload)
}
