package websocket

import (
	"encoding/json"
	"time"
)

// Message is the envelope pushed to connected clients.
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ToJSON serializes the message, stamping the timestamp if unset.
func (m Message) ToJSON() []byte {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(m)
	if err != nil {
		return []byte(`{"type":"error","data":"failed to serialize message"}`)
	}
	return data
}
