// ABOUTME: Wire frames for the status feed
// ABOUTME: Defines the JSON envelope and payload types shared by server and client
package feed

import (
	"encoding/json"
	"fmt"
)

// Frame types.
const (
	// TypeHello is sent by the publisher when a subscriber connects.
	TypeHello = "feed/hello"
	// TypeEvent wraps one latency monitor event.
	TypeEvent = "feed/event"
	// TypeSnapshotRequest asks the publisher for a full export.
	TypeSnapshotRequest = "snapshot/get"
	// TypeSnapshot carries the export data back.
	TypeSnapshot = "snapshot/data"
)

// Frame is the envelope for every feed message.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Hello identifies the publisher to a new subscriber.
type Hello struct {
	Product  string `json:"product"`
	Version  string `json:"version"`
	Name     string `json:"name"`
	ServerID string `json:"server_id"`
}

// NewFrame builds a frame with an encoded payload.
func NewFrame(frameType string, payload interface{}) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, fmt.Errorf("failed to encode %s payload: %w", frameType, err)
	}
	return Frame{Type: frameType, Payload: raw}, nil
}
