// Package wire defines the JSON wire format exchanged with the
// robot-control server.
package wire

import (
	"encoding/json"
	"fmt"
)

// Tags for the two frame shapes produced by the hand-tracking source.
// The encoder itself accepts any tag and any fixed-length vector.
const (
	// TagRightHand labels a 17-element single-hand feature vector.
	TagRightHand = "rightHandData"
	// TagRelativeHands labels a 44-element two-hand relative feature vector.
	TagRelativeHands = "relativeHandData"
)

// Frame is one snapshot of sensor features sent in a single outbound
// message. It is created once per tick and not retained after encoding.
type Frame struct {
	Type     string    `json:"type"`
	HandData []float64 `json:"handData"`
}

// NewFrame creates a frame with the given tag and feature vector.
func NewFrame(tag string, vector []float64) Frame {
	return Frame{Type: tag, HandData: vector}
}

// Encode serializes the frame into a JSON text message.
// It is stateless and safe for concurrent use.
func (f Frame) Encode() ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return data, nil
}

// Decode parses a JSON text message into the frame.
func (f *Frame) Decode(data []byte) error {
	if err := json.Unmarshal(data, f); err != nil {
		return fmt.Errorf("failed to decode frame: %w", err)
	}
	return nil
}

// Message is an inbound text payload from the server, forwarded verbatim
// to subscribers. No schema is imposed on the content.
type Message struct {
	Text string
}
