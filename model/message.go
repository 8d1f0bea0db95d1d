package model

import (
	"bytes"
	"encoding/json"
)

// MessageType tags the payload of an outgoing message.
type MessageType string

const (
	TypeMetadata MessageType = "metadata"
	TypeSpectrum MessageType = "fft"
)

// OutgoingMessage is the broadcast envelope. Data is either a MediaState
// or a normalized spectrum frame, depending on Type.
type OutgoingMessage struct {
	Type MessageType `json:"type"`
	Data any         `json:"data"`
}

// NewMetadataMessage wraps a media state snapshot for broadcast.
func NewMetadataMessage(state MediaState) OutgoingMessage {
	return OutgoingMessage{Type: TypeMetadata, Data: state}
}

// NewSpectrumMessage wraps a normalized spectrum frame for broadcast.
// The frame must not be mutated after it is handed over.
func NewSpectrumMessage(frame []float64) OutgoingMessage {
	return OutgoingMessage{Type: TypeSpectrum, Data: frame}
}

// Encode marshals the message for the text stream. HTML escaping is
// disabled so non-Latin titles (Cyrillic in particular) go out unescaped.
func (m OutgoingMessage) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
