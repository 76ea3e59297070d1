// Package telephony defines the Twilio Media Streams wire protocol: the
// JSON frames exchanged over the media websocket for a single call leg.
package telephony

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Inbound event names.
const (
	EventConnected = "connected"
	EventStart     = "start"
	EventMedia     = "media"
	EventMark      = "mark"
	EventStop      = "stop"
)

// StartPayload carries the stream metadata sent once at call start.
type StartPayload struct {
	StreamSID        string            `json:"streamSid"`
	AccountSID       string            `json:"accountSid"`
	CallSID          string            `json:"callSid"`
	Tracks           []string          `json:"tracks"`
	CustomParameters map[string]string `json:"customParameters"`
}

// MediaPayload is one inbound audio frame. Payload is base64 mu-law.
type MediaPayload struct {
	Track     string `json:"track"`
	Chunk     string `json:"chunk"`
	Timestamp string `json:"timestamp"`
	Payload   string `json:"payload"`
}

// MarkPayload echoes a playback marker once audio up to it has played.
type MarkPayload struct {
	Name string `json:"name"`
}

// StopPayload reports the stream close.
type StopPayload struct {
	AccountSID string `json:"accountSid"`
	CallSID    string `json:"callSid"`
}

// Frame is one decoded inbound message. Exactly one payload field is
// populated, according to Event.
type Frame struct {
	Event          string        `json:"event"`
	SequenceNumber string        `json:"sequenceNumber,omitempty"`
	StreamSID      string        `json:"streamSid,omitempty"`
	Start          *StartPayload `json:"start,omitempty"`
	Media          *MediaPayload `json:"media,omitempty"`
	Mark           *MarkPayload  `json:"mark,omitempty"`
	Stop           *StopPayload  `json:"stop,omitempty"`
}

// ParseFrame decodes one inbound websocket message.
func ParseFrame(raw []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse media frame: %w", err)
	}
	if f.Event == "" {
		return nil, fmt.Errorf("parse media frame: missing event")
	}
	return &f, nil
}

// AudioBytes decodes the base64 mu-law payload of a media frame.
func (f *Frame) AudioBytes() ([]byte, error) {
	if f.Media == nil {
		return nil, fmt.Errorf("frame %q has no media payload", f.Event)
	}
	data, err := base64.StdEncoding.DecodeString(f.Media.Payload)
	if err != nil {
		return nil, fmt.Errorf("decode media payload: %w", err)
	}
	return data, nil
}

// MediaMessage builds an outbound audio frame from raw mu-law bytes.
func MediaMessage(streamSID string, mulaw []byte) []byte {
	msg := map[string]interface{}{
		"event":     EventMedia,
		"streamSid": streamSID,
		"media": map[string]string{
			"payload": base64.StdEncoding.EncodeToString(mulaw),
		},
	}
	b, _ := json.Marshal(msg)
	return b
}

// MarkMessage builds an outbound playback marker.
func MarkMessage(streamSID, name string) []byte {
	msg := map[string]interface{}{
		"event":     EventMark,
		"streamSid": streamSID,
		"mark":      map[string]string{"name": name},
	}
	b, _ := json.Marshal(msg)
	return b
}

// ClearMessage tells the stream to drop all buffered outbound audio.
func ClearMessage(streamSID string) []byte {
	msg := map[string]string{
		"event":     "clear",
		"streamSid": streamSID,
	}
	b, _ := json.Marshal(msg)
	return b
}
