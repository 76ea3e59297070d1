// Package realtime implements the websocket client for the realtime
// speech model: session configuration, audio streaming in and out, and
// the typed server events the call session reacts to.
package realtime

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/troikatech/voice-gateway/pkg/logger"
)

// SessionConfig is the initial session.update sent right after dial.
type SessionConfig struct {
	Instructions string
	Voice        string
	Tools        []interface{}
}

// Client is a connection to the realtime API. Writes are serialized;
// reads happen from a single reader goroutine via ReadEvent.
type Client struct {
	conn *websocket.Conn
	mu   sync.Mutex
	log  *zap.Logger

	closeOnce sync.Once
}

// Dial connects to the realtime endpoint for the given model.
func Dial(ctx context.Context, baseURL, model, apiKey string) (*Client, error) {
	url := fmt.Sprintf("%s?model=%s", baseURL, model)
	header := http.Header{}
	header.Set("Authorization", "Bearer "+apiKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial realtime (%d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial realtime: %w", err)
	}

	return &Client{conn: conn, log: logger.Log}, nil
}

// ReadEvent blocks until the next server event arrives. Returns the
// underlying read error once the connection closes.
func (c *Client) ReadEvent() (Event, error) {
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		ev, err := ParseEvent(raw)
		if err != nil {
			c.log.Warn("skipping malformed realtime event", zap.Error(err))
			continue
		}
		return ev, nil
	}
}

func (c *Client) send(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// ConfigureSession sends the full session.update: mu-law audio both
// ways, server-side turn detection, input transcription, and the tool
// schemas the model may call.
func (c *Client) ConfigureSession(cfg SessionConfig) error {
	session := map[string]interface{}{
		"modalities":          []string{"text", "audio"},
		"instructions":        cfg.Instructions,
		"voice":               cfg.Voice,
		"input_audio_format":  "g711_ulaw",
		"output_audio_format": "g711_ulaw",
		"input_audio_transcription": map[string]string{
			"model": "whisper-1",
		},
		"turn_detection": map[string]interface{}{
			"type": "server_vad",
		},
	}
	if len(cfg.Tools) > 0 {
		session["tools"] = cfg.Tools
		session["tool_choice"] = "auto"
	}
	return c.send(map[string]interface{}{
		"type":    "session.update",
		"session": session,
	})
}

// UpdateSession patches individual session fields, e.g. noise reduction.
func (c *Client) UpdateSession(patch map[string]interface{}) error {
	return c.send(map[string]interface{}{
		"type":    "session.update",
		"session": patch,
	})
}

// AppendAudio forwards one frame of caller audio into the input buffer.
func (c *Client) AppendAudio(mulaw []byte) error {
	return c.send(map[string]interface{}{
		"type":  "input_audio_buffer.append",
		"audio": base64.StdEncoding.EncodeToString(mulaw),
	})
}

// CreateUserMessage injects a text message as if the caller had typed it.
func (c *Client) CreateUserMessage(text string) error {
	return c.send(map[string]interface{}{
		"type": "conversation.item.create",
		"item": map[string]interface{}{
			"type": "message",
			"role": "user",
			"content": []map[string]string{
				{"type": "input_text", "text": text},
			},
		},
	})
}

// CreateSystemMessage injects guidance the caller never hears.
func (c *Client) CreateSystemMessage(text string) error {
	return c.send(map[string]interface{}{
		"type": "conversation.item.create",
		"item": map[string]interface{}{
			"type": "message",
			"role": "system",
			"content": []map[string]string{
				{"type": "input_text", "text": text},
			},
		},
	})
}

// CreateFunctionOutput returns a tool result to the conversation.
func (c *Client) CreateFunctionOutput(callID, output string) error {
	return c.send(map[string]interface{}{
		"type": "conversation.item.create",
		"item": map[string]interface{}{
			"type":    "function_call_output",
			"call_id": callID,
			"output":  output,
		},
	})
}

// TruncateItem cuts a spoken assistant item at audioEndMs so the model's
// view of the conversation matches what the caller actually heard.
func (c *Client) TruncateItem(itemID string, audioEndMs int64) error {
	return c.send(map[string]interface{}{
		"type":          "conversation.item.truncate",
		"item_id":       itemID,
		"content_index": 0,
		"audio_end_ms":  audioEndMs,
	})
}

// CreateResponse asks the model to generate the next assistant turn.
func (c *Client) CreateResponse() error {
	return c.send(map[string]interface{}{
		"type": "response.create",
	})
}

func closeDeadline() time.Time {
	return time.Now().Add(time.Second)
}

// Close tears the connection down. Safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), closeDeadline())
		c.mu.Unlock()
		err = c.conn.Close()
	})
	return err
}
