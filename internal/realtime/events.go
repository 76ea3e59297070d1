package realtime

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Event is one decoded server event from the realtime websocket. The
// concrete type carries the fields the session loop cares about; event
// types the session does not act on decode to Unknown.
type Event interface {
	isEvent()
}

// SessionReady reports session.created / session.updated.
type SessionReady struct {
	Type string
}

// SpeechStarted reports input_audio_buffer.speech_started: the caller
// began talking. AudioStartMs is the offset into the input buffer.
type SpeechStarted struct {
	AudioStartMs int64
}

// SpeechStopped reports input_audio_buffer.speech_stopped.
type SpeechStopped struct {
	AudioEndMs int64
}

// ResponseCreated reports response.created.
type ResponseCreated struct {
	ResponseID string
}

// AudioDelta carries one chunk of synthesized output audio (mu-law).
type AudioDelta struct {
	ResponseID string
	ItemID     string
	Audio      []byte
}

// TranscriptDelta carries incremental output transcript text.
type TranscriptDelta struct {
	ResponseID string
	ItemID     string
	Delta      string
}

// FunctionCall is one tool invocation requested by a finished response.
type FunctionCall struct {
	CallID    string
	Name      string
	Arguments string
}

// ResponseDone reports response.done, with any function calls the
// response produced and the final transcript text.
type ResponseDone struct {
	ResponseID    string
	Status        string
	FunctionCalls []FunctionCall
	Transcript    string
}

// InputTranscript is the completed transcription of one caller utterance.
type InputTranscript struct {
	ItemID     string
	Transcript string
}

// ErrorEvent reports a server-side error event.
type ErrorEvent struct {
	Code    string
	Message string
}

// Unknown is any event type the session does not act on.
type Unknown struct {
	Type string
}

func (SessionReady) isEvent()    {}
func (SpeechStarted) isEvent()   {}
func (SpeechStopped) isEvent()   {}
func (ResponseCreated) isEvent() {}
func (AudioDelta) isEvent()      {}
func (TranscriptDelta) isEvent() {}
func (ResponseDone) isEvent()    {}
func (InputTranscript) isEvent() {}
func (ErrorEvent) isEvent()      {}
func (Unknown) isEvent()         {}

type rawEvent struct {
	Type         string `json:"type"`
	EventID      string `json:"event_id"`
	AudioStartMs int64  `json:"audio_start_ms"`
	AudioEndMs   int64  `json:"audio_end_ms"`
	ItemID       string `json:"item_id"`
	ResponseID   string `json:"response_id"`
	Delta        string `json:"delta"`
	Transcript   string `json:"transcript"`
	Response     *struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Output []struct {
			Type      string `json:"type"`
			CallID    string `json:"call_id"`
			Name      string `json:"name"`
			Arguments string `json:"arguments"`
			Content   []struct {
				Type       string `json:"type"`
				Transcript string `json:"transcript"`
			} `json:"content"`
		} `json:"output"`
	} `json:"response"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseEvent decodes one server message into its typed form.
func ParseEvent(raw []byte) (Event, error) {
	var ev rawEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("parse realtime event: %w", err)
	}

	switch ev.Type {
	case "session.created", "session.updated":
		return SessionReady{Type: ev.Type}, nil

	case "input_audio_buffer.speech_started":
		return SpeechStarted{AudioStartMs: ev.AudioStartMs}, nil

	case "input_audio_buffer.speech_stopped":
		return SpeechStopped{AudioEndMs: ev.AudioEndMs}, nil

	case "response.created":
		id := ev.ResponseID
		if id == "" && ev.Response != nil {
			id = ev.Response.ID
		}
		return ResponseCreated{ResponseID: id}, nil

	case "response.audio.delta":
		audio, err := base64.StdEncoding.DecodeString(ev.Delta)
		if err != nil {
			return nil, fmt.Errorf("decode audio delta: %w", err)
		}
		return AudioDelta{ResponseID: ev.ResponseID, ItemID: ev.ItemID, Audio: audio}, nil

	case "response.audio_transcript.delta":
		return TranscriptDelta{ResponseID: ev.ResponseID, ItemID: ev.ItemID, Delta: ev.Delta}, nil

	case "response.done":
		done := ResponseDone{}
		if ev.Response != nil {
			done.ResponseID = ev.Response.ID
			done.Status = ev.Response.Status
			for _, item := range ev.Response.Output {
				if item.Type == "function_call" {
					done.FunctionCalls = append(done.FunctionCalls, FunctionCall{
						CallID:    item.CallID,
						Name:      item.Name,
						Arguments: item.Arguments,
					})
					continue
				}
				for _, c := range item.Content {
					if c.Transcript != "" {
						done.Transcript = c.Transcript
					}
				}
			}
		}
		return done, nil

	case "conversation.item.input_audio_transcription.completed":
		return InputTranscript{ItemID: ev.ItemID, Transcript: ev.Transcript}, nil

	case "error":
		e := ErrorEvent{}
		if ev.Error != nil {
			e.Code = ev.Error.Code
			e.Message = ev.Error.Message
		}
		return e, nil

	default:
		return Unknown{Type: ev.Type}, nil
	}
}
