package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// newTestClient runs a websocket server that forwards every inbound
// message to got and returns a connected Client against it.
func newTestClient(t *testing.T, got chan<- map[string]interface{}) (*Client, *httptest.Server) {
	t.Helper()
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %q", auth)
		}
		if beta := r.Header.Get("OpenAI-Beta"); beta != "realtime=v1" {
			t.Errorf("OpenAI-Beta = %q", beta)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var msg map[string]interface{}
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			got <- msg
		}
	}))

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client, err := Dial(ctx, url, "test-model", "test-key")
	if err != nil {
		srv.Close()
		t.Fatalf("Dial: %v", err)
	}
	return client, srv
}

func recvMsg(t *testing.T, got <-chan map[string]interface{}) map[string]interface{} {
	t.Helper()
	select {
	case msg := <-got:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestConfigureSession(t *testing.T) {
	got := make(chan map[string]interface{}, 4)
	client, srv := newTestClient(t, got)
	defer srv.Close()
	defer client.Close()

	err := client.ConfigureSession(SessionConfig{
		Instructions: "be brief",
		Voice:        "alloy",
		Tools: []interface{}{
			map[string]interface{}{"type": "function", "name": "end_call"},
		},
	})
	if err != nil {
		t.Fatalf("ConfigureSession: %v", err)
	}

	msg := recvMsg(t, got)
	if msg["type"] != "session.update" {
		t.Fatalf("type = %v", msg["type"])
	}
	session := msg["session"].(map[string]interface{})
	if session["input_audio_format"] != "g711_ulaw" || session["output_audio_format"] != "g711_ulaw" {
		t.Errorf("audio formats = %v/%v", session["input_audio_format"], session["output_audio_format"])
	}
	if session["voice"] != "alloy" || session["instructions"] != "be brief" {
		t.Errorf("session = %v", session)
	}
	if session["tool_choice"] != "auto" {
		t.Errorf("tool_choice = %v", session["tool_choice"])
	}
	td := session["turn_detection"].(map[string]interface{})
	if td["type"] != "server_vad" {
		t.Errorf("turn_detection = %v", td)
	}
}

func TestAppendAudioAndTruncate(t *testing.T) {
	got := make(chan map[string]interface{}, 4)
	client, srv := newTestClient(t, got)
	defer srv.Close()
	defer client.Close()

	if err := client.AppendAudio([]byte{1, 2, 3}); err != nil {
		t.Fatalf("AppendAudio: %v", err)
	}
	msg := recvMsg(t, got)
	if msg["type"] != "input_audio_buffer.append" {
		t.Fatalf("type = %v", msg["type"])
	}
	if msg["audio"] != base64.StdEncoding.EncodeToString([]byte{1, 2, 3}) {
		t.Errorf("audio = %v", msg["audio"])
	}

	if err := client.TruncateItem("item_3", 1500); err != nil {
		t.Fatalf("TruncateItem: %v", err)
	}
	msg = recvMsg(t, got)
	if msg["type"] != "conversation.item.truncate" || msg["item_id"] != "item_3" {
		t.Fatalf("truncate = %v", msg)
	}
	if ms, _ := msg["audio_end_ms"].(float64); int64(ms) != 1500 {
		t.Errorf("audio_end_ms = %v", msg["audio_end_ms"])
	}
}

func TestConversationItems(t *testing.T) {
	got := make(chan map[string]interface{}, 4)
	client, srv := newTestClient(t, got)
	defer srv.Close()
	defer client.Close()

	if err := client.CreateUserMessage("hello"); err != nil {
		t.Fatalf("CreateUserMessage: %v", err)
	}
	msg := recvMsg(t, got)
	item := msg["item"].(map[string]interface{})
	if msg["type"] != "conversation.item.create" || item["role"] != "user" {
		t.Fatalf("user item = %v", msg)
	}

	if err := client.CreateFunctionOutput("call_7", `{"ok":true}`); err != nil {
		t.Fatalf("CreateFunctionOutput: %v", err)
	}
	msg = recvMsg(t, got)
	item = msg["item"].(map[string]interface{})
	if item["type"] != "function_call_output" || item["call_id"] != "call_7" {
		t.Fatalf("function output item = %v", msg)
	}

	if err := client.CreateResponse(); err != nil {
		t.Fatalf("CreateResponse: %v", err)
	}
	if msg = recvMsg(t, got); msg["type"] != "response.create" {
		t.Fatalf("type = %v", msg["type"])
	}
}

func TestReadEventSkipsMalformed(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		b, _ := json.Marshal(map[string]interface{}{"type": "response.created", "response_id": "resp_2"})
		_ = conn.WriteMessage(websocket.TextMessage, b)
		time.Sleep(time.Second)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, err := Dial(context.Background(), url, "m", "k")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	ev, err := client.ReadEvent()
	if err != nil {
		t.Fatalf("ReadEvent: %v", err)
	}
	created, ok := ev.(ResponseCreated)
	if !ok || created.ResponseID != "resp_2" {
		t.Fatalf("event = %#v", ev)
	}
}
