package tools

import (
	"context"
	"strings"
	"testing"
)

type fakeControls struct {
	noiseMode   string
	endReason   string
	ended       bool
	transferTo  string
	transferLbl string
}

func (f *fakeControls) ApplyNoiseReduction(mode string) error {
	f.noiseMode = mode
	return nil
}

func (f *fakeControls) EndCall(reason string) {
	f.ended = true
	f.endReason = reason
}

func (f *fakeControls) TransferCall(destination, label string) error {
	f.transferTo = destination
	f.transferLbl = label
	return nil
}

type fakeMessenger struct {
	from, to, body string
	err            error
}

func (f *fakeMessenger) SendMessage(from, to, body string) error {
	f.from, f.to, f.body = from, to, body
	return f.err
}

func TestParseArguments(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		key  string
		want string
	}{
		{"clean", `{"query":"hello"}`, "query", "hello"},
		{"empty", ``, "", ""},
		{"smart quotes", "{“query”: “hello”}", "query", "hello"},
		{"trailing comma", `{"query":"hello",}`, "query", "hello"},
		{"trailing comma in array", `{"query":"hi","tags":["a","b",]}`, "query", "hi"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			args, err := ParseArguments(tc.raw)
			if err != nil {
				t.Fatalf("ParseArguments(%q): %v", tc.raw, err)
			}
			if tc.key != "" && args[tc.key] != tc.want {
				t.Errorf("args[%q] = %v, want %q", tc.key, args[tc.key], tc.want)
			}
		})
	}

	if _, err := ParseArguments(`{"broken`); err == nil {
		t.Error("expected error for unrecoverable json")
	}
}

func TestRepairJSONKeepsCommasInStrings(t *testing.T) {
	raw := `{"body":"hi, }ok,","n":1}`
	if got := repairJSON(raw); got != raw {
		t.Errorf("repairJSON changed string content: %q", got)
	}
}

func TestRegistryDispatch(t *testing.T) {
	controls := &fakeControls{}
	reg := NewRegistry(NewEndCall(), NewSetNoiseReduction())
	tc := &Context{CallSID: "CA1", Controls: controls}

	out, err := reg.Execute(context.Background(), "end_call", `{"reason":"caller said bye"}`, tc)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !controls.ended || controls.endReason != "caller said bye" {
		t.Errorf("controls = %+v", controls)
	}
	if out == "" {
		t.Error("expected output for the model")
	}

	if _, err := reg.Execute(context.Background(), "nope", `{}`, tc); err == nil {
		t.Error("expected error for unknown tool")
	}
	if _, err := reg.Execute(context.Background(), "end_call", `{broken`, tc); err == nil {
		t.Error("expected error for bad arguments")
	}
}

func TestRegistryDefinitionsOrdered(t *testing.T) {
	reg := NewRegistry(NewSendSMS(), NewEndCall(), NewSetNoiseReduction())
	defs := reg.Definitions()
	if len(defs) != 3 {
		t.Fatalf("definitions = %d", len(defs))
	}
	var names []string
	for _, d := range defs {
		names = append(names, d.(map[string]interface{})["name"].(string))
	}
	want := []string{"end_call", "send_sms", "set_noise_reduction"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names = %v, want %v", names, want)
		}
	}
}

func TestSetNoiseReduction(t *testing.T) {
	controls := &fakeControls{}
	tool := NewSetNoiseReduction()
	tc := &Context{Controls: controls}

	if _, err := tool.Execute(context.Background(), map[string]interface{}{"mode": "far_field"}, tc); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if controls.noiseMode != "far_field" {
		t.Errorf("mode = %q", controls.noiseMode)
	}

	if _, err := tool.Execute(context.Background(), map[string]interface{}{"mode": "loud"}, tc); err == nil {
		t.Error("expected error for invalid mode")
	}
}

func TestSetNoiseReductionAlreadyActive(t *testing.T) {
	controls := &fakeControls{}
	tool := NewSetNoiseReduction()
	tc := &Context{Controls: controls, NoiseMode: "far_field", NoiseToggles: 2}

	out, err := tool.Execute(context.Background(), map[string]interface{}{"mode": "far_field"}, tc)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "already") {
		t.Errorf("out = %q", out)
	}
	if controls.noiseMode != "" {
		t.Error("mode reapplied despite being current")
	}
}

func TestTransferCall(t *testing.T) {
	controls := &fakeControls{}
	tool := NewTransferCall(map[string]string{"Front Desk": "+15550001111"})
	tc := &Context{Controls: controls}

	out, err := tool.Execute(context.Background(), map[string]interface{}{"destination": "front desk"}, tc)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if controls.transferTo != "+15550001111" || controls.transferLbl != "front desk" {
		t.Errorf("transfer = %q/%q", controls.transferTo, controls.transferLbl)
	}
	if !strings.Contains(out, "front desk") {
		t.Errorf("out = %q", out)
	}

	// Dictated numbers bypass the directory.
	if _, err := tool.Execute(context.Background(), map[string]interface{}{"destination": "555-867-5309"}, tc); err != nil {
		t.Fatalf("Execute dictated: %v", err)
	}
	if controls.transferTo != "+15558675309" {
		t.Errorf("dictated transfer = %q", controls.transferTo)
	}

	if _, err := tool.Execute(context.Background(), map[string]interface{}{"destination": "the moon base"}, tc); err == nil {
		t.Error("expected error for unknown destination")
	}
}

func TestSendSMS(t *testing.T) {
	m := &fakeMessenger{}
	tool := NewSendSMS()
	tc := &Context{Messenger: m, FromNumber: "+15550009999"}

	out, err := tool.Execute(context.Background(), map[string]interface{}{
		"to": "(555) 867-5309", "body": "running late",
	}, tc)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if m.from != "+15550009999" || m.to != "+15558675309" || m.body != "running late" {
		t.Errorf("message = %+v", m)
	}
	if !strings.Contains(out, "+15558675309") {
		t.Errorf("out = %q", out)
	}

	if _, err := tool.Execute(context.Background(), map[string]interface{}{"to": "12", "body": "x"}, tc); err == nil {
		t.Error("expected error for invalid number")
	}
}

func TestTrackLocation(t *testing.T) {
	m := &fakeMessenger{}
	tool := NewTrackLocation("https://voice.example.com")
	tc := &Context{
		Messenger:    m,
		FromNumber:   "+15550009999",
		CallerName:   "Alice",
		CallerNumber: "+15550000001",
	}

	out, err := tool.Execute(context.Background(), map[string]interface{}{
		"to": "+15558675309", "name": "Bob",
	}, tc)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if m.to != "+15558675309" || !strings.Contains(m.body, "Alice") {
		t.Errorf("message = %+v", m)
	}
	if !strings.Contains(out, "Bob") {
		t.Errorf("out = %q", out)
	}
}
