package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/troikatech/voice-gateway/pkg/utils"
)

// SetNoiseReduction switches the session's input noise filtering.
type SetNoiseReduction struct{}

func NewSetNoiseReduction() *SetNoiseReduction { return &SetNoiseReduction{} }

func (t *SetNoiseReduction) Name() string { return "set_noise_reduction" }

func (t *SetNoiseReduction) Definition() map[string]interface{} {
	return funcDef("set_noise_reduction",
		"Adjust background noise filtering when the caller is hard to hear or in a noisy place.",
		map[string]interface{}{
			"mode": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"near_field", "far_field", "off"},
				"description": "near_field for handset use, far_field for speakerphone or noisy rooms, off to disable.",
			},
		},
		"mode")
}

func (t *SetNoiseReduction) Execute(_ context.Context, args map[string]interface{}, tc *Context) (string, error) {
	mode := argString(args, "mode")
	switch mode {
	case "near_field", "far_field", "off":
	default:
		return "", fmt.Errorf("invalid mode %q", mode)
	}
	if tc == nil || tc.Controls == nil {
		return "", fmt.Errorf("no active session")
	}
	if mode == tc.NoiseMode {
		return fmt.Sprintf("Noise reduction is already set to %s.", mode), nil
	}
	if err := tc.Controls.ApplyNoiseReduction(mode); err != nil {
		return "", err
	}
	return fmt.Sprintf("Noise reduction set to %s.", mode), nil
}

// EndCall lets the model hang up once the caller is done.
type EndCall struct{}

func NewEndCall() *EndCall { return &EndCall{} }

func (t *EndCall) Name() string { return "end_call" }

func (t *EndCall) Definition() map[string]interface{} {
	return funcDef("end_call",
		"End the phone call. Use when the caller says goodbye or asks to hang up.",
		map[string]interface{}{
			"reason": strProp("Short reason for ending the call."),
		})
}

func (t *EndCall) Execute(_ context.Context, args map[string]interface{}, tc *Context) (string, error) {
	if tc == nil || tc.Controls == nil {
		return "", fmt.Errorf("no active session")
	}
	tc.Controls.EndCall(argString(args, "reason"))
	return "The call will end after your goodbye message.", nil
}

// TransferCall moves the caller to a person or department from the
// configured directory, or to a number they dictate.
type TransferCall struct {
	directory map[string]string
}

func NewTransferCall(directory map[string]string) *TransferCall {
	normalized := make(map[string]string, len(directory))
	for label, number := range directory {
		normalized[strings.ToLower(strings.TrimSpace(label))] = number
	}
	return &TransferCall{directory: normalized}
}

func (t *TransferCall) Name() string { return "transfer_call" }

func (t *TransferCall) Definition() map[string]interface{} {
	labels := make([]string, 0, len(t.directory))
	for label := range t.directory {
		labels = append(labels, label)
	}
	desc := "Transfer the call to another person or department."
	if len(labels) > 0 {
		desc = fmt.Sprintf("%s Known destinations: %s.", desc, strings.Join(labels, ", "))
	}
	return funcDef("transfer_call", desc,
		map[string]interface{}{
			"destination": strProp("A known destination name, or a full phone number."),
		},
		"destination")
}

func (t *TransferCall) Execute(_ context.Context, args map[string]interface{}, tc *Context) (string, error) {
	destination := strings.TrimSpace(argString(args, "destination"))
	if destination == "" {
		return "", fmt.Errorf("destination is required")
	}
	if tc == nil || tc.Controls == nil {
		return "", fmt.Errorf("no active session")
	}

	label := destination
	number, ok := t.directory[strings.ToLower(destination)]
	if !ok {
		number = utils.NormalizePhone(destination)
		if !utils.ValidateE164(number) {
			return "", fmt.Errorf("unknown destination %q", destination)
		}
		label = number
	}

	if err := tc.Controls.TransferCall(number, label); err != nil {
		return "", err
	}
	return fmt.Sprintf("Transferring you to %s now.", label), nil
}
