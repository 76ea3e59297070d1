package tools

import (
	"context"
	"fmt"

	"github.com/troikatech/voice-gateway/pkg/utils"
)

// SendSMS texts a phone number on the caller's behalf.
type SendSMS struct{}

func NewSendSMS() *SendSMS { return &SendSMS{} }

func (t *SendSMS) Name() string { return "send_sms" }

func (t *SendSMS) Definition() map[string]interface{} {
	return funcDef("send_sms",
		"Send a text message to a phone number.",
		map[string]interface{}{
			"to":   strProp("Recipient phone number."),
			"body": strProp("Message text."),
		},
		"to", "body")
}

func (t *SendSMS) Execute(_ context.Context, args map[string]interface{}, tc *Context) (string, error) {
	to := utils.NormalizePhone(argString(args, "to"))
	body := argString(args, "body")
	if to == "" || body == "" {
		return "", fmt.Errorf("to and body are required")
	}
	if tc == nil || tc.Messenger == nil {
		return "", fmt.Errorf("messaging is not configured")
	}
	if !utils.ValidateE164(to) {
		return "", fmt.Errorf("invalid number %q", to)
	}

	if err := tc.Messenger.SendMessage(tc.FromNumber, to, body); err != nil {
		return "", err
	}
	return fmt.Sprintf("Text sent to %s.", to), nil
}

// TrackLocation sends a location-sharing request by SMS and reports
// that it went out, since live position is only available once the
// recipient responds.
type TrackLocation struct {
	publicBaseURL string
}

func NewTrackLocation(publicBaseURL string) *TrackLocation {
	return &TrackLocation{publicBaseURL: publicBaseURL}
}

func (t *TrackLocation) Name() string { return "track_location" }

func (t *TrackLocation) Definition() map[string]interface{} {
	return funcDef("track_location",
		"Ask a person to share their current location by text message.",
		map[string]interface{}{
			"to":   strProp("Phone number of the person to locate."),
			"name": strProp("Name of the person, if known."),
		},
		"to")
}

func (t *TrackLocation) Execute(_ context.Context, args map[string]interface{}, tc *Context) (string, error) {
	to := utils.NormalizePhone(argString(args, "to"))
	if to == "" {
		return "", fmt.Errorf("to is required")
	}
	if tc == nil || tc.Messenger == nil {
		return "", fmt.Errorf("messaging is not configured")
	}
	if !utils.ValidateE164(to) {
		return "", fmt.Errorf("invalid number %q", to)
	}

	who := tc.CallerName
	if who == "" {
		who = tc.CallerNumber
	}
	body := fmt.Sprintf("%s is asking for your current location. Reply with your location or share it here: %s/locate", who, t.publicBaseURL)
	if err := tc.Messenger.SendMessage(tc.FromNumber, to, body); err != nil {
		return "", err
	}

	name := argString(args, "name")
	if name == "" {
		name = to
	}
	return fmt.Sprintf("Location request sent to %s. They will reply by text.", name), nil
}
