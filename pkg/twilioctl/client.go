package twilioctl

import (
	"errors"
	"fmt"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

type callUpdater interface {
	UpdateCall(sid string, params *api.UpdateCallParams) (*api.ApiV2010Call, error)
}

type callCreator interface {
	CreateCall(params *api.CreateCallParams) (*api.ApiV2010Call, error)
}

type messageCreator interface {
	CreateMessage(params *api.CreateMessageParams) (*api.ApiV2010Message, error)
}

// Client drives live calls and outbound messages through the Twilio REST API.
type Client struct {
	accountSID string
	authToken  string
	calls      callUpdater
	dialer     callCreator
	messages   messageCreator
}

func NewClient(accountSID, authToken string) *Client {
	c := &Client{accountSID: accountSID, authToken: authToken}
	if accountSID != "" && authToken != "" {
		rest := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSID,
			Password: authToken,
		})
		c.calls = rest.Api
		c.dialer = rest.Api
		c.messages = rest.Api
	}
	return c
}

// UpdateCall redirects a live call to new TwiML (used for transfers).
func (c *Client) UpdateCall(callSID, twiml string) error {
	if callSID == "" {
		return errors.New("call sid required")
	}
	if c.calls == nil {
		return errors.New("missing twilio credentials")
	}

	params := &api.UpdateCallParams{}
	params.SetTwiml(twiml)

	if _, err := c.calls.UpdateCall(callSID, params); err != nil {
		return fmt.Errorf("update call %s: %w", callSID, err)
	}
	return nil
}

// StartCall places an outbound call that runs the given TwiML when
// answered. Returns the new call SID.
func (c *Client) StartCall(from, to, twiml string) (string, error) {
	if from == "" || to == "" {
		return "", errors.New("from/to required")
	}
	if c.dialer == nil {
		return "", errors.New("missing twilio credentials")
	}

	params := &api.CreateCallParams{}
	params.SetFrom(from)
	params.SetTo(to)
	params.SetTwiml(twiml)

	call, err := c.dialer.CreateCall(params)
	if err != nil {
		return "", fmt.Errorf("create call to %s: %w", to, err)
	}
	if call.Sid == nil {
		return "", errors.New("create call: no sid in response")
	}
	return *call.Sid, nil
}

// SendMessage sends an SMS.
func (c *Client) SendMessage(from, to, body string) error {
	if from == "" || to == "" {
		return errors.New("from/to required")
	}
	if c.messages == nil {
		return errors.New("missing twilio credentials")
	}

	params := &api.CreateMessageParams{}
	params.SetFrom(from)
	params.SetTo(to)
	params.SetBody(body)

	if _, err := c.messages.CreateMessage(params); err != nil {
		return fmt.Errorf("send message to %s: %w", to, err)
	}
	return nil
}

// DialTwiml builds the TwiML that moves a call to a new destination.
func DialTwiml(destination, callerID string) string {
	if callerID != "" {
		return `<Response><Dial callerId="` + XMLEscape(callerID) + `">` + XMLEscape(destination) + `</Dial></Response>`
	}
	return `<Response><Dial>` + XMLEscape(destination) + `</Dial></Response>`
}

// XMLEscape escapes a value for use in TwiML text or attributes.
func XMLEscape(in string) string {
	out := make([]byte, 0, len(in))
	for i := 0; i < len(in); i++ {
		switch in[i] {
		case '&':
			out = append(out, "&amp;"...)
		case '<':
			out = append(out, "&lt;"...)
		case '>':
			out = append(out, "&gt;"...)
		case '"':
			out = append(out, "&quot;"...)
		default:
			out = append(out, in[i])
		}
	}
	return string(out)
}
