package tools

import (
	"context"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type emailSender interface {
	Send(email *mail.SGMailV3) (*rest.Response, error)
}

// SendEmail delivers an email on the caller's behalf via SendGrid.
type SendEmail struct {
	sender emailSender
	from   string
}

func NewSendEmail(apiKey, from string) *SendEmail {
	t := &SendEmail{from: from}
	if apiKey != "" {
		t.sender = sendgrid.NewSendClient(apiKey)
	}
	return t
}

func (t *SendEmail) Name() string { return "send_email" }

func (t *SendEmail) Definition() map[string]interface{} {
	return funcDef("send_email",
		"Send an email to a given address.",
		map[string]interface{}{
			"to":      strProp("Recipient email address."),
			"subject": strProp("Email subject line."),
			"body":    strProp("Email body text."),
		},
		"to", "subject", "body")
}

func (t *SendEmail) Execute(_ context.Context, args map[string]interface{}, tc *Context) (string, error) {
	to := argString(args, "to")
	subject := argString(args, "subject")
	body := argString(args, "body")
	if to == "" || subject == "" || body == "" {
		return "", fmt.Errorf("to, subject and body are required")
	}
	if t.sender == nil {
		return "", fmt.Errorf("email is not configured")
	}

	fromName := "Voice Assistant"
	if tc != nil && tc.CallerName != "" {
		fromName = tc.CallerName + " via Voice Assistant"
	}
	msg := mail.NewSingleEmail(
		mail.NewEmail(fromName, t.from),
		subject,
		mail.NewEmail("", to),
		body,
		"")

	resp, err := t.sender.Send(msg)
	if err != nil {
		return "", fmt.Errorf("send email: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("send email: status %d", resp.StatusCode)
	}
	return fmt.Sprintf("Email sent to %s.", to), nil
}
