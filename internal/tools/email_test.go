package tools

import (
	"context"
	"testing"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type fakeEmailSender struct {
	msg    *mail.SGMailV3
	status int
	err    error
}

func (f *fakeEmailSender) Send(email *mail.SGMailV3) (*rest.Response, error) {
	f.msg = email
	status := f.status
	if status == 0 {
		status = 202
	}
	return &rest.Response{StatusCode: status}, f.err
}

func TestSendEmail(t *testing.T) {
	fake := &fakeEmailSender{}
	tool := &SendEmail{sender: fake, from: "assistant@example.com"}
	tc := &Context{CallerName: "Alice"}

	out, err := tool.Execute(context.Background(), map[string]interface{}{
		"to": "bob@example.com", "subject": "Dinner", "body": "7pm works",
	}, tc)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out == "" {
		t.Error("expected confirmation output")
	}
	if fake.msg == nil || fake.msg.Subject != "Dinner" {
		t.Fatalf("msg = %+v", fake.msg)
	}
	if fake.msg.From.Address != "assistant@example.com" || fake.msg.From.Name != "Alice via Voice Assistant" {
		t.Errorf("from = %+v", fake.msg.From)
	}

	if _, err := tool.Execute(context.Background(), map[string]interface{}{"to": "bob@example.com"}, tc); err == nil {
		t.Error("expected error for missing fields")
	}

	fake.status = 401
	if _, err := tool.Execute(context.Background(), map[string]interface{}{
		"to": "bob@example.com", "subject": "x", "body": "y",
	}, tc); err == nil {
		t.Error("expected error for rejected send")
	}
}

func TestSendEmailUnconfigured(t *testing.T) {
	tool := NewSendEmail("", "assistant@example.com")
	if _, err := tool.Execute(context.Background(), map[string]interface{}{
		"to": "bob@example.com", "subject": "x", "body": "y",
	}, &Context{}); err == nil {
		t.Error("expected error when sendgrid is not configured")
	}
}
