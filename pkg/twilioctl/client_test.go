package twilioctl

import (
	"errors"
	"strings"
	"testing"

	api "github.com/twilio/twilio-go/rest/api/v2010"
)

type fakeCallUpdater struct {
	sid    string
	params *api.UpdateCallParams
	err    error
}

func (f *fakeCallUpdater) UpdateCall(sid string, params *api.UpdateCallParams) (*api.ApiV2010Call, error) {
	f.sid = sid
	f.params = params
	return &api.ApiV2010Call{}, f.err
}

type fakeMessageCreator struct {
	params *api.CreateMessageParams
	err    error
}

func (f *fakeMessageCreator) CreateMessage(params *api.CreateMessageParams) (*api.ApiV2010Message, error) {
	f.params = params
	return &api.ApiV2010Message{}, f.err
}

func TestUpdateCall(t *testing.T) {
	fake := &fakeCallUpdater{}
	c := &Client{calls: fake}

	if err := c.UpdateCall("CA123", "<Response/>"); err != nil {
		t.Fatalf("UpdateCall: %v", err)
	}
	if fake.sid != "CA123" {
		t.Errorf("sid = %q, want CA123", fake.sid)
	}
	if fake.params == nil || fake.params.Twiml == nil || *fake.params.Twiml != "<Response/>" {
		t.Errorf("twiml not set on params")
	}
}

func TestUpdateCallMissingSID(t *testing.T) {
	c := &Client{calls: &fakeCallUpdater{}}
	if err := c.UpdateCall("", "<Response/>"); err == nil {
		t.Fatal("expected error for empty call sid")
	}
}

func TestUpdateCallNoCredentials(t *testing.T) {
	c := NewClient("", "")
	if err := c.UpdateCall("CA123", "<Response/>"); err == nil {
		t.Fatal("expected error without credentials")
	}
}

func TestUpdateCallAPIError(t *testing.T) {
	fake := &fakeCallUpdater{err: errors.New("boom")}
	c := &Client{calls: fake}
	if err := c.UpdateCall("CA123", "<Response/>"); err == nil {
		t.Fatal("expected wrapped api error")
	}
}

type fakeCallCreator struct {
	params *api.CreateCallParams
	err    error
}

func (f *fakeCallCreator) CreateCall(params *api.CreateCallParams) (*api.ApiV2010Call, error) {
	f.params = params
	sid := "CA999"
	return &api.ApiV2010Call{Sid: &sid}, f.err
}

func TestStartCall(t *testing.T) {
	fake := &fakeCallCreator{}
	c := &Client{dialer: fake}

	sid, err := c.StartCall("+15550000001", "+15550000002", "<Response/>")
	if err != nil {
		t.Fatalf("StartCall: %v", err)
	}
	if sid != "CA999" {
		t.Errorf("sid = %q", sid)
	}
	if fake.params == nil || *fake.params.From != "+15550000001" || *fake.params.To != "+15550000002" {
		t.Errorf("params = %+v", fake.params)
	}
	if fake.params.Twiml == nil || *fake.params.Twiml != "<Response/>" {
		t.Errorf("twiml not set")
	}

	if _, err := c.StartCall("", "+15550000002", "x"); err == nil {
		t.Error("expected error for empty from")
	}
}

func TestSendMessage(t *testing.T) {
	fake := &fakeMessageCreator{}
	c := &Client{messages: fake}

	if err := c.SendMessage("+15550000001", "+15550000002", "hello"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if fake.params == nil {
		t.Fatal("params not captured")
	}
	if *fake.params.From != "+15550000001" || *fake.params.To != "+15550000002" || *fake.params.Body != "hello" {
		t.Errorf("params = %v/%v/%v", *fake.params.From, *fake.params.To, *fake.params.Body)
	}
}

func TestSendMessageMissingAddress(t *testing.T) {
	c := &Client{messages: &fakeMessageCreator{}}
	if err := c.SendMessage("", "+15550000002", "hi"); err == nil {
		t.Fatal("expected error for empty from")
	}
}

func TestDialTwiml(t *testing.T) {
	got := DialTwiml("+15550000009", "+15550000001")
	if !strings.Contains(got, `callerId="+15550000001"`) {
		t.Errorf("missing callerId: %s", got)
	}
	if !strings.Contains(got, ">+15550000009<") {
		t.Errorf("missing destination: %s", got)
	}

	plain := DialTwiml("+15550000009", "")
	if strings.Contains(plain, "callerId") {
		t.Errorf("unexpected callerId: %s", plain)
	}
}

func TestXMLEscape(t *testing.T) {
	if got := XMLEscape(`a<b>&"c"`); got != `a&lt;b&gt;&amp;&quot;c&quot;` {
		t.Errorf("XMLEscape = %q", got)
	}
}
