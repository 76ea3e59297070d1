package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/troikatech/voice-gateway/pkg/twilioctl"
	"github.com/troikatech/voice-gateway/pkg/utils"
)

// TwilioVoice answers the incoming-call webhook with TwiML that opens
// the bidirectional media stream back to this service. The caller and
// callee numbers ride along as stream parameters so the session knows
// who is on the line.
func (h *Handler) TwilioVoice(c *gin.Context) {
	from := c.PostForm("From")
	to := c.PostForm("To")
	callSID := c.PostForm("CallSid")

	h.logger.Info("incoming call",
		zap.String("call_sid", callSID),
		zap.String("from", utils.MaskPhoneNumber(from)),
		zap.String("to", utils.MaskPhoneNumber(to)))

	twiml := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Response>
  <Connect>
    <Stream url="%s">
      <Parameter name="from" value="%s"/>
      <Parameter name="to" value="%s"/>
    </Stream>
  </Connect>
</Response>`, h.streamURL(), twilioctl.XMLEscape(from), twilioctl.XMLEscape(to))

	c.Data(http.StatusOK, "text/xml", []byte(twiml))
}

// streamURL derives the websocket endpoint from the public base URL.
func (h *Handler) streamURL() string {
	base := h.cfg.PublicBaseURL
	base = strings.Replace(base, "https://", "wss://", 1)
	base = strings.Replace(base, "http://", "ws://", 1)
	return strings.TrimSuffix(base, "/") + "/media-stream"
}

// TwilioSMS acknowledges inbound texts. Replies from the owner are
// logged so location-request responses are visible; there is no
// conversational SMS flow.
func (h *Handler) TwilioSMS(c *gin.Context) {
	from := c.PostForm("From")
	body := c.PostForm("Body")

	h.logger.Info("incoming sms",
		zap.String("from", utils.MaskPhoneNumber(from)),
		zap.Int("length", len(body)))

	c.Data(http.StatusOK, "text/xml", []byte(`<?xml version="1.0" encoding="UTF-8"?><Response></Response>`))
}
