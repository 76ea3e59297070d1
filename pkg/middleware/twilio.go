package middleware

import (
	"github.com/gin-gonic/gin"
	twilioclient "github.com/twilio/twilio-go/client"
	"go.uber.org/zap"

	"github.com/troikatech/voice-gateway/pkg/errors"
	"github.com/troikatech/voice-gateway/pkg/logger"
)

// TwilioSignature validates the X-Twilio-Signature header on webhook
// requests. With an empty auth token validation is skipped (development).
func TwilioSignature(authToken, publicBaseURL string) gin.HandlerFunc {
	validator := twilioclient.NewRequestValidator(authToken)

	return func(c *gin.Context) {
		if authToken == "" {
			c.Next()
			return
		}

		signature := c.GetHeader("X-Twilio-Signature")
		if signature == "" {
			errors.Unauthorized(c, "missing webhook signature")
			c.Abort()
			return
		}

		if err := c.Request.ParseForm(); err != nil {
			errors.BadRequest(c, "malformed form body")
			c.Abort()
			return
		}
		params := make(map[string]string, len(c.Request.PostForm))
		for k, v := range c.Request.PostForm {
			if len(v) > 0 {
				params[k] = v[0]
			}
		}

		// Twilio signs the URL it was configured with, which is the public
		// one, not what the reverse proxy forwarded.
		url := publicBaseURL + c.Request.URL.RequestURI()
		if !validator.Validate(url, params, signature) {
			logger.Log.Warn("Rejected webhook with invalid Twilio signature",
				zap.String("path", c.Request.URL.Path),
				zap.String("remote_addr", c.ClientIP()),
			)
			errors.Unauthorized(c, "invalid webhook signature")
			c.Abort()
			return
		}

		c.Next()
	}
}
