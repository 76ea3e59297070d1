// make-call places an outbound call that connects the callee straight
// to the voice assistant's media stream. Useful for testing without a
// real inbound call.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/troikatech/voice-gateway/pkg/env"
	"github.com/troikatech/voice-gateway/pkg/retry"
	"github.com/troikatech/voice-gateway/pkg/twilioctl"
	"github.com/troikatech/voice-gateway/pkg/utils"
)

func main() {
	to := flag.String("to", "", "destination number (E.164 or NANP)")
	flag.Parse()

	if *to == "" {
		log.Fatal("usage: make-call -to +15551234567")
	}

	cfg, err := env.Load(".env")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" || cfg.TwilioPhoneNumber == "" {
		log.Fatal("TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_PHONE_NUMBER must be set")
	}
	if cfg.PublicBaseURL == "" {
		log.Fatal("PUBLIC_BASE_URL must be set")
	}

	number := utils.NormalizePhone(*to)
	if !utils.ValidateE164(number) {
		log.Fatalf("invalid destination number %q", *to)
	}

	streamURL := strings.Replace(cfg.PublicBaseURL, "https://", "wss://", 1)
	streamURL = strings.Replace(streamURL, "http://", "ws://", 1)
	streamURL = strings.TrimSuffix(streamURL, "/") + "/media-stream"

	twiml := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Response>
  <Connect>
    <Stream url="%s">
      <Parameter name="from" value="%s"/>
      <Parameter name="to" value="%s"/>
    </Stream>
  </Connect>
</Response>`, streamURL, twilioctl.XMLEscape(number), twilioctl.XMLEscape(cfg.TwilioPhoneNumber))

	client := twilioctl.NewClient(cfg.TwilioAccountSID, cfg.TwilioAuthToken)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	var sid string
	err = retry.Do(ctx, retry.DefaultConfig(), func() error {
		var callErr error
		sid, callErr = client.StartCall(cfg.TwilioPhoneNumber, number, twiml)
		return callErr
	})
	if err != nil {
		log.Fatalf("start call: %v", err)
	}

	fmt.Printf("call started: %s -> %s (%s)\n",
		cfg.TwilioPhoneNumber, utils.MaskPhoneNumber(number), sid)
}
