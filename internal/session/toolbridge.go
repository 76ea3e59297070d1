package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/troikatech/voice-gateway/internal/realtime"
	"github.com/troikatech/voice-gateway/internal/tools"
	"github.com/troikatech/voice-gateway/pkg/retry"
	"github.com/troikatech/voice-gateway/pkg/utils"
)

// dispatchTools runs the function calls a finished response asked for.
// Called with the lock held; execution itself happens off the lock and
// re-checks session state when it completes.
func (c *Controller) dispatchTools(calls []realtime.FunctionCall) {
	runnable := make([]realtime.FunctionCall, 0, len(calls))
	for _, fc := range calls {
		if fc.CallID == "" {
			// Without a call id the result cannot be correlated and a
			// retry could double-deliver the side effect.
			c.log.Warn("skipping function call without id",
				zap.String("call_sid", c.callSID),
				zap.String("tool", fc.Name))
			continue
		}
		runnable = append(runnable, fc)
	}
	if len(runnable) == 0 {
		return
	}

	// One response can carry several calls; the counter only reaches
	// zero when every one of them has delivered its result.
	c.toolsInFlight += len(runnable)
	c.scheduleMusic("tool-call")
	for _, fc := range runnable {
		c.noteToolIntent(fc)
	}

	tc := &tools.Context{
		CallSID:      c.callSID,
		CallerNumber: c.callerNumber,
		CallerName:   c.callerName,
		CalleeNumber: c.calleeNumber,
		Controls:     c,
		Messenger:    c.control,
		FromNumber:   c.cfg.FromNumber,
		NoiseMode:    c.noiseMode,
		NoiseToggles: c.noiseToggles,
	}

	go func() {
		for _, fc := range runnable {
			out, err := c.registry.Execute(context.Background(), fc.Name, fc.Arguments, tc)
			c.completeTool(fc, out, err)
		}
		c.afterTools()
	}()
}

// noteToolIntent remembers the facts the post-hangup summary needs.
func (c *Controller) noteToolIntent(fc realtime.FunctionCall) {
	args, err := tools.ParseArguments(fc.Arguments)
	if err != nil {
		return
	}
	switch fc.Name {
	case "web_search":
		if q, ok := args["query"].(string); ok {
			c.lastSearchQuery = q
		}
	case "send_email":
		if s, ok := args["subject"].(string); ok {
			c.lastEmailSubject = s
		}
	}
}

// completeTool delivers one tool result back to the model and decides
// whether a follow-up response may be requested.
func (c *Controller) completeTool(fc realtime.FunctionCall, out string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.toolsInFlight > 0 {
		c.toolsInFlight--
	}

	var payload []byte
	if err != nil {
		c.log.Warn("tool failed",
			zap.String("call_sid", c.callSID),
			zap.String("tool", fc.Name),
			zap.Error(err))
		payload, _ = json.Marshal(map[string]interface{}{
			"ok":    false,
			"error": err.Error(),
		})
	} else {
		payload, _ = json.Marshal(map[string]interface{}{
			"ok":     true,
			"result": out,
		})
	}

	if c.modelOpen {
		if werr := c.model.CreateFunctionOutput(fc.CallID, string(payload)); werr != nil {
			c.log.Warn("function output failed", zap.Error(werr))
		}
	}

	// Once hangup has begun, only end_call itself may trigger another
	// generation: that response is the goodbye.
	if c.pendingDisconnect && fc.Name != "end_call" {
		return
	}
	if c.silentMode {
		return
	}

	switch {
	case fc.Name == "end_call":
		c.requestNow("goodbye")
	case fc.Name == "transfer_call" && err == nil:
		if c.transfer != nil && c.modelOpen {
			_ = c.model.CreateSystemMessage(fmt.Sprintf(
				"Tell the caller you are transferring them to %s now, in one short sentence.",
				c.transfer.label))
		}
		c.requestNow("transfer-announcement")
	default:
		c.deferredRequest("tool:" + fc.Name)
	}
}

// afterTools handles the caller having hung up mid-tool: the result
// was still delivered, one summary text goes to the owner, and the
// model connection finally closes.
func (c *Controller) afterTools() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.silentMode || c.toolsRunning() {
		return
	}
	if c.hangupDuringTools {
		c.sendSummarySMS()
	}
	c.finishSession()
}

// sendSummarySMS flips summarySent at most once per session.
func (c *Controller) sendSummarySMS() {
	if c.summarySent || c.cfg.OwnerNumber == "" || c.cfg.FromNumber == "" {
		return
	}
	c.summarySent = true

	who := c.callerName
	if who == "" {
		who = utils.MaskPhoneNumber(c.callerNumber)
	}
	body := fmt.Sprintf("Call with %s ended while work was still running; it has completed.", who)
	if c.lastSearchQuery != "" {
		body += fmt.Sprintf(" Last search: %q.", c.lastSearchQuery)
	}
	if c.lastEmailSubject != "" {
		body += fmt.Sprintf(" Email sent: %q.", c.lastEmailSubject)
	}

	from, to := c.cfg.FromNumber, c.cfg.OwnerNumber
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		err := retry.Do(ctx, retry.DefaultConfig(), func() error {
			return c.control.SendMessage(from, to, body)
		})
		if err != nil {
			c.log.Warn("summary sms failed", zap.Error(err))
		}
	}()
}

// toolsRunning reports whether any dispatched tool has yet to deliver
// its result.
func (c *Controller) toolsRunning() bool { return c.toolsInFlight > 0 }

// The controller is the capability surface tools act through.
var _ tools.SessionControls = (*Controller)(nil)

// ApplyNoiseReduction switches the model's input noise filtering.
func (c *Controller) ApplyNoiseReduction(mode string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.noiseMode = mode
	c.noiseToggles++
	c.lastNoiseToggle = time.Now()

	if !c.modelOpen {
		return fmt.Errorf("model connection closed")
	}
	var value interface{}
	if mode != "off" {
		value = map[string]string{"type": mode}
	}
	return c.model.UpdateSession(map[string]interface{}{
		"input_audio_noise_reduction": value,
	})
}

// EndCall arms the hangup gate on behalf of the end_call tool.
func (c *Controller) EndCall(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if reason == "" {
		reason = "caller finished"
	}
	c.armDisconnect(reason)
}

// TransferCall arms the transfer gate on behalf of the transfer_call
// tool.
func (c *Controller) TransferCall(destination, label string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transfer != nil {
		return fmt.Errorf("a transfer is already in progress")
	}
	if c.callSID == "" {
		return fmt.Errorf("no active call to transfer")
	}
	c.armTransfer(destination, label)
	return nil
}
