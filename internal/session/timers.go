package session

import (
	"time"

	"go.uber.org/zap"
)

// armSessionTimers starts the call-duration warning and forced wrap-up
// clocks. Both are cancelled by cancelTimers on teardown.
func (c *Controller) armSessionTimers() {
	c.warnTimer = time.AfterFunc(c.cfg.WarningAfter, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.durationWarning()
	})
	c.hangupTimer = time.AfterFunc(c.cfg.HangupAfter, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.durationHangup()
	})
}

func (c *Controller) durationWarning() {
	if c.warned || c.pendingDisconnect || c.silentMode || !c.modelOpen {
		return
	}
	c.warned = true
	c.log.Info("call duration warning", zap.String("call_sid", c.callSID))

	if err := c.model.CreateSystemMessage(
		"The call has been running a long time. Let the caller know the call will need to wrap up in about five minutes."); err != nil {
		c.log.Warn("warning item failed", zap.Error(err))
		return
	}
	c.requestNow("duration-warning")
}

func (c *Controller) durationHangup() {
	if c.pendingDisconnect || c.silentMode || c.closed {
		return
	}
	c.log.Info("call duration limit reached", zap.String("call_sid", c.callSID))

	if c.modelOpen {
		_ = c.model.CreateSystemMessage(
			"The call has reached its time limit. Say a brief, warm goodbye now.")
		c.requestNow("duration-limit")
	}

	// Give the model a moment to start the goodbye, then gate the
	// hangup exactly as end_call would.
	c.graceTimer = time.AfterFunc(c.cfg.HangupGrace, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.graceTimer = nil
		c.armDisconnect("duration-limit")
	})
}
