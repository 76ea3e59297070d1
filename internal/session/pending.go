package session

import (
	"time"

	"go.uber.org/zap"

	"github.com/troikatech/voice-gateway/pkg/metrics"
	"github.com/troikatech/voice-gateway/pkg/twilioctl"
	"github.com/troikatech/voice-gateway/pkg/utils"
)

// armDisconnect starts the hangup gate: the call only closes once the
// goodbye has been generated, streamed and fully played out, or once
// the forced timeout fires.
func (c *Controller) armDisconnect(reason string) {
	if c.pendingDisconnect {
		return
	}
	c.pendingDisconnect = true
	c.disconnectResponseReceived = false
	c.disconnectAudioStarted = false

	c.log.Info("hangup pending",
		zap.String("call_sid", c.callSID),
		zap.String("reason", reason))

	c.disconnectTimer = time.AfterFunc(c.cfg.DisconnectTimeout, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.log.Warn("hangup forced by timeout", zap.String("call_sid", c.callSID))
		c.tryFinalizeDisconnect(true)
	})
}

// tryFinalizeDisconnect closes the call if the goodbye has really been
// heard: a non-function response completed, its audio started, and the
// mark queue drained. force bypasses the gate.
func (c *Controller) tryFinalizeDisconnect(force bool) {
	if !c.pendingDisconnect || c.closed {
		return
	}
	if !force {
		if !c.disconnectResponseReceived || !c.disconnectAudioStarted || len(c.markQueue) > 0 {
			return
		}
	}

	c.pendingDisconnect = false
	if c.disconnectTimer != nil {
		c.disconnectTimer.Stop()
		c.disconnectTimer = nil
	}

	metrics.Hangup()
	c.log.Info("hangup complete",
		zap.String("call_sid", c.callSID),
		zap.Bool("forced", force))
	c.finishSession()
}

// armTransfer starts the transfer gate for the given destination. The
// line only moves after the spoken announcement has been audible for a
// moment and playback has drained, or after the forced timeout.
func (c *Controller) armTransfer(destination, label string) {
	if c.transfer != nil {
		c.log.Warn("transfer already pending", zap.String("call_sid", c.callSID))
		return
	}

	t := &transferState{
		callSID:     c.callSID,
		destination: destination,
		label:       label,
	}
	t.timer = time.AfterFunc(c.cfg.TransferTimeout, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.log.Warn("transfer forced by timeout", zap.String("call_sid", c.callSID))
		c.tryFinalizeTransfer(true)
	})
	c.transfer = t

	c.log.Info("transfer pending",
		zap.String("call_sid", c.callSID),
		zap.String("destination", utils.MaskPhoneNumber(destination)),
		zap.String("label", label))
}

// tryFinalizeTransfer moves the call once the announcement gate holds:
// announcement response done, its audio started at least the audible
// window ago, and the mark queue empty. force bypasses the gate.
func (c *Controller) tryFinalizeTransfer(force bool) {
	t := c.transfer
	if t == nil || t.inFlight || c.closed {
		return
	}
	if !force {
		if !t.responseReceived || !t.audioStarted || len(c.markQueue) > 0 {
			return
		}
		if time.Since(t.audioStartedAt) < c.cfg.TransferAudibleWindow {
			return
		}
	}

	t.inFlight = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}

	callSID := t.callSID
	twiml := twilioctl.DialTwiml(t.destination, c.cfg.FromNumber)

	// REST call runs off the lock; completion re-checks session state.
	go func() {
		err := c.control.UpdateCall(callSID, twiml)

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.transfer == nil || c.transfer != t {
			return
		}
		if err != nil {
			c.log.Error("transfer update failed",
				zap.String("call_sid", callSID), zap.Error(err))
			c.transfer = nil
			if c.modelOpen && !c.silentMode {
				_ = c.model.CreateSystemMessage(
					"The transfer could not be completed. Apologize briefly and ask if there is anything else you can help with.")
				c.requestNow("transfer-failed")
			}
			return
		}

		metrics.Transfer()
		c.log.Info("transfer complete",
			zap.String("call_sid", callSID),
			zap.String("label", t.label))
		c.transfer = nil
		c.finishSession()
	}()
}
