package session

import (
	"go.uber.org/zap"

	"github.com/troikatech/voice-gateway/internal/realtime"
	"github.com/troikatech/voice-gateway/pkg/metrics"
)

// Response lifecycle: Idle, Pending (response.create sent) or Active
// (response.created seen), plus a FIFO of reasons waiting their turn.
// Every trigger goes through the queue so at most one generation is
// ever in flight.

// enqueue appends a reason unless it is already waiting.
func (c *Controller) enqueue(reason string) {
	for _, r := range c.responseQueue {
		if r == reason {
			return
		}
	}
	c.responseQueue = append(c.responseQueue, reason)
}

// requestNow queues a reason and drains immediately if allowed.
func (c *Controller) requestNow(reason string) {
	c.enqueue(reason)
	c.drain()
}

// deferredRequest queues a reason but leaves it parked while a
// response is in flight or the caller is talking. Tool follow-ups use
// this so they never collide with an ongoing turn.
func (c *Controller) deferredRequest(reason string) {
	c.enqueue(reason)
	if c.responseActive || c.responsePending || c.callerSpeaking {
		c.deferredToolResponse = true
		return
	}
	c.drain()
}

// drain issues exactly one generation request for the oldest queued
// reason, if the lifecycle is idle and the caller is quiet.
func (c *Controller) drain() {
	if c.responseActive || c.responsePending || c.callerSpeaking {
		return
	}
	if c.pendingDisconnect {
		// Hangup has begun; every queued reason except the goodbye
		// itself is stale and must not generate.
		kept := c.responseQueue[:0]
		for _, r := range c.responseQueue {
			if r == "goodbye" {
				kept = append(kept, r)
			}
		}
		c.responseQueue = kept
	}
	if len(c.responseQueue) == 0 || !c.modelOpen {
		return
	}

	reason := c.responseQueue[0]
	c.responseQueue = c.responseQueue[1:]
	c.responsePending = true

	if err := c.model.CreateResponse(); err != nil {
		c.responsePending = false
		c.log.Warn("response.create failed",
			zap.String("reason", reason), zap.Error(err))
		return
	}
	if reason == "transfer-announcement" && c.transfer != nil {
		// The response this request produces is the announcement; its
		// id binds the transfer gate on response.created.
		c.transfer.announcePending = true
	}
	metrics.ResponseRequested()
	c.log.Debug("response requested",
		zap.String("call_sid", c.callSID),
		zap.String("reason", reason))
}

func (c *Controller) onResponseCreated(responseID string) {
	c.responsePending = false
	c.responseActive = true

	if t := c.transfer; t != nil && t.announcePending {
		t.responseID = responseID
		t.announcePending = false
	}
}

func (c *Controller) onResponseDone(done realtime.ResponseDone) {
	c.responseActive = false
	c.responsePending = false

	if len(done.FunctionCalls) > 0 {
		c.dispatchTools(done.FunctionCalls)
	} else {
		if c.pendingDisconnect {
			c.disconnectResponseReceived = true
			c.tryFinalizeDisconnect(false)
		}
		if t := c.transfer; t != nil && t.responseID != "" && t.responseID == done.ResponseID {
			t.responseReceived = true
			c.tryFinalizeTransfer(false)
		}
	}

	if c.toolsRunning() {
		c.scheduleMusic("response-done")
	}

	c.drain()
	if c.deferredToolResponse {
		c.deferredToolResponse = false
		c.drain()
	}
}
