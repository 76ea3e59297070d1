package session

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/troikatech/voice-gateway/internal/realtime"
	"github.com/troikatech/voice-gateway/internal/telephony"
)

// mu-law at 8 kHz is 8 bytes per millisecond.
const bytesPerMs = 8

// handleMedia forwards caller audio straight into the model input
// buffer and tracks the stream clock.
func (c *Controller) handleMedia(f *telephony.Frame) {
	if f.Media == nil {
		return
	}
	if ms, ok := parseTimestampMs(f.Media.Timestamp); ok {
		c.latestMediaTimestampMs = ms
	}
	if !c.modelOpen {
		return
	}

	audio, err := f.AudioBytes()
	if err != nil {
		c.log.Warn("dropping malformed media frame", zap.Error(err))
		return
	}
	if err := c.model.AppendAudio(audio); err != nil {
		c.log.Warn("append audio failed", zap.Error(err))
	}
}

// handleAudioDelta relays synthesized audio back to the caller and
// keeps per-item playback accounting for truncation and gating.
func (c *Controller) handleAudioDelta(d realtime.AudioDelta) {
	if d.ItemID != c.lastAssistantItemID {
		c.lastAssistantItemID = d.ItemID
		c.lastAssistantAudioBytes = 0
	}
	c.lastAssistantAudioBytes += int64(len(d.Audio))

	c.stopMusic("assistant-audio")

	if c.pendingDisconnect {
		c.disconnectAudioStarted = true
	}
	if t := c.transfer; t != nil && !t.audioStarted &&
		t.responseID != "" && t.responseID == d.ResponseID {
		t.audioStarted = true
		t.audioStartedAt = time.Now()
	}

	if c.silentMode || !c.phoneOpen {
		return
	}

	if err := c.phone.WriteMessage(telephony.MediaMessage(c.streamSID, d.Audio)); err != nil {
		c.log.Warn("media write failed", zap.Error(err))
		return
	}
	if c.responseStartTimestampMs < 0 {
		c.responseStartTimestampMs = c.latestMediaTimestampMs
	}

	mark := uuid.NewString()
	c.markQueue = append(c.markQueue, mark)
	if err := c.phone.WriteMessage(telephony.MarkMessage(c.streamSID, mark)); err != nil {
		c.log.Warn("mark write failed", zap.Error(err))
	}
}

// trackedAudioMs is how much assistant audio the current item has
// produced so far.
func (c *Controller) trackedAudioMs() int64 {
	return c.lastAssistantAudioBytes / bytesPerMs
}

// handleMarkAck consumes one playback acknowledgement, oldest first,
// then re-checks the hangup and transfer gates.
func (c *Controller) handleMarkAck(mark *telephony.MarkPayload) {
	if len(c.markQueue) == 0 {
		return
	}
	if mark != nil && mark.Name != "" && mark.Name != c.markQueue[0] {
		c.log.Debug("out-of-order mark ack",
			zap.String("got", mark.Name),
			zap.String("expected", c.markQueue[0]))
	}
	c.markQueue = c.markQueue[1:]

	c.tryFinalizeDisconnect(false)
	c.tryFinalizeTransfer(false)
}
