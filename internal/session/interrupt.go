package session

import (
	"go.uber.org/zap"

	"github.com/troikatech/voice-gateway/internal/telephony"
	"github.com/troikatech/voice-gateway/pkg/metrics"
)

// handleSpeechStarted is the barge-in path: the model's VAD heard the
// caller while the assistant may still be talking. The model's view of
// its own utterance is truncated to what the caller actually heard,
// and buffered outbound audio is flushed.
func (c *Controller) handleSpeechStarted() {
	c.callerSpeaking = true
	c.stopMusic("interrupt")

	if len(c.markQueue) == 0 || c.responseStartTimestampMs < 0 {
		return
	}

	elapsed := c.latestMediaTimestampMs - c.responseStartTimestampMs
	if c.lastAssistantItemID != "" && c.trackedAudioMs() > 0 {
		audioEndMs := elapsed
		if tracked := c.trackedAudioMs(); tracked < audioEndMs {
			audioEndMs = tracked
		}
		if audioEndMs > 0 && c.modelOpen {
			if err := c.model.TruncateItem(c.lastAssistantItemID, audioEndMs); err != nil {
				c.log.Warn("truncate failed", zap.Error(err))
			}
		}
	}

	if c.phoneOpen && !c.silentMode {
		if err := c.phone.WriteMessage(telephony.ClearMessage(c.streamSID)); err != nil {
			c.log.Warn("clear write failed", zap.Error(err))
		}
	}

	c.markQueue = nil
	c.lastAssistantItemID = ""
	c.lastAssistantAudioBytes = 0
	c.responseStartTimestampMs = -1
	metrics.Interruption()

	if c.toolsRunning() {
		c.music.resumeAfterInterrupt = true
	}
}

// handleSpeechStopped resumes queued work once the caller goes quiet.
func (c *Controller) handleSpeechStopped() {
	c.callerSpeaking = false
	c.drain()

	if c.music.resumeAfterInterrupt && c.toolsRunning() {
		c.music.resumeAfterInterrupt = false
		c.scheduleMusic("resume-after-interrupt")
	} else if c.toolsRunning() {
		c.scheduleMusic("speech-stopped")
	}
}
