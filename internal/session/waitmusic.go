package session

import (
	"time"

	"go.uber.org/zap"

	"github.com/troikatech/voice-gateway/internal/telephony"
	"github.com/troikatech/voice-gateway/pkg/holdaudio"
)

// One outbound frame per 20ms tick, matching the telephony frame rate.
const musicTick = 20 * time.Millisecond

// scheduleMusic arms a delayed start so the caller hears hold audio
// during real dead air but not during momentary thinking pauses. The
// delay stretches inside the suppression window right after a turn
// started.
func (c *Controller) scheduleMusic(reason string) {
	if c.music.playing || c.music.startTimer != nil || c.callerSpeaking || c.silentMode {
		return
	}

	delay := c.cfg.MusicStartDelay
	if c.responseStartTimestampMs >= 0 {
		sinceStart := time.Duration(c.latestMediaTimestampMs-c.responseStartTimestampMs) * time.Millisecond
		if remaining := c.cfg.MusicSuppression - sinceStart; remaining > delay {
			delay = remaining
		}
	}

	c.log.Debug("hold music scheduled",
		zap.String("call_sid", c.callSID),
		zap.String("reason", reason),
		zap.Duration("delay", delay))

	c.music.startTimer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.music.startTimer = nil
		c.startMusic(reason)
	})
}

// startMusic begins cyclic playback. Hold audio is never tracked in
// the mark queue; it is filler, not conversation.
func (c *Controller) startMusic(reason string) {
	if c.music.playing || c.callerSpeaking || c.silentMode || !c.phoneOpen || c.streamSID == "" {
		return
	}

	if c.music.buf == nil {
		c.music.buf = c.loadHoldBuffer()
	}

	c.music.playing = true
	c.music.stop = make(chan struct{})
	stop := c.music.stop

	c.log.Debug("hold music started",
		zap.String("call_sid", c.callSID),
		zap.String("reason", reason))

	go func() {
		ticker := time.NewTicker(musicTick)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				c.mu.Lock()
				if !c.music.playing || c.music.buf == nil {
					c.mu.Unlock()
					return
				}
				frame := c.music.buf.NextFrame()
				err := c.phone.WriteMessage(telephony.MediaMessage(c.streamSID, frame))
				c.mu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()
}

func (c *Controller) loadHoldBuffer() *holdaudio.Buffer {
	if c.cfg.HoldSource != nil {
		buf, err := c.cfg.HoldSource.Load()
		if err == nil && buf != nil {
			return buf
		}
		if err != nil {
			c.log.Warn("hold audio unavailable, using silence", zap.Error(err))
		}
	}
	return holdaudio.Silence(50)
}

// stopMusic cancels any pending start and running playback. Interrupt
// and teardown class reasons also drop the loaded buffer so the next
// start reloads fresh audio.
func (c *Controller) stopMusic(reason string) {
	if c.music.startTimer != nil {
		c.music.startTimer.Stop()
		c.music.startTimer = nil
	}
	if c.music.playing {
		c.music.playing = false
		close(c.music.stop)
		c.music.stop = nil
		c.log.Debug("hold music stopped",
			zap.String("call_sid", c.callSID),
			zap.String("reason", reason))
	}

	switch reason {
	case "interrupt", "stream-reset", "socket-close", "model-closed":
		c.music.buf = nil
		if reason == "interrupt" && c.toolsRunning() {
			c.music.resumeAfterInterrupt = true
		}
	}
}
