// Package session owns one phone call end to end: it multiplexes the
// telephony media stream and the realtime model connection into a
// single state machine handling barge-in, tool calls, hold music,
// transfer and hangup.
package session

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/troikatech/voice-gateway/internal/realtime"
	"github.com/troikatech/voice-gateway/internal/telephony"
	"github.com/troikatech/voice-gateway/internal/tools"
	"github.com/troikatech/voice-gateway/pkg/holdaudio"
	"github.com/troikatech/voice-gateway/pkg/logger"
	"github.com/troikatech/voice-gateway/pkg/metrics"
	"github.com/troikatech/voice-gateway/pkg/utils"
)

// ModelConn is the realtime model side of the call.
type ModelConn interface {
	AppendAudio(mulaw []byte) error
	CreateUserMessage(text string) error
	CreateSystemMessage(text string) error
	CreateFunctionOutput(callID, output string) error
	TruncateItem(itemID string, audioEndMs int64) error
	CreateResponse() error
	UpdateSession(patch map[string]interface{}) error
	Close() error
}

// PhoneConn is the telephony media-stream side of the call.
type PhoneConn interface {
	WriteMessage(data []byte) error
	Close() error
}

// Control drives the live call through the telephony REST API.
type Control interface {
	UpdateCall(callSID, twiml string) error
	SendMessage(from, to, body string) error
}

// ToolRunner dispatches model function calls.
type ToolRunner interface {
	Execute(ctx context.Context, name, rawArgs string, tc *tools.Context) (string, error)
}

// Config is the immutable per-deployment configuration a session needs.
type Config struct {
	KnownCallers map[string]string
	OwnerNumber  string
	FromNumber   string

	WarningAfter time.Duration
	HangupAfter  time.Duration
	HangupGrace  time.Duration

	MusicStartDelay  time.Duration
	MusicSuppression time.Duration

	DisconnectTimeout     time.Duration
	TransferTimeout       time.Duration
	TransferAudibleWindow time.Duration

	HoldSource holdaudio.Source
}

func (c *Config) applyDefaults() {
	if c.WarningAfter == 0 {
		c.WarningAfter = 50 * time.Minute
	}
	if c.HangupAfter == 0 {
		c.HangupAfter = 55 * time.Minute
	}
	if c.HangupGrace == 0 {
		c.HangupGrace = 3 * time.Second
	}
	if c.MusicStartDelay == 0 {
		c.MusicStartDelay = 1500 * time.Millisecond
	}
	if c.MusicSuppression == 0 {
		c.MusicSuppression = 3 * time.Second
	}
	if c.DisconnectTimeout == 0 {
		c.DisconnectTimeout = 10 * time.Second
	}
	if c.TransferTimeout == 0 {
		c.TransferTimeout = 5 * time.Second
	}
	if c.TransferAudibleWindow == 0 {
		c.TransferAudibleWindow = 1200 * time.Millisecond
	}
}

type transferState struct {
	callSID          string
	destination      string
	label            string
	responseID       string
	announcePending  bool
	responseReceived bool
	audioStarted     bool
	audioStartedAt   time.Time
	inFlight         bool
	timer            *time.Timer
}

type musicState struct {
	playing              bool
	buf                  *holdaudio.Buffer
	startTimer           *time.Timer
	stop                 chan struct{}
	resumeAfterInterrupt bool
}

// Controller holds one call's entire mutable state. All state access
// goes through mu: websocket pumps, timers and tool continuations each
// enter through a locked handler, so the session processes one event
// at a time.
type Controller struct {
	mu  sync.Mutex
	cfg Config
	log *zap.Logger

	model    ModelConn
	phone    PhoneConn
	control  Control
	registry ToolRunner

	// Identity, set once from the stream start frame.
	streamSID    string
	callSID      string
	callerNumber string
	calleeNumber string
	callerName   string

	// Audio relay.
	latestMediaTimestampMs   int64
	lastAssistantItemID      string
	lastAssistantAudioBytes  int64
	responseStartTimestampMs int64
	markQueue                []string

	// Response lifecycle.
	responseActive       bool
	responsePending      bool
	responseQueue        []string
	deferredToolResponse bool
	callerSpeaking       bool

	// Pending hangup.
	pendingDisconnect          bool
	disconnectResponseReceived bool
	disconnectAudioStarted     bool
	disconnectTimer            *time.Timer
	graceTimer                 *time.Timer

	// Pending transfer.
	transfer *transferState

	// Tool and post-hangup state.
	toolsInFlight     int
	silentMode        bool
	summarySent       bool
	hangupDuringTools bool
	lastSearchQuery   string
	lastEmailSubject  string

	music musicState

	// Noise reduction, owned by the tool bridge.
	noiseMode       string
	noiseToggles    int
	lastNoiseToggle time.Time

	warnTimer   *time.Timer
	hangupTimer *time.Timer
	warned      bool

	phoneOpen bool
	modelOpen bool
	closed    bool
}

// New wires a controller for one accepted media stream.
func New(cfg Config, model ModelConn, phone PhoneConn, control Control, registry ToolRunner) *Controller {
	cfg.applyDefaults()
	return &Controller{
		cfg:                      cfg,
		log:                      logger.Log,
		model:                    model,
		phone:                    phone,
		control:                  control,
		registry:                 registry,
		responseStartTimestampMs: -1,
		noiseMode:                "near_field",
		phoneOpen:                true,
		modelOpen:                true,
	}
}

// HandleTelephonyFrame processes one decoded media-stream frame.
func (c *Controller) HandleTelephonyFrame(f *telephony.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch f.Event {
	case telephony.EventStart:
		c.handleStart(f.Start)
	case telephony.EventMedia:
		c.handleMedia(f)
	case telephony.EventMark:
		c.handleMarkAck(f.Mark)
	case telephony.EventStop:
		c.handleStop()
	case telephony.EventConnected:
		// Handshake frame, nothing to track.
	default:
		c.log.Debug("unhandled media-stream event", zap.String("event", f.Event))
	}
}

// HandleModelEvent processes one decoded realtime event.
func (c *Controller) HandleModelEvent(ev realtime.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e := ev.(type) {
	case realtime.SpeechStarted:
		c.handleSpeechStarted()
	case realtime.SpeechStopped:
		c.handleSpeechStopped()
	case realtime.ResponseCreated:
		c.onResponseCreated(e.ResponseID)
	case realtime.AudioDelta:
		c.handleAudioDelta(e)
	case realtime.ResponseDone:
		c.onResponseDone(e)
	case realtime.InputTranscript:
		c.log.Debug("caller said",
			zap.String("call_sid", c.callSID),
			zap.String("transcript", e.Transcript))
	case realtime.ErrorEvent:
		c.log.Warn("realtime error event",
			zap.String("call_sid", c.callSID),
			zap.String("code", e.Code),
			zap.String("message", e.Message))
	case realtime.SessionReady, realtime.TranscriptDelta, realtime.Unknown:
		// Logged upstream at debug level where useful.
	}
}

func (c *Controller) handleStart(start *telephony.StartPayload) {
	if start == nil {
		c.log.Warn("start frame without payload")
		return
	}
	c.streamSID = start.StreamSID
	c.callSID = start.CallSID
	c.callerNumber = utils.NormalizePhone(start.CustomParameters["from"])
	c.calleeNumber = utils.NormalizePhone(start.CustomParameters["to"])
	if name, ok := c.cfg.KnownCallers[c.callerNumber]; ok {
		c.callerName = name
	}

	metrics.SessionStarted()
	c.log.Info("media stream started",
		zap.String("call_sid", c.callSID),
		zap.String("stream_sid", c.streamSID),
		zap.String("caller", utils.MaskPhoneNumber(c.callerNumber)),
		zap.String("caller_name", c.callerName))

	c.armSessionTimers()

	if c.modelOpen {
		greeting := "A caller just connected. Greet them warmly and ask how you can help."
		if c.callerName != "" {
			greeting = "The caller is " + c.callerName + ", a known contact. Greet them by name and ask how you can help."
		}
		if err := c.model.CreateSystemMessage(greeting); err != nil {
			c.log.Warn("greeting item failed", zap.Error(err))
		}
		c.requestNow("greeting")
	}
}

// handleStop runs when the caller hangs up. Outbound audio goes silent
// immediately, but in-flight tools are allowed to finish so their
// side effects complete and the summary text still goes out.
func (c *Controller) handleStop() {
	c.log.Info("media stream stopped",
		zap.String("call_sid", c.callSID),
		zap.Int("tools_in_flight", c.toolsInFlight))
	c.enterSilentMode()
}

// HandleTelephonyClosed runs when the media websocket read pump exits.
func (c *Controller) HandleTelephonyClosed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.phoneOpen = false
	c.enterSilentMode()
}

// HandleModelClosed runs when the model websocket read pump exits.
func (c *Controller) HandleModelClosed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modelOpen = false
	c.responseActive = false
	c.responsePending = false
	c.stopMusic("model-closed")
}

func (c *Controller) enterSilentMode() {
	if c.silentMode {
		return
	}
	c.silentMode = true
	c.stopMusic("socket-close")
	c.cancelTimers()

	if c.toolsRunning() {
		c.hangupDuringTools = true
		// Model connection stays open for the remaining tool results.
		return
	}
	c.finishSession()
}

// finishSession closes whatever is still open and records the end.
// Idempotent.
func (c *Controller) finishSession() {
	if c.closed {
		return
	}
	c.closed = true
	c.stopMusic("socket-close")
	c.cancelTimers()
	if c.modelOpen {
		c.modelOpen = false
		_ = c.model.Close()
	}
	if c.phoneOpen {
		c.phoneOpen = false
		_ = c.phone.Close()
	}
	metrics.SessionEnded()
	c.log.Info("session finished", zap.String("call_sid", c.callSID))
}

// cancelTimers stops every outstanding timer handle in one place.
func (c *Controller) cancelTimers() {
	for _, t := range []*time.Timer{
		c.disconnectTimer, c.graceTimer, c.warnTimer, c.hangupTimer, c.music.startTimer,
	} {
		if t != nil {
			t.Stop()
		}
	}
	c.disconnectTimer = nil
	c.graceTimer = nil
	c.warnTimer = nil
	c.hangupTimer = nil
	c.music.startTimer = nil
	if c.transfer != nil && c.transfer.timer != nil {
		c.transfer.timer.Stop()
		c.transfer.timer = nil
	}
}

func parseTimestampMs(s string) (int64, bool) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return ms, true
}
