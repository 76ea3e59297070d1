package handlers

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/troikatech/voice-gateway/internal/realtime"
	"github.com/troikatech/voice-gateway/internal/session"
	"github.com/troikatech/voice-gateway/internal/telephony"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Twilio connects server to server; there is no browser origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// phoneConn serializes writes to the media-stream websocket.
type phoneConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (p *phoneConn) WriteMessage(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.WriteMessage(websocket.TextMessage, data)
}

func (p *phoneConn) Close() error {
	p.mu.Lock()
	_ = p.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	p.mu.Unlock()
	return p.conn.Close()
}

// MediaStream is the media-stream websocket endpoint. Each connection
// carries one call: the model connection is dialed, the session
// controller created, and both read pumps run until their peer closes.
func (h *Handler) MediaStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("media-stream upgrade failed", zap.Error(err))
		return
	}
	phone := &phoneConn{conn: conn}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	model, err := realtime.Dial(ctx, h.cfg.RealtimeBaseURL, h.cfg.RealtimeModel, h.cfg.OpenAIApiKey)
	cancel()
	if err != nil {
		h.logger.Error("realtime dial failed", zap.Error(err))
		_ = phone.Close()
		return
	}

	if err := model.ConfigureSession(realtime.SessionConfig{
		Instructions: h.instructions(),
		Voice:        h.cfg.RealtimeVoice,
		Tools:        h.registry.Definitions(),
	}); err != nil {
		h.logger.Error("session configure failed", zap.Error(err))
		_ = model.Close()
		_ = phone.Close()
		return
	}

	ctrl := session.New(session.Config{
		KnownCallers: h.cfg.KnownCallers,
		OwnerNumber:  h.cfg.OwnerNumber,
		FromNumber:   h.cfg.TwilioPhoneNumber,
		WarningAfter: h.cfg.WarningAfter,
		HangupAfter:  h.cfg.HangupAfter,
		HoldSource:   h.holdSource,
	}, model, phone, h.control, h.registry)

	go h.modelPump(ctrl, model)
	h.phonePump(ctrl, conn)
}

// phonePump reads media-stream frames until the telephony peer closes.
func (h *Handler) phonePump(ctrl *session.Controller, conn *websocket.Conn) {
	defer ctrl.HandleTelephonyClosed()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("media stream read error", zap.Error(err))
			}
			return
		}
		frame, err := telephony.ParseFrame(raw)
		if err != nil {
			h.logger.Warn("dropping malformed media frame", zap.Error(err))
			continue
		}
		ctrl.HandleTelephonyFrame(frame)
	}
}

// modelPump reads realtime events until the model peer closes.
func (h *Handler) modelPump(ctrl *session.Controller, model *realtime.Client) {
	defer ctrl.HandleModelClosed()

	for {
		ev, err := model.ReadEvent()
		if err != nil {
			return
		}
		ctrl.HandleModelEvent(ev)
	}
}

func (h *Handler) instructions() string {
	if h.cfg.SystemInstructions != "" {
		return h.cfg.SystemInstructions
	}
	base := "You are a helpful voice assistant answering a phone call. " +
		"Keep replies short and conversational; this is a live call, not a chat. " +
		"Use the available tools for searches, messages, weather, directions, transfers and ending the call."
	if labels := h.cfg.TransferLabels(); len(labels) > 0 {
		base += " Calls can be transferred to: " + strings.Join(labels, ", ") + "."
	}
	return base
}
