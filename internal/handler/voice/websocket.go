package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	chathandler "github.com/zhouzirui/haven/backend/internal/handler/chat"
	"github.com/zhouzirui/haven/backend/internal/middleware"
	chatservice "github.com/zhouzirui/haven/backend/internal/service/chat"
	voiceservice "github.com/zhouzirui/haven/backend/internal/service/voice"
)

const (
	pongWait         = 60 * time.Second
	pingPeriod       = 54 * time.Second
	writeWait        = 10 * time.Second
	maxBufferedAudio = 16 << 20
	maxQueuedFrames  = 256
)

// Outgoing event types on the live channel.
const (
	EventConnected = "connected"
	EventConfig    = "config"
	EventTone      = "tone"
	EventUser      = "user"
	EventDelta     = "ai_delta"
	EventReply     = "ai"
	EventError     = "error"
)

// LiveHandler runs the live voice channel: clips are buffered until the
// client marks the last chunk, analyzed, and answered in the active
// conversation with a tone-adapted reply.
type LiveHandler struct {
	voice    *voiceservice.Service
	chat     *chatservice.Service
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewLiveHandler creates the live handler. allowedOrigins follows the CORS
// setting: "*" accepts any origin.
func NewLiveHandler(voice *voiceservice.Service, chat *chatservice.Service, allowedOrigins []string, logger *zap.Logger) *LiveHandler {
	return &LiveHandler{
		voice:  voice,
		chat:   chat,
		logger: logger.With(zap.String("component", "voice_ws")),
		upgrader: websocket.Upgrader{
			CheckOrigin:     originChecker(allowedOrigins),
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// RegisterRoutes mounts the websocket route.
func (h *LiveHandler) RegisterRoutes(r chi.Router) {
	r.Get("/voice/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// AudioMessage carries one chunk of a WAV clip.
type AudioMessage struct {
	AudioData []byte `json:"audioData"`
	Language  string `json:"language"`
	IsFinal   bool   `json:"isFinal"`
}

// TextMessage is a typed turn on the live channel.
type TextMessage struct {
	Text string `json:"text"`
}

// ConfigMessage switches conversation or language.
type ConfigMessage struct {
	ConversationID string `json:"conversationId"`
	Language       string `json:"language"`
}

type outgoingMessage struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type connectionState struct {
	userID         string
	conversationID string
	language       string
	lastToneID     string
	buffer         bytes.Buffer
}

type liveConn struct {
	conn   *websocket.Conn
	logger *zap.Logger
	mu     sync.Mutex
}

func (c *liveConn) send(kind string, data any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	msg := outgoingMessage{Type: kind, Data: data, Timestamp: time.Now().Unix()}
	if err := c.conn.WriteJSON(msg); err != nil {
		c.logger.Debug("write websocket message failed", zap.String("type", kind), zap.Error(err))
	}
}

func (c *liveConn) sendError(message string) {
	c.send(EventError, map[string]string{"message": message})
}

func (c *liveConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (h *LiveHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	state := &connectionState{
		userID:   userID,
		language: r.URL.Query().Get("language"),
	}

	if id := strings.TrimSpace(r.URL.Query().Get("conversationId")); id != "" {
		if _, _, err := h.chat.GetConversation(r.Context(), userID, id, 1); err != nil {
			chathandler.RespondServiceError(w, h.logger, err)
			return
		}
		state.conversationID = id
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer ws.Close()

	conn := &liveConn{conn: ws, logger: h.logger}
	h.logger.Info("voice channel opened",
		zap.String("user_id", userID),
		zap.String("conversation_id", state.conversationID))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ws.SetReadLimit(maxBufferedAudio * 2)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	go h.pingLoop(ctx, conn)

	allowed, err := h.voice.Allowed(ctx, userID)
	if err != nil {
		h.logger.Warn("load voice settings failed", zap.Error(err))
	}
	conn.send(EventConnected, map[string]any{
		"conversationId": state.conversationID,
		"language":       state.language,
		"voiceAnalysis":  allowed,
	})

	// Frames are handled in order on one worker so the read loop keeps
	// answering pings while an analysis or reply is in flight.
	frames := make(chan inboundMessage, maxQueuedFrames)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range frames {
			h.handleMessage(ctx, conn, state, &msg)
		}
	}()
	defer func() {
		close(frames)
		cancel()
		<-done
	}()

	for {
		var msg inboundMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read ended", zap.Error(err))
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		select {
		case frames <- msg:
		default:
			conn.sendError("too many pending messages")
		}
	}
}

func (h *LiveHandler) handleMessage(ctx context.Context, conn *liveConn, state *connectionState, msg *inboundMessage) {
	switch msg.Type {
	case "audio":
		h.handleAudioMessage(ctx, conn, state, msg.Data)
	case "text":
		h.handleTextMessage(ctx, conn, state, msg.Data)
	case "config":
		h.handleConfigMessage(ctx, conn, state, msg.Data)
	default:
		conn.sendError("unsupported message type: " + msg.Type)
	}
}

func (h *LiveHandler) handleAudioMessage(ctx context.Context, conn *liveConn, state *connectionState, raw json.RawMessage) {
	var audio AudioMessage
	if err := json.Unmarshal(raw, &audio); err != nil {
		conn.sendError("invalid audio payload")
		return
	}
	if audio.Language != "" {
		state.language = audio.Language
	}
	if state.buffer.Len()+len(audio.AudioData) > maxBufferedAudio {
		state.buffer.Reset()
		conn.sendError("audio clip too large")
		return
	}
	state.buffer.Write(audio.AudioData)

	if audio.IsFinal {
		h.processBufferedAudio(ctx, conn, state)
	}
}

func (h *LiveHandler) processBufferedAudio(ctx context.Context, conn *liveConn, state *connectionState) {
	clip := bytes.Clone(state.buffer.Bytes())
	state.buffer.Reset()
	if len(clip) == 0 {
		conn.sendError("no audio received")
		return
	}

	result, err := h.voice.Analyze(ctx, state.userID, voiceservice.Request{
		Audio:    clip,
		Filename: "live.wav",
		Language: state.language,
	})
	if err != nil {
		if AnalysisStatus(err) == http.StatusInternalServerError {
			h.logger.Error("live analysis failed", zap.Error(err))
			conn.sendError("analysis failed")
			return
		}
		conn.sendError(err.Error())
		return
	}

	state.lastToneID = result.ID
	conn.send(EventTone, result)

	if strings.TrimSpace(result.Transcript) == "" || state.conversationID == "" {
		return
	}
	h.reply(ctx, conn, state, result.Transcript)
}

func (h *LiveHandler) handleTextMessage(ctx context.Context, conn *liveConn, state *connectionState, raw json.RawMessage) {
	var text TextMessage
	if err := json.Unmarshal(raw, &text); err != nil {
		conn.sendError("invalid text payload")
		return
	}
	if strings.TrimSpace(text.Text) == "" {
		return
	}
	if state.conversationID == "" {
		conn.sendError("no active conversation")
		return
	}
	h.reply(ctx, conn, state, text.Text)
}

func (h *LiveHandler) handleConfigMessage(ctx context.Context, conn *liveConn, state *connectionState, raw json.RawMessage) {
	var cfg ConfigMessage
	if err := json.Unmarshal(raw, &cfg); err != nil {
		conn.sendError("invalid config payload")
		return
	}

	if id := strings.TrimSpace(cfg.ConversationID); id != "" && id != state.conversationID {
		if _, _, err := h.chat.GetConversation(ctx, state.userID, id, 1); err != nil {
			if chathandler.StatusFor(err) == http.StatusInternalServerError {
				h.logger.Error("load conversation failed", zap.Error(err))
				conn.sendError("internal error")
				return
			}
			conn.sendError(err.Error())
			return
		}
		state.conversationID = id
	}
	if cfg.Language != "" {
		state.language = cfg.Language
	}

	conn.send(EventConfig, map[string]any{
		"conversationId": state.conversationID,
		"language":       state.language,
	})
}

// reply runs one companion turn, streaming deltas as they arrive. The
// latest tone of this channel shapes the reply style.
func (h *LiveHandler) reply(ctx context.Context, conn *liveConn, state *connectionState, text string) {
	pending, err := h.chat.BeginTurn(ctx, state.userID, state.conversationID, chatservice.SendRequest{
		Content:   text,
		ToneLogID: state.lastToneID,
	})
	if err != nil {
		if chathandler.StatusFor(err) == http.StatusInternalServerError {
			h.logger.Error("begin live turn failed", zap.Error(err))
			conn.sendError("internal error")
			return
		}
		conn.sendError(err.Error())
		return
	}
	conn.send(EventUser, pending.UserMessage)

	reply, err := h.chat.GenerateReply(ctx, pending, func(delta string) {
		conn.send(EventDelta, map[string]string{"content": delta})
	})
	if err != nil {
		h.logger.Warn("live reply failed", zap.Error(err))
		conn.sendError("reply failed")
		return
	}

	turn, err := h.chat.CompleteTurn(ctx, pending, reply)
	if err != nil {
		h.logger.Error("complete live turn failed", zap.Error(err))
		conn.sendError("internal error")
		return
	}
	conn.send(EventReply, turn)
}

func (h *LiveHandler) pingLoop(ctx context.Context, conn *liveConn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				return
			}
		}
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}
