// Package ws serves the conversational websocket. Each frame carries one
// operation; the connection remembers the active session id between turns.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	chathandler "github.com/celeste-app/celeste/backend/internal/handler/chat"
	"github.com/celeste-app/celeste/backend/internal/model/chat"
	"github.com/celeste-app/celeste/backend/internal/model/persona"
	"github.com/celeste-app/celeste/backend/internal/observability"
	"github.com/celeste-app/celeste/backend/internal/service/conversation"
)

const (
	defaultReadTimeout = 60 * time.Second
	pingInterval       = 54 * time.Second
	writeTimeout       = 10 * time.Second
)

// Inbound frame types.
const (
	TypeTurn     = "turn"
	TypeLatest   = "latest"
	TypeFinalize = "finalize"
)

// Handler WebSocket对话处理器
type Handler struct {
	turns     chathandler.TurnHandler
	sessions  chathandler.SessionFinder
	finalizer chathandler.Finalizer
	active    persona.Persona
	upgrader  websocket.Upgrader
	// readTimeout bounds the idle time between frames.
	readTimeout time.Duration
}

// New 创建WebSocket处理器。checkOrigin 为 nil 时允许所有来源。
func New(turns chathandler.TurnHandler, sessions chathandler.SessionFinder, finalizer chathandler.Finalizer, active persona.Persona, checkOrigin func(*http.Request) bool) *Handler {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Handler{
		turns:       turns,
		sessions:    sessions,
		finalizer:   finalizer,
		active:      active,
		readTimeout: defaultReadTimeout,
		upgrader: websocket.Upgrader{
			CheckOrigin:     checkOrigin,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId,omitempty"`
	Data      json.RawMessage `json:"data"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// ErrorData is the payload of an "error" frame.
type ErrorData struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

type connectionState struct {
	sessionID string
	userEmail string
	userName  string
}

// handleWebSocket 处理WebSocket连接
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	state := &connectionState{
		sessionID: strings.TrimSpace(r.URL.Query().Get("sessionId")),
		userEmail: strings.TrimSpace(r.URL.Query().Get("userEmail")),
		userName:  strings.TrimSpace(r.URL.Query().Get("userName")),
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		observability.LoggerFromContext(r.Context()).Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	logger := observability.LoggerFromContext(ctx)

	_ = conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	})

	go pingLoop(ctx, conn)

	h.send(conn, "connected", state.sessionID, map[string]string{
		"persona":     h.active.ID,
		"name":        h.active.Name,
		"openingLine": h.active.OpeningLine,
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			var msg inboundMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Warn("websocket read failed", "err", err)
				}
				return
			}

			if msg.SessionID != "" {
				state.sessionID = msg.SessionID
			}
			h.handleMessage(ctx, conn, state, &msg)

			// A slow completion must not eat into the idle budget of the next frame.
			_ = conn.SetReadDeadline(time.Now().Add(h.readTimeout))
		}
	}
}

func (h *Handler) handleMessage(ctx context.Context, conn *websocket.Conn, state *connectionState, msg *inboundMessage) {
	switch msg.Type {
	case TypeTurn:
		h.handleTurn(ctx, conn, state, msg.Data)
	case TypeLatest:
		h.handleLatest(ctx, conn, state, msg.Data)
	case TypeFinalize:
		h.handleFinalize(ctx, conn, state, msg.Data)
	default:
		h.sendError(conn, state.sessionID, "unsupported message type: "+msg.Type, chat.CodeValidation)
	}
}

func (h *Handler) handleTurn(ctx context.Context, conn *websocket.Conn, state *connectionState, raw json.RawMessage) {
	var payload chat.TurnRequest
	if err := decode(raw, &payload); err != nil {
		h.sendError(conn, state.sessionID, "invalid turn payload", chat.CodeValidation)
		return
	}
	if h.turns == nil {
		h.sendError(conn, state.sessionID, "asistente no disponible", chat.CodeInternal)
		return
	}

	if payload.SessionID != "" {
		state.sessionID = payload.SessionID
	}
	if payload.UserEmail != "" {
		state.userEmail = payload.UserEmail
	}
	if payload.UserName != "" {
		state.userName = payload.UserName
	}

	out, err := h.turns.HandleTurn(ctx, conversation.TurnInput{
		Utterance: payload.Question,
		SessionID: state.sessionID,
		UserEmail: state.userEmail,
		UserName:  state.userName,
	})
	if err != nil {
		h.sendFailure(ctx, conn, state.sessionID, err)
		return
	}

	state.sessionID = out.SessionID
	h.send(conn, "result", out.SessionID, chat.TurnResponse{Answer: out.Reply, SessionID: out.SessionID})
}

func (h *Handler) handleLatest(ctx context.Context, conn *websocket.Conn, state *connectionState, raw json.RawMessage) {
	var payload chat.LatestSessionRequest
	if err := decode(raw, &payload); err != nil {
		h.sendError(conn, state.sessionID, "invalid latest payload", chat.CodeValidation)
		return
	}
	if payload.UserEmail == "" {
		payload.UserEmail = state.userEmail
	}
	if strings.TrimSpace(payload.UserEmail) == "" {
		h.sendError(conn, state.sessionID, "Email requerido", chat.CodeValidation)
		return
	}

	session, err := h.sessions.FindMostRecentByUser(ctx, payload.UserEmail)
	if err != nil {
		h.sendFailure(ctx, conn, state.sessionID, err)
		return
	}

	state.userEmail = payload.UserEmail
	if session == nil {
		h.send(conn, "latest", state.sessionID, chat.LatestSessionResponse{})
		return
	}

	state.sessionID = session.SessionID
	h.send(conn, "latest", session.SessionID, chat.LatestSessionResponse{
		SessionID: session.SessionID,
		Messages:  session.Messages,
	})
}

func (h *Handler) handleFinalize(ctx context.Context, conn *websocket.Conn, state *connectionState, raw json.RawMessage) {
	var payload chat.FinalizeRequest
	if err := decode(raw, &payload); err != nil {
		h.sendError(conn, state.sessionID, "invalid finalize payload", chat.CodeValidation)
		return
	}
	if h.finalizer == nil {
		h.sendError(conn, state.sessionID, "envío de correo no disponible", chat.CodeInternal)
		return
	}
	if payload.SessionID == "" {
		payload.SessionID = state.sessionID
	}
	if payload.UserEmail == "" {
		payload.UserEmail = state.userEmail
	}

	if err := h.finalizer.Finalize(ctx, payload.SessionID, payload.UserEmail); err != nil {
		h.sendFailure(ctx, conn, state.sessionID, err)
		return
	}

	if payload.SessionID == state.sessionID {
		state.sessionID = ""
	}
	h.send(conn, "finalized", payload.SessionID, chat.FinalizeResponse{OK: true})
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func (h *Handler) sendFailure(ctx context.Context, conn *websocket.Conn, sessionID string, err error) {
	code := chat.ErrorCode(err)
	status, message := chathandler.StatusFor(code)
	if status >= http.StatusInternalServerError {
		observability.LoggerFromContext(ctx).Error("websocket operation failed", "session_id", sessionID, "code", code, "err", err)
	}
	if code == chat.CodeValidation {
		message = err.Error()
	}
	h.sendError(conn, sessionID, message, code)
}

func (h *Handler) send(conn *websocket.Conn, msgType, sessionID string, data interface{}) {
	msg := outgoingMessage{
		Type:      msgType,
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		observability.Logger().Warn("websocket write failed", "type", msgType, "err", err)
	}
}

func (h *Handler) sendError(conn *websocket.Conn, sessionID, message, code string) {
	h.send(conn, "error", sessionID, ErrorData{Message: message, Code: code})
}

// pingLoop 定期发送ping消息
func pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
