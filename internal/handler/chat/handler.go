package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/celeste-app/celeste/backend/internal/model/chat"
	"github.com/celeste-app/celeste/backend/internal/observability"
	"github.com/celeste-app/celeste/backend/internal/service/conversation"
	"github.com/celeste-app/celeste/backend/pkg/utils"
)

// TurnHandler 处理一次对话回合
type TurnHandler interface {
	HandleTurn(ctx context.Context, in conversation.TurnInput) (conversation.TurnOutput, error)
}

// SessionFinder 查询用户最近的会话
type SessionFinder interface {
	FindMostRecentByUser(ctx context.Context, userEmail string) (*chat.Session, error)
}

// Finalizer 导出并删除会话
type Finalizer interface {
	Finalize(ctx context.Context, sessionID, userEmail string) error
}

// Handler 聊天服务的HTTP处理器
type Handler struct {
	turns     TurnHandler
	sessions  SessionFinder
	finalizer Finalizer
}

// New 创建聊天处理器。turns 或 finalizer 为 nil 时对应接口返回 503。
func New(turns TurnHandler, sessions SessionFinder, finalizer Finalizer) *Handler {
	return &Handler{
		turns:     turns,
		sessions:  sessions,
		finalizer: finalizer,
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chatbot", h.handleTurn)
	r.Post("/obtenerChat", h.handleLatestSession)
	r.Post("/email", h.handleFinalize)
}

// handleTurn 处理用户提问
func (h *Handler) handleTurn(w http.ResponseWriter, r *http.Request) {
	var payload chat.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "cuerpo de la solicitud inválido")
		return
	}

	if strings.TrimSpace(payload.Question) == "" {
		utils.RespondError(w, http.StatusBadRequest, "Pregunta requerida")
		return
	}

	if h.turns == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "asistente no disponible")
		return
	}

	out, err := h.turns.HandleTurn(r.Context(), conversation.TurnInput{
		Utterance: payload.Question,
		SessionID: payload.SessionID,
		UserEmail: payload.UserEmail,
		UserName:  payload.UserName,
	})
	if err != nil {
		h.respondFailure(r, w, "turn", err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, chat.TurnResponse{Answer: out.Reply, SessionID: out.SessionID})
}

// handleLatestSession 返回用户最近的会话
func (h *Handler) handleLatestSession(w http.ResponseWriter, r *http.Request) {
	var payload chat.LatestSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "cuerpo de la solicitud inválido")
		return
	}

	if strings.TrimSpace(payload.UserEmail) == "" {
		utils.RespondError(w, http.StatusBadRequest, "Email requerido")
		return
	}

	session, err := h.sessions.FindMostRecentByUser(r.Context(), payload.UserEmail)
	if err != nil {
		h.respondFailure(r, w, "latest", err)
		return
	}

	if session == nil {
		utils.RespondJSON(w, http.StatusOK, chat.LatestSessionResponse{})
		return
	}

	utils.RespondJSON(w, http.StatusOK, chat.LatestSessionResponse{
		SessionID: session.SessionID,
		Messages:  session.Messages,
	})
}

// handleFinalize 发送会话记录并删除会话
func (h *Handler) handleFinalize(w http.ResponseWriter, r *http.Request) {
	var payload chat.FinalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "cuerpo de la solicitud inválido")
		return
	}

	if strings.TrimSpace(payload.SessionID) == "" || strings.TrimSpace(payload.UserEmail) == "" {
		utils.RespondError(w, http.StatusBadRequest, "sessionId y userEmail son requeridos")
		return
	}

	if h.finalizer == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "envío de correo no disponible")
		return
	}

	if err := h.finalizer.Finalize(r.Context(), payload.SessionID, payload.UserEmail); err != nil {
		h.respondFailure(r, w, "finalize", err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, chat.FinalizeResponse{OK: true})
}

func (h *Handler) respondFailure(r *http.Request, w http.ResponseWriter, op string, err error) {
	code := chat.ErrorCode(err)
	status, message := StatusFor(code)
	if status >= http.StatusInternalServerError {
		observability.LoggerFromContext(r.Context()).Error("request failed", "op", op, "code", code, "err", err)
	}
	if code == chat.CodeValidation {
		message = err.Error()
	}
	utils.RespondError(w, status, message)
}

// StatusFor 将错误码映射为 HTTP 状态码和对外提示。
func StatusFor(code string) (int, string) {
	switch code {
	case chat.CodeValidation:
		return http.StatusBadRequest, "solicitud inválida"
	case chat.CodeNotFound:
		return http.StatusNotFound, "Sesión no encontrada"
	case chat.CodeCompletion:
		return http.StatusBadGateway, "el asistente no pudo responder"
	case chat.CodeDelivery:
		return http.StatusBadGateway, "no se pudo enviar el correo"
	default:
		return http.StatusInternalServerError, "Error interno del servidor"
	}
}
