package persona

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/celeste-app/celeste/backend/internal/model/persona"
	"github.com/celeste-app/celeste/backend/pkg/utils"
)

// Handler persona服务的HTTP处理器
type Handler struct {
	active persona.Persona
}

// New 创建persona处理器
func New(active persona.Persona) *Handler {
	return &Handler{active: active}
}

// RegisterRoutes 注册persona相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/persona", h.handleGetPersona)
}

// handleGetPersona 返回当前助手的展示信息
func (h *Handler) handleGetPersona(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.active)
}
