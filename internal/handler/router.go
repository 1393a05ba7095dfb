package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/celeste-app/celeste/backend/internal/config"
	"github.com/celeste-app/celeste/backend/internal/handler/chat"
	"github.com/celeste-app/celeste/backend/internal/handler/persona"
	"github.com/celeste-app/celeste/backend/internal/handler/ws"
	middlewarePkg "github.com/celeste-app/celeste/backend/internal/middleware"
	personaModel "github.com/celeste-app/celeste/backend/internal/model/persona"
	"github.com/celeste-app/celeste/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services. A nil turns or finalizer
// leaves the matching endpoints answering 503.
func NewRouter(serverCfg config.ServerConfig, active personaModel.Persona, turns chat.TurnHandler, sessions chat.SessionFinder, finalizer chat.Finalizer) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(serverCfg.AllowedOrigins))

	personaHandler := persona.New(active)
	chatHandler := chat.New(turns, sessions, finalizer)
	wsHandler := ws.New(turns, sessions, finalizer, active, middlewarePkg.OriginChecker(serverCfg.AllowedOrigins))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondText(w, http.StatusOK, "¡Hola, mundo!")
	})

	r.Route("/celeste", func(api chi.Router) {
		personaHandler.RegisterRoutes(api)
		chatHandler.RegisterRoutes(api)
		wsHandler.RegisterRoutes(api)
	})

	return r
}
