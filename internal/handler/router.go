package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/techbot/internal/config"
	"github.com/zhouzirui/techbot/internal/handler/chat"
	"github.com/zhouzirui/techbot/internal/handler/page"
	"github.com/zhouzirui/techbot/internal/handler/stream"
	"github.com/zhouzirui/techbot/internal/handler/ws"
	middlewarePkg "github.com/zhouzirui/techbot/internal/middleware"
	"github.com/zhouzirui/techbot/internal/service/assistant"
	chatService "github.com/zhouzirui/techbot/internal/service/chat"
	"github.com/zhouzirui/techbot/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(cfg *config.Config, registry *chatService.Registry, assistantSvc *assistant.Service, log *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(cfg.Server.AllowedOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middlewarePkg.Workspace(cfg.Session.CookieName, cfg.Session.CookieSecure))

		page.New(registry, assistantSvc, log).RegisterRoutes(r)

		r.Route("/api", func(api chi.Router) {
			chat.New(registry, assistantSvc).RegisterRoutes(api)
			stream.New(registry, assistantSvc, log).RegisterRoutes(api)
			ws.New(registry, assistantSvc, cfg.Server.AllowedOrigins, log).RegisterRoutes(api)
		})
	})

	return r
}
