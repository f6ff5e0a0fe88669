package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/scrum-assistant/backend/internal/handler/chat"
	profileHandler "github.com/zhouzirui/scrum-assistant/backend/internal/handler/profile"
	sessionlogHandler "github.com/zhouzirui/scrum-assistant/backend/internal/handler/sessionlog"
	"github.com/zhouzirui/scrum-assistant/backend/internal/handler/stream"
	widgetHandler "github.com/zhouzirui/scrum-assistant/backend/internal/handler/widget"
	middlewarePkg "github.com/zhouzirui/scrum-assistant/backend/internal/middleware"
	profileModel "github.com/zhouzirui/scrum-assistant/backend/internal/model/profile"
	chatService "github.com/zhouzirui/scrum-assistant/backend/internal/service/chat"
	"github.com/zhouzirui/scrum-assistant/backend/internal/storage"
	"github.com/zhouzirui/scrum-assistant/backend/internal/widget"
)

// Deps are the services the HTTP surface exposes.
type Deps struct {
	Profiles profileModel.Store
	Chat     *chatService.Service
	Hub      *widget.Hub
	Store    storage.Store
	Assets   http.Handler
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.ClientID)

	r.Route("/api", func(api chi.Router) {
		api.Use(middlewarePkg.CORS)

		profileHandler.New(deps.Profiles).RegisterRoutes(api)
		sessionlogHandler.New(deps.Store).RegisterRoutes(api)
		chat.New(deps.Chat).RegisterRoutes(api)
		widgetHandler.New(deps.Hub).RegisterRoutes(api)
		stream.New(deps.Hub).RegisterRoutes(api)
	})

	if deps.Assets != nil {
		r.Handle("/*", deps.Assets)
	}

	return r
}
