package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/beacon/internal/handler/chat"
	"github.com/zhouzirui/beacon/internal/handler/persona"
	"github.com/zhouzirui/beacon/internal/handler/stream"
	"github.com/zhouzirui/beacon/internal/handler/ui"
	"github.com/zhouzirui/beacon/internal/handler/ws"
	middlewarePkg "github.com/zhouzirui/beacon/internal/middleware"
	personaModel "github.com/zhouzirui/beacon/internal/model/persona"
	"github.com/zhouzirui/beacon/internal/observe"
	chatService "github.com/zhouzirui/beacon/internal/service/chat"
	"github.com/zhouzirui/beacon/pkg/utils"
)

// Options carries the optional parts of the router.
type Options struct {
	Metrics *observe.Metrics
	// MetricsHandler is mounted at /metrics when non-nil.
	MetricsHandler http.Handler
}

// NewRouter wires HTTP routes to core services.
func NewRouter(personas personaModel.Store, chatSvc *chatService.Service, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)
	r.Use(observe.Middleware(opts.Metrics))

	personaHandler := persona.New(personas)

	ui.RegisterRoutes(r)
	personaHandler.RegisterThemeRoute(r)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"sessions": chatSvc.Count(),
		})
	})
	if opts.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", opts.MetricsHandler)
	}

	r.Route("/api", func(api chi.Router) {
		personaHandler.RegisterRoutes(api)
		chat.New(chatSvc).RegisterRoutes(api)
		stream.New(chatSvc).RegisterRoutes(api)
		ws.New(chatSvc).RegisterRoutes(api)
	})

	return r
}
