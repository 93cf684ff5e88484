package persona

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/beacon/internal/model/persona"
	"github.com/zhouzirui/beacon/internal/theme"
	"github.com/zhouzirui/beacon/pkg/utils"
)

// Handler persona服务的HTTP处理器
type Handler struct {
	personas persona.Store
}

// New 创建persona处理器
func New(personas persona.Store) *Handler {
	return &Handler{
		personas: personas,
	}
}

// RegisterRoutes 注册persona相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/personas", h.handleListPersonas)
	r.Get("/personas/{personaID}", h.handleGetPersona)
}

// RegisterThemeRoute serves the per-persona stylesheet outside the API prefix.
func (h *Handler) RegisterThemeRoute(r chi.Router) {
	r.Get("/theme.css", h.handleThemeCSS)
}

func (h *Handler) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.personas.List())
}

func (h *Handler) handleGetPersona(w http.ResponseWriter, r *http.Request) {
	p, err := h.personas.Lookup(chi.URLParam(r, "personaID"))
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, "persona not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, p)
}

func (h *Handler) handleThemeCSS(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("persona")
	if id == "" {
		id = h.personas.List()[0].ID
	}

	p, err := h.personas.Lookup(id)
	if errors.Is(err, persona.ErrUnknownPersona) {
		http.Error(w, "persona not found", http.StatusNotFound)
		return
	}

	css, err := theme.CSS(p.Theme)
	if err != nil {
		http.Error(w, "theme unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	_, _ = w.Write([]byte(css))
}
