// Package ui serves the single-page chat client.
package ui

import (
	"embed"
	"net/http"

	"github.com/go-chi/chi/v5"
)

//go:embed static/index.html
var static embed.FS

// RegisterRoutes mounts the page at "/".
func RegisterRoutes(r chi.Router) {
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFileFS(w, r, static, "static/index.html")
	})
}
