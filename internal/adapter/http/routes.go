package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all routes on the given chi router. mcp, when
// non-nil, is served under /mcp.
func MountRoutes(r chi.Router, h *Handlers, mcp http.Handler) {
	r.Get("/health", h.Health)
	r.Get("/task/{task_id}", h.GetTask)
	r.Get("/ws/{task_id}", h.TaskSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})
		r.Post("/tasks", h.SubmitTask)
		r.Get("/tasks/{task_id}", h.GetTask)
	})

	if mcp != nil {
		r.Handle("/mcp", mcp)
		r.Handle("/mcp/*", mcp)
	}
}
