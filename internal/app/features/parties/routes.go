// internal/app/features/parties/routes.go
package parties

import "github.com/go-chi/chi/v5"

// Register adds the party lifecycle routes to a router mounted at
// /parties.
func Register(r chi.Router, h *Handler) {
	r.Post("/", h.Create)
	r.Get("/{code}", h.Get)
	r.Post("/{code}/join", h.Join)
	r.Post("/{code}/start", h.Start)
}
