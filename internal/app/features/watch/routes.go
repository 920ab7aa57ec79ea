// internal/app/features/watch/routes.go
package watch

import "github.com/go-chi/chi/v5"

// Register adds the watch route to a router mounted at /parties.
func Register(r chi.Router, h *Handler) {
	r.Get("/{code}/watch", h.Serve)
}
