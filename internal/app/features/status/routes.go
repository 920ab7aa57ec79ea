// internal/app/features/status/routes.go
package status

import "github.com/go-chi/chi/v5"

// Register adds the status routes to a router mounted at /parties.
func Register(r chi.Router, h *Handler) {
	r.Get("/{code}/status", h.Status)
	r.Get("/{code}/results", h.Results)
	r.Post("/{code}/repair", h.Repair)
}
