// internal/app/features/quiz/routes.go
package quiz

import "github.com/go-chi/chi/v5"

// Register adds the quiz routes to a router mounted at /parties.
func Register(r chi.Router, h *Handler) {
	r.Post("/{code}/answers", h.Submit)
}
