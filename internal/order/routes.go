package order

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the order endpoints. All of them require a session.
func RegisterRoutes(r chi.Router, h *OrderHandler, requireAuth func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)

		r.Post("/orders", h.Place)
		r.Get("/orders", h.History)
		r.Get("/orders/{ref}", h.GetByRef)
	})
}
