package suppliers

import "github.com/go-chi/chi/v5"

// MountRoutes registers /suppliers routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Show)
		r.Put("/", h.Update)
		r.Delete("/", h.Delete)
		r.Get("/lots", h.Lots)
		r.Get("/materials", h.Materials)
	})
}
