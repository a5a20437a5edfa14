package zones

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) SetupRoutes() http.Handler {
	r := chi.NewRouter()

	r.Get("/search", h.SearchByAddress)
	r.Get("/resolve", h.ResolvePoint)

	return r
}
