package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (h *Handler) Init() *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(h.requestLogger)

	// routes without authorization
	router.Group(func(r chi.Router) {
		r.Post("/api/auth/magic-link", h.requestMagicLink)
		r.Post("/api/auth/verify", h.verifyMagicLink)
	})

	// routes behind a session token
	router.Group(func(r chi.Router) {
		r.Use(h.auth)
		r.Get("/api/devices", h.listDevices)
		r.Post("/api/devices", h.registerDevice)
		r.Delete("/api/devices/{deviceID}", h.removeDevice)
	})

	// The relay authenticates in-band with an auth message, not here.
	router.Get("/ws", h.relay.ServeWS)

	return router
}
