package web

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/face-attendance/internal/web/handlers"
)

func (s *Server) setupRoutes(session *handlers.SessionHandler) {
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/events/stream", session.Stream)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Logger)
			r.Get("/status", session.Status)
			r.Get("/events", session.Events)
			r.Get("/resolve", session.Resolve)
		})
	})
}
