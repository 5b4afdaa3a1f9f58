package server

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/contractlens/contractlens/internal/server/handlers"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	s.router.Get("/health", s.health.HealthHandler)
	s.router.Get("/version", handlers.VersionHandler)

	// Ops metrics (Prometheus format), proxied from the internal exporter
	s.router.Get("/metrics", MetricsHandler)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(apiTimeout))

		r.Post("/analyze", s.analyzeAPI.Analyze)
		r.Post("/ask", s.analyzeAPI.Ask)

		r.Post("/admin/login", s.adminAPI.Login)
		r.Post("/admin/logout", s.adminAPI.Logout)
		r.Get("/admin/metrics", s.adminAPI.Metrics)
	})
}
