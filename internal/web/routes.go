package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kozaktomas/fingerprint-matcher/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	identifyHandler := handlers.NewIdentifyHandler(s.deps.Scanner, s.logger)
	identitiesHandler := handlers.NewIdentitiesHandler(s.deps.Identities, s.logger)
	healthHandler := handlers.NewHealthHandler(s.deps.HealthChecks, s.logger)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.Health)

		r.Post("/identify", identifyHandler.Identify)

		r.Get("/identities", identitiesHandler.List)
		r.Get("/identities/count", identitiesHandler.Count)
	})

	if s.deps.Gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
	}
}
