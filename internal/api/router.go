// Package api exposes the engine's operations over HTTP.
package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/rodrick-mpofu/teachback-ai/internal/engine"
	"github.com/rodrick-mpofu/teachback-ai/internal/logger"
)

// NewRouter creates the chi router with all routes and middleware.
// defaultOwner is used when a create request names no owner.
func NewRouter(eng *engine.Engine, defaultOwner string, log *logger.Logger) *chi.Mux {
	log = logger.OrNop(log).With("component", "api")
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(Logger(log))
	r.Use(Recovery(log))

	healthH := NewHealthHandler(eng)
	sessionH := NewSessionHandler(eng, defaultOwner)
	reviewH := NewReviewHandler(eng)
	learnerH := NewLearnerHandler(eng)

	r.Get("/health", healthH.Health)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", sessionH.Create)
		r.Get("/{id}", sessionH.Summary)
		r.Delete("/{id}", sessionH.Teardown)
		r.Post("/{id}/turns", sessionH.SubmitTurn)
		r.Post("/{id}/complete", sessionH.Complete)
		r.Get("/{id}/analytics", sessionH.LatestAnalytics)
	})

	r.Get("/analytics/{handle}", sessionH.PollAnalytics)

	r.Route("/learners/{owner}", func(r chi.Router) {
		r.Get("/sessions", learnerH.ListSessions)
		r.Get("/stats", learnerH.Stats)
		r.Get("/graph", learnerH.Graph)

		r.Route("/reviews", func(r chi.Router) {
			r.Post("/", reviewH.Record)
			r.Get("/due", reviewH.Due)
			r.Get("/schedule", reviewH.Schedule)
			r.Get("/stats", reviewH.Stats)
			r.Get("/suggest", reviewH.Suggest)
		})
	})

	return r
}
