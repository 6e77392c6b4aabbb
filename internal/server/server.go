// Package server assembles the HTTP surface: the chi router, CORS, the
// shared middleware chain, and the admin-gated analysis routes.
package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	log "github.com/sirupsen/logrus"

	"rewards-engine/internal/common"
	"rewards-engine/internal/config"
	"rewards-engine/internal/features/analysis"
	"rewards-engine/internal/features/ledger"
	"rewards-engine/internal/server/middleware"
)

// Server owns the http.Server and the rate limiter's lifecycle.
type Server struct {
	httpServer *http.Server
	limiter    *middleware.RateLimiter
}

// New builds the router and wires every handler.
func New(cfg *config.Config, ledgerH *ledger.Handler, analysisH *analysis.Handler) *Server {
	limiter := middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)

	r := chi.NewRouter()
	r.Use(middleware.Recovery)
	r.Use(middleware.Logger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		common.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Limit(limiter))

		r.Post("/interactions", ledgerH.ProcessInteraction)
		r.Post("/interactions/onetime", ledgerH.ClaimOneTime)
		r.Delete("/points", ledgerH.DeductPoints)
		r.Get("/scores/{userID}", ledgerH.GetFinalScore)

		r.Route("/analysis", func(r chi.Router) {
			r.Use(middleware.RequireAdmin(cfg.AdminTokenHash))

			r.Post("/run", analysisH.TriggerRun)
			r.Get("/summary", analysisH.GetSummary)
			r.Get("/runs/{runID}", analysisH.GetRun)
			r.Post("/runs/{runID}/redeliver", analysisH.Redeliver)
		})
	})

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      r,
			ReadTimeout:  cfg.HTTPReadTimeout,
			WriteTimeout: cfg.HTTPWriteTimeout,
		},
		limiter: limiter,
	}
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	log.WithField("addr", s.httpServer.Addr).Info("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Close()
	return s.httpServer.Shutdown(ctx)
}
