// File: internal/infra/api/server.go
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server hosts the REST surface: the authenticated v1 API, the provider
// webhooks and the operational endpoints.
type Server struct {
	httpSrv *http.Server
	log     *zerolog.Logger
}

type Deps struct {
	Handlers  *Handlers
	Webhooks  *Webhooks
	JWTSecret string
	Health    func(ctx context.Context) error

	// optional per-user limiter for the scan route
	ScanLimiter RateLimiter
	ScanKeyFn   func(userID string) string
}

func NewServer(addr string, deps Deps, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "http-server").Logger()

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(RequestLog(&l))
	r.Use(Recover(&l))
	r.Use(middleware.Timeout(30 * time.Second))

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(Auth(deps.JWTSecret))
			r.Post("/payments/initiate", deps.Handlers.InitiatePayment)
			r.Post("/payments/confirm", deps.Handlers.ConfirmPayment)
			r.Get("/subscription", deps.Handlers.GetSubscription)
			r.Get("/subscription/price", deps.Handlers.GetPrice)
			r.Post("/subscription/cancel", deps.Handlers.CancelSubscription)
			r.Post("/subscription/extend-trial", deps.Handlers.ExtendTrial)
			if deps.ScanLimiter != nil {
				r.With(RateLimit(deps.ScanLimiter, deps.ScanKeyFn, 30, time.Minute)).Post("/scan", deps.Handlers.Scan)
			} else {
				r.Post("/scan", deps.Handlers.Scan)
			}
		})

		// Webhooks authenticate by signature, not by bearer token.
		r.Post("/webhooks/stripe", deps.Webhooks.Stripe)
		r.Post("/webhooks/moko", deps.Webhooks.Moko)
	})

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if deps.Health != nil {
			if err := deps.Health(req.Context()); err != nil {
				writeJSONError(w, http.StatusServiceUnavailable, "unhealthy")
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	return &Server{
		httpSrv: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: &l,
	}
}

// Handler exposes the routed handler for httptest harnesses.
func (s *Server) Handler() http.Handler { return s.httpSrv.Handler }

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpSrv.Addr).Msg("http server listening")
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.httpSrv.Shutdown(ctx)
}
