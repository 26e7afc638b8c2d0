// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/okian/certify/pkg/logger"
	"github.com/rs/cors"
	"go.uber.org/atomic"
)

const maxBodyBytes = 1 << 20

var errEmptyBody = errors.New("empty body")

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	AttendeeDependencies
	FeedbackDependencies
	AdminDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	attendeeHandler *AttendeeHandler
	feedbackHandler *FeedbackHandler
	adminHandler    *AdminHandler

	corsOrigins []string
	ready       *atomic.Bool
	logger      logger.Logger
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithCORSOrigins sets the allowed browser origins. "*" allows any origin.
func WithCORSOrigins(origins ...string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.corsOrigins = origins
		}
	}
}

// WithLogger sets a custom logger for the handlers.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers. The server starts
// out not ready; call SetReady once dependencies are up.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		corsOrigins: []string{"*"},
		ready:       atomic.NewBool(false),
		logger:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.healthHandler = NewHealthHandler(s.ready)
	s.statsHandler = NewStatsHandler(statsProvider)
	s.attendeeHandler = NewAttendeeHandler(deps, s.logger)
	s.feedbackHandler = NewFeedbackHandler(deps, s.logger)
	s.adminHandler = NewAdminHandler(deps, s.logger)
	return s
}

// SetReady flips the readiness reported by /readyz.
func (s *Server) SetReady(ready bool) { s.ready.Store(ready) }

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/livez", s.healthHandler.HandleLive)
	r.Get("/readyz", s.healthHandler.HandleReady)
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	r.Post("/verify-email", MetricsMiddleware(s.attendeeHandler.HandleVerifyEmail, "verify_email"))
	r.Post("/generate-certificate", MetricsMiddleware(s.attendeeHandler.HandleGenerateCertificate, "generate_certificate"))
	r.Post("/send-certificate", MetricsMiddleware(s.attendeeHandler.HandleSendCertificate, "send_certificate"))
	r.Post("/feedback", MetricsMiddleware(s.feedbackHandler.HandleSubmit, "feedback"))

	r.Route("/admin", func(r chi.Router) {
		r.Post("/login", MetricsMiddleware(s.adminHandler.HandleLogin, "admin_login"))
		r.Get("/feedback", MetricsMiddleware(s.adminHandler.HandleListFeedback, "admin_feedback"))
		r.Get("/stats", MetricsMiddleware(s.adminHandler.HandleStats, "admin_stats"))
		r.Delete("/feedback/{email}", MetricsMiddleware(s.adminHandler.HandleDeleteFeedback, "admin_delete_feedback"))
	})
}

// Router builds a chi router with the shared middleware stack and every
// API route registered.
func (s *Server) Router(ctx context.Context) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   s.corsOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
	}).Handler)
	s.Register(ctx, r)
	return r
}

// Body shapes shared by handlers.
type emailRequest struct {
	Email string `json:"email"`
}

type statusResponse struct {
	Status string `json:"status"`
	Token  string `json:"token,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the error envelope. detail is the short human-facing
// reason; message carries the full error chain.
func writeError(w http.ResponseWriter, status int, code string, err error, detail string) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	if detail == "" {
		detail = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg, Detail: detail})
}

// decodeJSON reads a single JSON object from the request body.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}
