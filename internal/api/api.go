// Package api serves CareBear over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	twilioClient "github.com/twilio/twilio-go/client"

	"github.com/BTreeMap/CareBear/internal/messaging"
)

const (
	// DefaultAddr is the listen address used when none is configured.
	DefaultAddr = ":8080"
	// SessionCookieName carries the session key for browser clients.
	SessionCookieName = "carebear_session"

	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// Server holds the HTTP routes and the conversation they drive.
type Server struct {
	conv          *messaging.Conversation
	twilio        *messaging.ResponseHandler
	validator     *twilioClient.RequestValidator
	publicURL     string
	metrics       http.Handler
	health        func(ctx context.Context) error
	secureCookies bool
	router        chi.Router
}

// Opts holds the optional parts of a Server.
type Opts struct {
	Twilio          *messaging.ResponseHandler
	TwilioAuthToken string
	PublicURL       string
	Metrics         http.Handler
	HealthCheck     func(ctx context.Context) error
	SecureCookies   bool
}

// Option configures a Server.
type Option func(*Opts)

// WithTwilio mounts POST /twilio/webhook, answering through handler.
func WithTwilio(handler *messaging.ResponseHandler) Option {
	return func(o *Opts) {
		o.Twilio = handler
	}
}

// WithTwilioSignature enables X-Twilio-Signature checks. publicURL is the
// externally visible base URL Twilio posts to, e.g. "https://bot.example.org".
func WithTwilioSignature(authToken, publicURL string) Option {
	return func(o *Opts) {
		o.TwilioAuthToken = authToken
		o.PublicURL = publicURL
	}
}

// WithMetrics mounts GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(o *Opts) {
		o.Metrics = h
	}
}

// WithHealthCheck makes GET /healthz report 503 when check fails.
func WithHealthCheck(check func(ctx context.Context) error) Option {
	return func(o *Opts) {
		o.HealthCheck = check
	}
}

// WithSecureCookies marks the session cookie Secure.
func WithSecureCookies(secure bool) Option {
	return func(o *Opts) {
		o.SecureCookies = secure
	}
}

// NewServer builds the router over conv.
func NewServer(conv *messaging.Conversation, opts ...Option) *Server {
	var o Opts
	for _, opt := range opts {
		opt(&o)
	}

	s := &Server{
		conv:          conv,
		twilio:        o.Twilio,
		publicURL:     o.PublicURL,
		metrics:       o.Metrics,
		health:        o.HealthCheck,
		secureCookies: o.SecureCookies,
	}
	if o.TwilioAuthToken != "" {
		v := twilioClient.NewRequestValidator(o.TwilioAuthToken)
		s.validator = &v
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Post("/chat", s.chatHandler)
	r.Post("/resume", s.resumeHandler)
	r.Get("/why", s.whyHandler)
	r.Get("/sessions/{id}/turns", s.turnsHandler)
	r.Delete("/sessions/{id}", s.forgetHandler)
	if s.twilio != nil {
		r.Post("/twilio/webhook", s.twilioWebhookHandler)
	}
	r.Get("/healthz", s.healthHandler)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// requestLogger logs one line per request through slog.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Debug("Server request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
