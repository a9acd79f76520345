package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/michaelbrown/gauntlet/internal/catalog"
	"github.com/michaelbrown/gauntlet/internal/dispatch"
	"github.com/michaelbrown/gauntlet/internal/harness"
	"github.com/michaelbrown/gauntlet/internal/storage"
)

// Runner is the execution service the HTTP API exposes.
type Runner interface {
	ListRuntimes(ctx context.Context) ([]catalog.Runtime, error)
	ExecuteCode(ctx context.Context, req dispatch.Request) (dispatch.Execution, error)
	RunTests(ctx context.Context, req harness.Request) (harness.Result, error)
	RunTestsStream(ctx context.Context, req harness.Request, onExecution func(i int, e harness.ExecutionWithTest)) (harness.Result, error)
	Runs(ctx context.Context, opts storage.RunListOptions) ([]storage.Run, error)
	Run(ctx context.Context, id string) (*storage.Run, error)
}

// Options tunes the HTTP layer.
type Options struct {
	// RateLimit is requests per second per client IP on execution routes; 0 disables.
	RateLimit float64
	RateBurst int
	// LimiterIdle is how long an idle client's bucket survives a SweepLimiters call.
	LimiterIdle time.Duration
	// TrustProxy takes the client address from X-Forwarded-For or X-Real-IP.
	// Enable only behind a proxy that sets those headers.
	TrustProxy bool
}

// Server is the HTTP server for the gauntlet API.
type Server struct {
	svc     Runner
	opts    Options
	streams *StreamManager
	limiter *IPRateLimiter
	router  chi.Router
	http    *http.Server
	log     zerolog.Logger
}

// New creates a new Server.
func New(svc Runner, opts Options, log zerolog.Logger) *Server {
	s := &Server{
		svc:     svc,
		opts:    opts,
		streams: NewStreamManager(),
		router:  chi.NewRouter(),
		log:     log.With().Str("component", "server").Logger(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	// Global middleware
	if s.opts.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	limit := func(next http.Handler) http.Handler { return next }
	if s.opts.RateLimit > 0 {
		s.limiter = NewIPRateLimiter(rate.Limit(s.opts.RateLimit), s.opts.RateBurst)
		limit = s.limiter.Middleware
	}

	// Execution routes
	r.Group(func(r chi.Router) {
		r.Use(jsonContentType)
		r.Get("/runtimes", s.handleListRuntimes)
		r.With(limit).Post("/execute", s.handleExecute)
		r.With(limit).Post("/tests", s.handleRunTests)
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		// WebSocket (no JSON content-type)
		r.With(limit).Get("/runs/ws", s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(jsonContentType)
			r.Get("/runs", s.handleListRuns)
			r.Get("/runs/{id}", s.handleGetRun)
		})
	})
}

// jsonContentType sets Content-Type to application/json.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// SweepLimiters drops rate-limit buckets of clients idle longer than
// Options.LimiterIdle and returns how many were dropped.
func (s *Server) SweepLimiters() int {
	if s.limiter == nil {
		return 0
	}
	idle := s.opts.LimiterIdle
	if idle <= 0 {
		idle = DefaultLimiterIdle
	}
	n := s.limiter.Sweep(idle)
	if n > 0 {
		s.log.Debug().Int("removed", n).Msg("swept rate limiters")
	}
	return n
}

// ServeHTTP lets the server be mounted or tested without listening.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start begins listening on the given port.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Info().Str("addr", addr).Msg("gauntlet server starting")
	return s.http.ListenAndServe()
}

// Shutdown closes open streams and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Int("streams", s.streams.Len()).Msg("shutting down server")
	s.streams.CloseAll()

	if s.http == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return s.http.Shutdown(shutdownCtx)
}
