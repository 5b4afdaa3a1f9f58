package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/contractlens/contractlens/internal/analyze"
	apperrors "github.com/contractlens/contractlens/internal/errors"
	"github.com/contractlens/contractlens/internal/observability"
	"github.com/contractlens/contractlens/internal/ratelimit"
	"github.com/contractlens/contractlens/internal/server/handlers"
	servermw "github.com/contractlens/contractlens/internal/server/middleware"
	"github.com/contractlens/contractlens/internal/stats"
)

// apiTimeout caps one API request end to end, OCR and model call included.
const apiTimeout = 60 * time.Second

// Options wires the server's collaborators.
type Options struct {
	Host string
	Port int

	Analyzer *analyze.Analyzer
	Stats    *stats.Store
	Limiter  *ratelimit.Limiter

	AdminPassword string
	QuotaWindow   time.Duration
	LoginLimit    int
	LoginWindow   time.Duration
	RollupDays    int

	Version string

	// HealthCheckers are registered on the health endpoint by name.
	HealthCheckers map[string]handlers.HealthChecker
}

// Server is the HTTP surface of the service.
type Server struct {
	router *chi.Mux
	server *http.Server
	host   string
	port   int

	analyzeAPI *handlers.AnalyzeAPI
	adminAPI   *handlers.AdminAPI
	health     *handlers.HealthManager
}

// New creates a new HTTP server instance
func New(opts Options) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)

	// Custom middleware order: RequestID early for correlation, metrics
	// around everything, recovery outermost.
	r.Use(servermw.RequestID)
	r.Use(servermw.RequestMetrics)
	r.Use(servermw.SecurityHeaders)
	r.Use(servermw.Recovery)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewNotFoundError("The requested resource was not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewMethodNotAllowedError("The requested method is not allowed for this resource"))
	})

	health := handlers.NewHealthManager(opts.Version)
	for name, checker := range opts.HealthCheckers {
		health.RegisterChecker(name, checker)
	}

	s := &Server{
		router: r,
		host:   opts.Host,
		port:   opts.Port,
		analyzeAPI: &handlers.AnalyzeAPI{
			Analyzer:    opts.Analyzer,
			QuotaWindow: opts.QuotaWindow,
		},
		adminAPI: &handlers.AdminAPI{
			Password:    opts.AdminPassword,
			Sessions:    handlers.NewAdminSessions(handlers.DefaultSessionTTL),
			Stats:       opts.Stats,
			Limiter:     opts.Limiter,
			LoginLimit:  opts.LoginLimit,
			LoginWindow: opts.LoginWindow,
			RollupDays:  opts.RollupDays,
		},
		health: health,
	}

	handlers.SetHTTPErrorResponder(HandleError)

	s.registerRoutes()

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	observability.ServerLogger.Info("Starting HTTP server",
		zap.String("host", s.host),
		zap.Int("port", s.port),
		zap.String("addr", addr))

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	observability.ServerLogger.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Handler exposes the underlying router for testing and instrumentation
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the server port for testing
func (s *Server) Port() int {
	return s.port
}
