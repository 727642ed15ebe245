package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/clinicaccess/pkg/audit"
	"github.com/platinummonkey/clinicaccess/pkg/httputil"
	"github.com/platinummonkey/clinicaccess/pkg/observability"
	"github.com/platinummonkey/clinicaccess/pkg/rbac"
)

// DefaultMaxBodyBytes caps request bodies when ServerOptions leaves it unset
const DefaultMaxBodyBytes int64 = 1 << 20

// ServerOptions configures the HTTP surface. Nil fields fall back to no-ops.
type ServerOptions struct {
	Logger       *observability.Logger
	Metrics      *observability.Metrics
	Audit        audit.Logger
	MaxBodyBytes int64
}

// Server represents the access-control API server
type Server struct {
	router  *mux.Router
	handler http.Handler
}

// NewServer creates a new API server over enforcer
func NewServer(enforcer *rbac.Enforcer, opts ServerOptions) *Server {
	if opts.Logger == nil {
		opts.Logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	if opts.Audit == nil {
		opts.Audit = audit.NoOp()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFoundError(w, "route not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	// Route-aware middleware runs after mux has matched the route
	if opts.Metrics != nil {
		router.Use(observability.HTTPMetricsMiddleware(opts.Metrics))
	}
	router.Use(audit.Middleware(opts.Audit))

	NewHandlers(enforcer, opts.Metrics).RegisterRoutes(router)

	s := &Server{router: router}
	s.handler = httputil.Chain(
		httputil.RequestIDMiddleware(opts.Logger),
		httputil.LoggingMiddleware,
		observability.RecoveryMiddleware(opts.Logger),
		httputil.ContentTypeMiddleware,
		httputil.MaxBytesMiddleware(opts.MaxBodyBytes),
	)(router)
	return s
}

// Router exposes the underlying router, for tests and extra routes
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements the http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
