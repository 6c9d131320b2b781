package server

import (
	"context"
	"net/http"
	"path"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"healthflow/internal/agents"
	"healthflow/internal/observability"
)

// DefaultBodySizeLimit applies when Config.BodySizeLimit is empty.
const DefaultBodySizeLimit = "10M"

const (
	apiPrefix          = "/api"
	defaultMetricsPath = "/metrics"
	healthPath         = "/api/health"
)

// Server wraps the Echo server
type Server struct {
	echo    *echo.Echo
	handler *Handler
}

// Config holds server configuration options
type Config struct {
	MasterKey          string   // Optional: bearer token required on /api routes
	BodySizeLimit      string   // echo size syntax (default: 10M)
	CORSAllowedOrigins []string // default: *
	MetricsEnabled     bool     // Whether to expose the Prometheus endpoint
	MetricsEndpoint    string   // HTTP path for metrics endpoint (default: /metrics)
	// Metrics supplies the registry served on MetricsEndpoint.
	Metrics *observability.Metrics
}

// New creates a new HTTP server
func New(deps agents.Deps, cfg *Config) *Server {
	if cfg == nil {
		cfg = &Config{}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = httpErrorHandler

	handler := NewHandler(deps)

	authSkipPaths := []string{healthPath}
	metricsPath := resolveMetricsPath(cfg.MetricsEndpoint)
	if cfg.MetricsEnabled {
		authSkipPaths = append(authSkipPaths, metricsPath)
	}

	bodyLimit := cfg.BodySizeLimit
	if bodyLimit == "" {
		bodyLimit = DefaultBodySizeLimit
	}
	origins := cfg.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Global middleware stack (order matters)
	e.Use(RequestIDMiddleware())
	e.Use(requestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(bodyLimit))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		Skipper: func(c echo.Context) bool {
			return !strings.HasPrefix(c.Request().URL.Path, apiPrefix+"/")
		},
		AllowOrigins:  origins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{echo.HeaderContentType, echo.HeaderAuthorization, requestIDHeader},
		ExposeHeaders: []string{requestIDHeader},
	}))
	e.Use(AuthMiddleware(cfg.MasterKey, authSkipPaths))

	if cfg.MetricsEnabled && cfg.Metrics != nil {
		e.GET(metricsPath, echo.WrapHandler(cfg.Metrics.Handler()))
	}

	api := e.Group(apiPrefix)
	api.GET("/health", handler.Health)
	api.GET("/hrv/check", handler.CheckHRV)
	api.POST("/hrv/analyze", handler.AnalyzeHRV)
	api.POST("/medical/parse", handler.ParseMedical)
	api.POST("/medical/constraints", handler.MedicalConstraints)
	api.POST("/nutrition/analyze", handler.AnalyzeNutrition)
	api.POST("/nutrition/check", handler.AnalyzeNutrition)
	api.POST("/workout/generate", handler.GenerateWorkout)
	api.POST("/orchestrate", handler.Orchestrate)

	return &Server{
		echo:    e,
		handler: handler,
	}
}

// resolveMetricsPath normalizes the configured endpoint. Paths under /api
// would shadow agent routes, so they fall back to /metrics.
func resolveMetricsPath(endpoint string) string {
	if endpoint == "" {
		return defaultMetricsPath
	}
	p := path.Clean("/" + endpoint)
	if p == apiPrefix || strings.HasPrefix(p, apiPrefix+"/") {
		return defaultMetricsPath
	}
	return p
}

// Start starts the HTTP server on the given address
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP implements the http.Handler interface, allowing Server to be used with httptest
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
