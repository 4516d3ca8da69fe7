// Package server provides the HTTP server and routing for Saver.
package server

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/fundbuilder/saver/internal/config"
	"github.com/fundbuilder/saver/internal/modules/analysis"
	"github.com/fundbuilder/saver/internal/modules/charts"
	"github.com/fundbuilder/saver/internal/modules/prices"
	"github.com/fundbuilder/saver/pkg/embedded"
)

// Config holds server configuration
type Config struct {
	Log             zerolog.Logger
	Cfg             *config.Config
	PriceRepo       *prices.Repository
	PriceImporter   *prices.Importer
	AnalysisService *analysis.Service
	ChartService    *charts.Service
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            *config.Config
	priceRepo      *prices.Repository
	priceImporter  *prices.Importer
	analysisSvc    *analysis.Service
	chartSvc       *charts.Service
	systemHandlers *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		cfg:            cfg.Cfg,
		priceRepo:      cfg.PriceRepo,
		priceImporter:  cfg.PriceImporter,
		analysisSvc:    cfg.AnalysisService,
		chartSvc:       cfg.ChartService,
		systemHandlers: NewSystemHandlers(cfg.Log),
	}

	s.setupMiddleware(cfg.Cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	// A whole analysis run (large window, large resolution) is CPU-bound and
	// bounded; the timeout is the caller-side safeguard around it.
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/prices", func(r chi.Router) {
			r.Get("/", s.handleGetPrices)
			r.Get("/summary", s.handleGetPricesSummary)
			r.Post("/import", s.handleImportPrices)
		})

		r.Route("/analysis", func(r chi.Router) {
			r.Post("/", s.handleAnalysis)
			r.Post("/returns", s.handleAnalysisReturns)
			r.Post("/density", s.handleAnalysisDensity)
			r.Post("/allocation", s.handleAnalysisAllocation)
		})

		r.Route("/charts", func(r chi.Router) {
			r.Get("/density.png", s.handleDensityChart)
			r.Get("/prices.png", s.handlePricesChart)
		})

		r.Get("/system/status", s.systemHandlers.HandleSystemStatus)
	})

	// Dashboard UI from the embedded filesystem.
	staticFS, err := fs.Sub(embedded.Files, "static")
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to create static filesystem from embedded files")
		return
	}
	s.router.Handle("/*", http.FileServer(http.FS(staticFS)))
}

// Start starts the HTTP server. Blocks until the server stops.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Router exposes the routing tree for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
