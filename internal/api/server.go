// Package api provides the HTTP interface of the chart server: catalog
// browsing, package imports, pins, search, rendering, and the SSE event
// stream consumed by EFB clients.
package api

import (
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/chartbagapp/chartbag-server/internal/catalog"
	"github.com/chartbagapp/chartbag-server/internal/config"
	"github.com/chartbagapp/chartbag-server/internal/logger"
	"github.com/chartbagapp/chartbag-server/internal/pins"
	"github.com/chartbagapp/chartbag-server/internal/render"
	"github.com/chartbagapp/chartbag-server/internal/search"
	"github.com/chartbagapp/chartbag-server/internal/service"
	"github.com/chartbagapp/chartbag-server/internal/sse"
	"github.com/chartbagapp/chartbag-server/internal/store"
	"github.com/chartbagapp/chartbag-server/internal/validation"
)

// APIVersion is reported in the OpenAPI document.
const APIVersion = "1.0.0"

// Server holds dependencies for HTTP handlers.
type Server struct {
	catalog    *catalog.Catalog
	imports    *service.ImportService
	pins       *pins.Cache
	renders    *render.Cache
	thumbs     *render.Thumbnailer
	search     *search.Index
	store      *store.Store
	sseManager *sse.Manager
	sseHandler *sse.Handler
	validator  *validation.Validator
	cfg        *config.Config
	router     *chi.Mux
	api        huma.API
	log        *logger.Logger

	renderLimiter *RateLimiter
}

// NewServer creates the HTTP server with all routes configured. search,
// store, and sse components may be nil in tests; the affected endpoints
// degrade rather than panic.
func NewServer(cfg *config.Config, cat *catalog.Catalog, imports *service.ImportService, pinCache *pins.Cache, renders *render.Cache, thumbs *render.Thumbnailer, searchIndex *search.Index, meta *store.Store, sseManager *sse.Manager, sseHandler *sse.Handler, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Discard()
	}

	s := &Server{
		catalog:    cat,
		imports:    imports,
		pins:       pinCache,
		renders:    renders,
		thumbs:     thumbs,
		search:     searchIndex,
		store:      meta,
		sseManager: sseManager,
		sseHandler: sseHandler,
		validator:  validation.New(),
		cfg:        cfg,
		router:     chi.NewRouter(),
		log:        log,

		// Renders shell out to the PDF rasterizer, so they get a per-client
		// budget. Cached hits are cheap; the burst absorbs a page flip.
		renderLimiter: NewRateLimiter(120, time.Minute, 30),
	}

	s.setupMiddleware()

	humaConfig := huma.DefaultConfig("ChartBag API", APIVersion)
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)
	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.registerHealthRoutes()
	s.registerInstanceRoutes()
	s.registerAirportRoutes()
	s.registerChartRoutes()
	s.registerSearchRoutes()
	s.registerPinRoutes()
	s.registerImportRoutes()
	s.setupStreamRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops the server's background housekeeping. Shutting down the
// HTTP listener is the caller's job.
func (s *Server) Close() {
	s.renderLimiter.Stop()
}

// setupMiddleware configures the middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))

	// Browser-based EFB clients load charts from another origin.
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

// setupStreamRoutes mounts the endpoints that bypass the typed API layer:
// the SSE stream and binary chart content.
func (s *Server) setupStreamRoutes() {
	if s.sseHandler != nil {
		s.router.Get("/api/events", s.sseHandler.ServeHTTP)
	}

	s.router.Group(func(r chi.Router) {
		r.Use(RateLimitMiddleware(s.renderLimiter, s.log))
		r.Get("/api/charts/{id}/pdf", s.handleChartPDF)
		r.Get("/api/charts/{id}/thumbnail", s.handleChartThumbnail)
		r.Get("/api/charts/{id}/render", s.handleChartRender)
	})
}
