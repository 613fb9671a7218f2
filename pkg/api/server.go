// Package api exposes the catalog over HTTP.
//
// Routes:
//
//	GET    /products                 direct store read
//	GET    /products-cached          cache-through listing (X-Cache: HIT|MISS)
//	GET    /products/search/{query}  case-insensitive search
//	GET    /products/{id}            single product
//	POST   /products                 create, invalidates the listing
//	PUT    /products/{id}            partial update, invalidates the listing
//	DELETE /products/{id}            delete, invalidates the listing
//	GET    /stats                    aggregate statistics
//	POST   /populate                 insert synthetic products
//	POST   /clear-cache              drop the cached listing
//	GET    /health                   store and cache probes
//	GET    /metrics                  Prometheus exposition
package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/Sternrassler/product-catalog/pkg/catalog"
	"github.com/Sternrassler/product-catalog/pkg/metrics"
)

// DefaultProbeTimeout bounds each dependency check of /health.
const DefaultProbeTimeout = 2 * time.Second

// CacheStatus reports the background view of cache connectivity.
type CacheStatus interface {
	Connected() bool
}

// Config holds the HTTP layer settings.
type Config struct {
	// ProbeTimeout bounds each dependency check of /health.
	ProbeTimeout time.Duration

	// MaxBodyBytes limits request bodies of mutations.
	MaxBodyBytes int64
}

// DefaultConfig returns the default HTTP layer settings.
func DefaultConfig() Config {
	return Config{
		ProbeTimeout: DefaultProbeTimeout,
		MaxBodyBytes: 1 << 20,
	}
}

// Server routes HTTP requests to the catalog service.
type Server struct {
	catalog     *catalog.Service
	cacheStatus CacheStatus
	config      Config
	logger      zerolog.Logger
	started     time.Time
	router      *mux.Router
}

// NewServer builds the router. cacheStatus may be nil, in which case /health
// always pings the cache.
func NewServer(svc *catalog.Service, cacheStatus CacheStatus, cfg Config, logger zerolog.Logger) *Server {
	def := DefaultConfig()
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = def.ProbeTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = def.MaxBodyBytes
	}

	s := &Server{
		catalog:     svc,
		cacheStatus: cacheStatus,
		config:      cfg,
		logger:      logger,
		started:     time.Now(),
		router:      mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	// The search route must be registered before /products/{id}.
	s.handle(http.MethodGet, "/products/search/{query}", s.handleSearch)
	s.handle(http.MethodGet, "/products-cached", s.handleListCached)
	s.handle(http.MethodGet, "/products", s.handleList)
	s.handle(http.MethodPost, "/products", s.handleCreate)
	s.handle(http.MethodGet, "/products/{id}", s.handleGet)
	s.handle(http.MethodPut, "/products/{id}", s.handleUpdate)
	s.handle(http.MethodDelete, "/products/{id}", s.handleDelete)
	s.handle(http.MethodGet, "/stats", s.handleStats)
	s.handle(http.MethodPost, "/populate", s.handlePopulate)
	s.handle(http.MethodPost, "/clear-cache", s.handleClearCache)
	s.handle(http.MethodGet, "/health", s.handleHealth)
	s.router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "route not found", Kind: string(catalog.KindNotFound)})
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed", Kind: string(catalog.KindValidation)})
	})
}

// handle registers h for method and path, instrumented under the route template.
func (s *Server) handle(method, path string, h http.HandlerFunc) {
	labels := prometheus.Labels{"route": path}
	instrumented := promhttp.InstrumentHandlerDuration(
		metrics.HTTPRequestDuration.MustCurryWith(labels),
		promhttp.InstrumentHandlerCounter(metrics.HTTPRequests.MustCurryWith(labels), h),
	)
	s.router.Handle(path, instrumented).Methods(method)
}

// Handler returns the root handler with request id, access logging and
// in-flight tracking applied.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	h = promhttp.InstrumentHandlerInFlight(metrics.HTTPInFlight, h)
	h = hlog.AccessHandler(s.logAccess)(h)
	h = RequestID()(h)
	h = hlog.NewHandler(s.logger)(h)
	return h
}

func (s *Server) logAccess(r *http.Request, status, size int, duration time.Duration) {
	event := hlog.FromRequest(r).Info()
	if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
		event = hlog.FromRequest(r).Debug()
	}
	event.
		Str("method", r.Method).
		Stringer("url", r.URL).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("Request handled")
}
