package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"finviz/internal/core"
	"finviz/internal/events"
	"finviz/internal/log"
	"finviz/internal/middleware/ratelimit"
	"finviz/internal/middleware/security"
	"finviz/internal/middleware/trace"
	"finviz/internal/views"

	"github.com/rs/cors"
)

// TransactionAPI is the service surface the handlers call.
type TransactionAPI interface {
	Create(ctx context.Context, t core.NewTransaction) (core.Transaction, error)
	Get(ctx context.Context, id string) (core.Transaction, error)
	Update(ctx context.Context, id string, p core.Patch) (core.UpdateResult, error)
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

// Options configure the transport.
type Options struct {
	Addr               string
	CORSAllowedOrigins []string
	RateLimitPerMinute int
	ChartOrder         core.SortOrder
	Logger             *log.Logger
}

type appMetrics struct {
	started time.Time
	created int64
	updated int64
	deleted int64
}

type Server struct {
	http.Server

	api        TransactionAPI
	dashboard  *views.Dashboard
	bus        *events.Bus
	chartOrder core.SortOrder

	logger     *log.Logger
	structured *log.StructuredLogger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	appMetrics       *appMetrics

	closing      chan struct{}
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server. Reads go through the dashboard snapshots; mutations go to
// api, which publishes invalidations on bus.
func NewServer(api TransactionAPI, dashboard *views.Dashboard, bus *events.Bus, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.ChartOrder == "" {
		opts.ChartOrder = core.SortChronological
	}
	logger := opts.Logger.WithComponent(log.ComponentHTTP)

	detector := security.NewDetector()
	s := &Server{
		api:              api,
		dashboard:        dashboard,
		bus:              bus,
		chartOrder:       opts.ChartOrder,
		logger:           logger,
		structured:       log.NewStructuredLogger(logger),
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(detector.ExtractClientIP),
		appMetrics:       &appMetrics{started: time.Now()},
		closing:          make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /transactions", s.handleListTransactions)
	mux.HandleFunc("POST /transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /transactions/monthly", s.handleMonthlyChart)
	mux.HandleFunc("GET /transactions/{id}", s.handleGetTransaction)
	mux.HandleFunc("PUT /transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /transactions/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("GET /events", s.handleEvents)

	limit := s.rateLimiter.Middleware(detector.ExtractClientIP,
		func(w http.ResponseWriter, r *http.Request) { TooManyRequestsError().Write(w) },
		http.MethodPost, http.MethodPut, http.MethodDelete)

	var handler http.Handler = mux
	handler = limit(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = detector.Middleware(handler)
	handler = log.RequestIDMiddleware(func(r *http.Request) string { return trace.GetRequestID(r.Context()) })(handler)
	handler = log.Middleware(logger)(handler)
	handler = s.traceMiddleware.Middleware(handler)
	if len(opts.CORSAllowedOrigins) > 0 {
		handler = newCORS(opts.CORSAllowedOrigins).Handler(handler)
	}

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return s
}

func newCORS(origins []string) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "HX-Request", "HX-Current-URL", "HX-Target", "HX-Trigger", trace.RequestIDHeader},
		ExposedHeaders: []string{"HX-Trigger", "Location", trace.RequestIDHeader},
		MaxAge:         600,
	})
}

// RateLimiter exposes the limiter so its cleanup loop can be supervised.
func (s *Server) RateLimiter() *ratelimit.Limiter {
	return s.rateLimiter
}

// Shutdown ends open event streams, then shuts the HTTP server down.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		close(s.closing)
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
