/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package opserver provides the HTTP server for operating the relay:
// Prometheus metrics, health checks, the relay status and pprof profiling.
package opserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sourcegraph/conc/iter"

	"github.com/acronis/go-raterelay/log"
	"github.com/acronis/go-raterelay/service"
)

// Endpoints.
const (
	MetricsEndpoint = "/metrics"
	HealthEndpoint  = "/healthz"
	StatusEndpoint  = "/status"
	DebugEndpoint   = "/debug"
)

const healthCheckTimeout = 3 * time.Second

const contentTypeAppJSON = "application/json"

// HealthCheck reports an error if the component is unhealthy.
type HealthCheck func(ctx context.Context) error

// HealthResponse is the body of the health endpoint response.
type HealthResponse struct {
	Components map[string]bool `json:"components"`
}

// Opts represents options for Server.
type Opts struct {
	// HealthChecks are run on every request to the health endpoint, concurrently.
	HealthChecks map[string]HealthCheck

	// Status returns a JSON-serializable value served on the status endpoint.
	// If nil, the endpoint is not registered.
	Status func() interface{}

	// Gatherer is used for serving metrics. prometheus.DefaultGatherer is used if nil.
	Gatherer prometheus.Gatherer
}

// Server represents HTTP server for operating the service.
// It implements service.Unit interface.
type Server struct {
	URL             string
	HTTPServer      *http.Server
	Logger          log.FieldLogger
	shutdownTimeout time.Duration
	httpServerDone  chan struct{}
}

var _ service.Unit = (*Server)(nil)

// New creates a new operations HTTP server.
func New(cfg *Config, logger log.FieldLogger, opts Opts) *Server {
	httpServer := &http.Server{
		Addr:              cfg.Address,
		Handler:           NewRouter(logger, opts),
		ReadHeaderTimeout: time.Second * 5,
	}
	return &Server{
		URL:             "http://" + httpServer.Addr,
		HTTPServer:      httpServer,
		Logger:          logger,
		shutdownTimeout: time.Duration(cfg.ShutdownTimeout),
		httpServerDone:  make(chan struct{}),
	}
}

// NewRouter creates the HTTP handler serving all the operational endpoints.
func NewRouter(logger log.FieldLogger, opts Opts) http.Handler {
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	router := chi.NewRouter()
	router.Use(requestID, logging(logger, MetricsEndpoint, HealthEndpoint), chimiddleware.Recoverer)
	router.Method(http.MethodGet, MetricsEndpoint, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	router.Get(HealthEndpoint, healthHandler(opts.HealthChecks))
	if opts.Status != nil {
		router.Get(StatusEndpoint, func(rw http.ResponseWriter, r *http.Request) {
			writeJSON(rw, http.StatusOK, opts.Status(), logger)
		})
	}
	router.Mount(DebugEndpoint, chimiddleware.Profiler())
	return router
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(rw http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		results := iter.Map(names, func(name *string) bool {
			return checks[*name](ctx) == nil
		})
		resp := HealthResponse{Components: make(map[string]bool, len(names))}
		status := http.StatusOK
		for i, name := range names {
			resp.Components[name] = results[i]
			if !results[i] {
				status = http.StatusServiceUnavailable
			}
		}
		writeJSON(rw, status, resp, nil)
	}
}

func writeJSON(rw http.ResponseWriter, status int, v interface{}, logger log.FieldLogger) {
	rw.Header().Set("Content-Type", contentTypeAppJSON)
	rw.WriteHeader(status)
	if err := json.NewEncoder(rw).Encode(v); err != nil && logger != nil {
		logger.Error("error while writing response body", log.Error(err))
	}
}

// Start starts the HTTP server in a blocking way. Supposed this methods will be called in a separate goroutine.
// If a fatal error occurs, it's sent into passed fatalError channel and should be processed outside.
func (s *Server) Start(fatalError chan<- error) {
	defer close(s.httpServerDone)

	logger := s.Logger.With(log.String("address", s.HTTPServer.Addr))
	logger.Info("starting operations HTTP server...")
	if err := s.HTTPServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			logger.Info("operations HTTP server closed")
			return
		}
		logger.Error("operations HTTP server listening error", log.Error(err))
		fatalError <- err
	}
}

// Stop stops the HTTP server. In graceful mode, active requests are given the shutdown timeout to complete.
func (s *Server) Stop(gracefully bool) error {
	s.Logger.Info("closing operations HTTP server...", log.Bool("gracefully", gracefully))
	var err error
	if gracefully && s.shutdownTimeout > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		err = s.HTTPServer.Shutdown(ctx)
	} else {
		err = s.HTTPServer.Close()
	}
	if err != nil {
		s.Logger.Error("operations HTTP server closing error", log.Error(err))
		return err
	}
	<-s.httpServerDone // Wait closing of listener.
	return nil
}
