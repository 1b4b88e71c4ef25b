// Package server exposes a single lane grid over HTTP.
//
// All engine access is serialised behind one mutex; the engine itself is not
// safe for concurrent use. Placement events are streamed to clients as
// Server-Sent Events, and POST /v1/place runs the stateless cached pipeline
// without touching the shared grid.
package server

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/matzehuels/lanegrid/pkg/cache"
	"github.com/matzehuels/lanegrid/pkg/config"
	"github.com/matzehuels/lanegrid/pkg/grid"
	"github.com/matzehuels/lanegrid/pkg/pipeline"
)

const (
	// maxBodyBytes bounds every request body.
	maxBodyBytes = 1 << 20

	// eventBuffer is the subscription capacity of one SSE client.
	eventBuffer = 32

	shutdownTimeout = 10 * time.Second
)

// Options configures a Server.
type Options struct {
	// Items seeds the grid, in registration order.
	Items []any
	// Config is applied over the defaults when the grid is built.
	Config *config.Partial
	// Defaults are the values absent config keys inherit. Zero means
	// config.Default().
	Defaults *config.Config

	MaxDisplacements int
	CompactOnReload  bool

	// Cache stores POST /v1/place results, keyed under the grid's current
	// namespace. Nil disables caching. The server closes it on shutdown.
	Cache cache.Cache
	// Gatherer backs GET /metrics. Nil means the default registry.
	Gatherer prometheus.Gatherer
	Logger   *log.Logger
}

// Server owns one grid and the HTTP routes over it.
type Server struct {
	mu     sync.Mutex
	engine *grid.Engine

	runner    *pipeline.Runner
	gatherer  prometheus.Gatherer
	logger    *log.Logger
	router    chi.Router
	startTime time.Time
}

// New builds the grid from opts and registers the routes.
func New(opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	engineOpts := []grid.Option{
		grid.WithLogger(logger.WithPrefix("grid")),
		grid.WithMaxDisplacements(opts.MaxDisplacements),
	}
	if opts.Defaults != nil {
		engineOpts = append(engineOpts, grid.WithDefaults(*opts.Defaults))
	}
	if opts.CompactOnReload {
		engineOpts = append(engineOpts, grid.WithCompactOnReload())
	}
	eng, err := grid.New(opts.Items, opts.Config, engineOpts...)
	if err != nil {
		return nil, err
	}

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		engine:    eng,
		gatherer:  gatherer,
		logger:    logger,
		startTime: time.Now(),
	}
	s.runner = pipeline.NewRunner(opts.Cache, namespaceKeyer{s}, logger)
	s.registerRoutes()
	return s, nil
}

// NamespaceKeyer scopes placement cache keys by a grid namespace so that
// servers sharing one Redis do not read each other's entries.
func NamespaceKeyer(namespace []string) cache.Keyer {
	return cache.NewScopedKeyer(cache.NewDefaultKeyer(), "ns:"+strings.Join(namespace, ":")+":")
}

// namespaceKeyer reads the grid namespace for every key, so a namespace
// changed through PUT /v1/config applies to the next placement.
type namespaceKeyer struct{ s *Server }

func (k namespaceKeyer) PlacementKey(documentHash string, opts cache.PlacementKeyOpts) string {
	var ns []string
	_ = k.s.withEngine(func(e *grid.Engine) error {
		ns = e.Config().Namespace
		return nil
	})
	return NamespaceKeyer(ns).PlacementKey(documentHash, opts)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
// Open event streams end with ctx.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return s.runner.Close()
}

// withEngine runs fn while holding the engine lock.
func (s *Server) withEngine(fn func(e *grid.Engine) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.engine)
}
