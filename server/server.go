package server

import (
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/tliron/commonlog"

	"github.com/chazu/jitcalc/engine"
	"github.com/chazu/jitcalc/store"
)

var log = commonlog.GetLogger("jitcalc.server")

// Server exposes the evaluation service over the Connect protocol
// (HTTP/JSON).
type Server struct {
	mux  *http.ServeMux
	http *http.Server
}

// Option configures a Server.
type Option func(*config)

type config struct {
	defaultKind engine.Kind
	cache       *store.Cache
	history     *store.History
}

// WithDefaultEngine sets the engine used when a request does not name
// one. Without this option the process default applies.
func WithDefaultEngine(kind engine.Kind) Option {
	return func(c *config) { c.defaultKind = kind }
}

// WithCache sets the compiled-program cache shared by request engines.
func WithCache(cache *store.Cache) Option {
	return func(c *config) { c.cache = cache }
}

// WithHistory records every evaluation in the history database.
func WithHistory(history *store.History) Option {
	return func(c *config) { c.history = history }
}

// New creates a Server.
func New(opts ...Option) *Server {
	cfg := &config{defaultKind: engine.Default()}
	for _, opt := range opts {
		opt(cfg)
	}

	svc := NewEvalService(cfg.defaultKind, cfg.cache, cfg.history)

	mux := http.NewServeMux()
	mux.Handle(EvalProcedure, connect.NewUnaryHandler(
		EvalProcedure,
		svc.Evaluate,
		connect.WithCodec(jsonCodec{}),
	))

	return &Server{mux: mux}
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves until the listener fails.
func (s *Server) ListenAndServe(addr string) error {
	log.Infof("evaluation service listening on %s", addr)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.http.ListenAndServe()
}

// Stop shuts the listener down.
func (s *Server) Stop() error {
	if s.http != nil {
		return s.http.Close()
	}
	return nil
}
