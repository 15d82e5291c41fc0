package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kochabx/dbguard/log"
	"github.com/kochabx/dbguard/transport"
	"github.com/kochabx/dbguard/transport/http/metrics"
)

var _ transport.Server = (*Server)(nil)

const (
	defaultName = "http"
	defaultAddr = ":8080"
)

// Meta is the metadata of the server.
type Meta struct {
	Name string
}

type Server struct {
	meta    Meta
	options Options
	logger  *log.Logger
	server  *http.Server
}

type Option func(*Server)

func WithMeta(meta Meta) Option {
	return func(s *Server) {
		s.meta = meta
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetricsOptions(opt MetricsOption) Option {
	return func(s *Server) {
		if err := opt.init(); err != nil {
			s.logger.Error().Err(err).Msg("metrics endpoint disabled")
			return
		}
		s.options.Metrics = opt
	}
}

func WithHealthOptions(opt HealthOption) Option {
	return func(s *Server) {
		if err := opt.init(); err != nil {
			s.logger.Error().Err(err).Msg("health endpoint disabled")
			return
		}
		s.options.Health = opt
	}
}

func NewServer(addr string, handler http.Handler, opts ...Option) *Server {
	s := &Server{
		logger: log.G,
		server: &http.Server{
			Addr:    addr,
			Handler: handler,
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	additionalHandlers(s)

	return s
}

func (s *Server) Run() error {
	if s.meta.Name == "" {
		s.meta.Name = defaultName
	}

	if ok := transport.ValidateAddress(s.server.Addr); !ok {
		s.logger.Warn().Msgf("invalid address %s, using default address: %s", s.server.Addr, defaultAddr)
		s.server.Addr = defaultAddr
	}
	s.logger.Info().Msgf("%s server listening on %s", s.meta.Name, s.server.Addr)

	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler returns the root handler with the additional routes mounted
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func additionalHandlers(s *Server) {
	if r, ok := s.server.Handler.(*gin.Engine); ok {
		handleMetrics(s, r)
		handleHealth(s, r)
	}
}

func handleMetrics(s *Server, r *gin.Engine) {
	opt := s.options.Metrics
	if !opt.Enabled {
		return
	}

	prom := metrics.New(opt.Registry)
	if opt.EnabledGoCollector {
		prom.WithGoCollectorRuntimeMetrics()
	}
	if opt.EnabledBuildInfoCollector {
		prom.WithBuildInfoCollector()
	}

	r.GET(opt.Path, gin.WrapH(prom.Handler()))
}

func handleHealth(s *Server, r *gin.Engine) {
	opt := s.options.Health
	if !opt.Enabled {
		return
	}

	r.GET(opt.Path, healthHandler(opt.Reporter))
	r.GET(opt.Path+"/queries", queryStatsHandler(opt.Reporter, opt.DefaultLimit, opt.MaxLimit))
}
