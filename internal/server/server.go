package server

import (
	"context"
	"log/slog"
	"sort"

	"github.com/alfredjeanlab/rednight/internal/metrics"
	"github.com/alfredjeanlab/rednight/internal/model"
	"github.com/alfredjeanlab/rednight/internal/store"
)

// EnvironmentService is the environment surface the transports need.
type EnvironmentService interface {
	Create(ctx context.Context, in model.CreateEnvironment) (*model.Environment, error)
	Get(ctx context.Context, id int64) (*model.Environment, error)
	List(ctx context.Context, q model.PageQuery) (*model.Page[*model.Environment], error)
	Delete(ctx context.Context, id int64) error
}

// ConfigService is the config surface the transports need.
type ConfigService interface {
	Create(ctx context.Context, envID int64, in model.CreateConfig) (*model.Config, error)
	Get(ctx context.Context, envID, id int64) (*model.Config, error)
	List(ctx context.Context, envID int64, q model.PageQuery) (*model.Page[*model.ConfigSummary], error)
	Delete(ctx context.Context, envID, id int64) error
}

// Server adapts the coordinators to HTTP and gRPC.
type Server struct {
	envs    EnvironmentService
	configs ConfigService
	checks  map[string]store.Pinger
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithCheck registers a dependency that the health endpoints ping.
func WithCheck(name string, p store.Pinger) Option {
	return func(s *Server) { s.checks[name] = p }
}

// WithMetrics sets the registry request metrics are recorded in and /metrics serves.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New returns a Server backed by the given coordinators.
func New(envs EnvironmentService, configs ConfigService, opts ...Option) *Server {
	s := &Server{
		envs:    envs,
		configs: configs,
		checks:  make(map[string]store.Pinger),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "server")
	return s
}

// CheckResult is the outcome of pinging one dependency.
type CheckResult struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Check pings every registered dependency, in name order, and reports
// whether all of them are reachable.
func (s *Server) Check(ctx context.Context) ([]CheckResult, bool) {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	healthy := true
	results := make([]CheckResult, 0, len(names))
	for _, name := range names {
		res := CheckResult{Name: name, OK: true}
		if err := s.checks[name].Ping(ctx); err != nil {
			res.OK = false
			res.Error = err.Error()
			healthy = false
		}
		results = append(results, res)
	}
	return results, healthy
}
