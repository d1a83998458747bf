package server

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// HealthService is the grpc.health.v1 service name that reports the
// aggregate status; each registered check is also reported under its own name.
const HealthService = "rednight"

// NewGRPCServer creates a gRPC server with standard interceptors, registers
// the health service and reflection, and returns the server ready to serve
// along with the health server so callers can drive its status.
func (s *Server) NewGRPCServer() (*grpc.Server, *health.Server) {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			s.unaryRecover,
			s.unaryObserve,
		),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	return srv, hs
}

// UpdateHealth pings every check once and publishes the result to hs.
func (s *Server) UpdateHealth(ctx context.Context, hs *health.Server) bool {
	checks, healthy := s.Check(ctx)
	for _, c := range checks {
		hs.SetServingStatus(c.Name, servingStatus(c.OK))
		if !c.OK {
			s.logger.Warn("health check failed", "check", c.Name, "error", c.Error)
		}
	}
	hs.SetServingStatus("", servingStatus(healthy))
	hs.SetServingStatus(HealthService, servingStatus(healthy))
	return healthy
}

// WatchHealth refreshes hs every interval until ctx is cancelled.
func (s *Server) WatchHealth(ctx context.Context, hs *health.Server, interval time.Duration) {
	s.UpdateHealth(ctx, hs)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.UpdateHealth(ctx, hs)
		}
	}
}

func servingStatus(ok bool) healthpb.HealthCheckResponse_ServingStatus {
	if ok {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}
