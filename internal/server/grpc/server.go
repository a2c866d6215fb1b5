// Package grpc exposes the standard gRPC health service. Orchestrators probe
// it to learn whether the database and cache behind the chat gateway are
// reachable.
package grpc

import (
	"context"
	"net"
	"sort"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dmitrijs2005/healthchat/internal/logging"
)

// Pinger is a dependency whose reachability decides the serving status.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DefaultProbeInterval is how often dependencies are pinged.
const DefaultProbeInterval = 15 * time.Second

type GRPCServer struct {
	address  string
	logger   logging.Logger
	checks   map[string]Pinger
	interval time.Duration
	health   *health.Server
}

// NewGRPCServer builds a health server. Each check is reported under its own
// service name; the empty service name is SERVING only while all checks pass.
func NewGRPCServer(a string, l logging.Logger, checks map[string]Pinger, interval time.Duration) *GRPCServer {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	return &GRPCServer{
		address:  a,
		logger:   l.With("module", "grpc_server"),
		checks:   checks,
		interval: interval,
		health:   health.NewServer(),
	}
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve runs the server on lis until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.loggingInterceptor),
		grpc.ChainStreamInterceptor(s.streamLoggingInterceptor),
	)
	healthpb.RegisterHealthServer(srv, s.health)

	s.probe(ctx)

	go func() {
		t := time.NewTicker(s.interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				s.logger.Info(ctx, "Stopping gPRC server...")
				s.health.Shutdown()
				srv.GracefulStop()
				return
			case <-t.C:
				s.probe(ctx)
			}
		}
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}
	return nil
}

// probe pings every dependency and publishes the result.
func (s *GRPCServer) probe(ctx context.Context) {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	overall := healthpb.HealthCheckResponse_SERVING
	for _, name := range names {
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := s.checks[name].Ping(pctx)
		cancel()

		st := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			st = healthpb.HealthCheckResponse_NOT_SERVING
			overall = st
			s.logger.Warn(ctx, "health probe failed", "check", name, "error", err)
		}
		s.health.SetServingStatus(name, st)
	}
	s.health.SetServingStatus("", overall)
}
