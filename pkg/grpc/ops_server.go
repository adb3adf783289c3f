// Package grpc exposes the standard gRPC health service next to the HTTP
// server and probes it from the ops CLI.
package grpc

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/example/storefront/pkg/config"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Check probes one backing service.
type Check func(ctx context.Context) error

const (
	checkInterval = 15 * time.Second
	checkTimeout  = 3 * time.Second
)

// OpsServer reports SERVING while every check passes. The overall status is
// published under the empty service name and each check under its own name.
type OpsServer struct {
	config *config.OpsConfig
	checks map[string]Check
	logger *zap.Logger

	health *health.Server
	srv    *grpc.Server

	stopOnce sync.Once
	done     chan struct{}
}

func NewOpsServer(cfg *config.OpsConfig, checks map[string]Check, logger *zap.Logger) *OpsServer {
	s := &OpsServer{
		config: cfg,
		checks: checks,
		logger: logger.Named("ops"),
		health: health.NewServer(),
		srv:    grpc.NewServer(),
		done:   make(chan struct{}),
	}
	healthpb.RegisterHealthServer(s.srv, s.health)
	reflection.Register(s.srv)
	return s
}

func (s *OpsServer) Start() error {
	addr := s.config.Addr()
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.logger.Info("Ops server listening", zap.String("address", addr))
	return s.Serve(lis)
}

// Serve runs the checks in the background and blocks serving lis.
func (s *OpsServer) Serve(lis net.Listener) error {
	s.Refresh(context.Background())
	go s.watch()
	return s.srv.Serve(lis)
}

// Refresh runs every check once and publishes the result.
func (s *OpsServer) Refresh(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	overall := healthpb.HealthCheckResponse_SERVING
	for name, check := range s.checks {
		status := healthpb.HealthCheckResponse_SERVING
		if err := check(ctx); err != nil {
			s.logger.Warn("Health check failed", zap.String("component", name), zap.Error(err))
			status = healthpb.HealthCheckResponse_NOT_SERVING
			overall = status
		}
		s.health.SetServingStatus(name, status)
	}
	s.health.SetServingStatus("", overall)
}

func (s *OpsServer) watch() {
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.Refresh(context.Background())
		}
	}
}

// Stop marks the service as shutting down and drains in-flight calls.
func (s *OpsServer) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.health.Shutdown()
		s.srv.GracefulStop()
	})
}
