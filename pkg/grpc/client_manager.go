package grpc

import (
	"context"
	"fmt"
	"time"

	"github.com/example/storefront/pkg/discovery"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Resolver finds running instances of a service.
type Resolver interface {
	Discover(ctx context.Context, serviceName string) ([]*discovery.ServiceInstance, error)
}

// ClientManager manages the gRPC connection to a running storefront's ops
// endpoint.
type ClientManager struct {
	discovery Resolver
	logger    *zap.Logger

	conn         *grpc.ClientConn
	healthClient healthpb.HealthClient
}

// NewClientManager creates a client manager. disc may be nil, in which case
// the fallback address given to Connect is always used.
func NewClientManager(logger *zap.Logger, disc Resolver) *ClientManager {
	return &ClientManager{
		discovery: disc,
		logger:    logger,
	}
}

// Connect dials the first registered instance of serviceName, or fallback
// when none is registered.
func (m *ClientManager) Connect(ctx context.Context, serviceName, fallback string) error {
	target := m.resolve(ctx, serviceName, fallback)
	m.logger.Info("Connecting to ops endpoint", zap.String("target", target))

	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	conn, err := grpc.DialContext(dialCtx, target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", target, err)
	}

	m.conn = conn
	m.healthClient = healthpb.NewHealthClient(conn)
	return nil
}

func (m *ClientManager) resolve(ctx context.Context, serviceName, fallback string) string {
	if m.discovery == nil {
		return fallback
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	instances, err := m.discovery.Discover(ctx, serviceName)
	if err == nil && len(instances) > 0 {
		m.logger.Info("Discovered service", zap.String("service", serviceName), zap.String("address", instances[0].Addr()))
		return instances[0].Addr()
	}
	m.logger.Info("Using default address", zap.String("service", serviceName), zap.String("address", fallback))
	return fallback
}

// Health asks the remote health service for the status of component; an
// empty component is the overall status.
func (m *ClientManager) Health(ctx context.Context, component string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	if m.healthClient == nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("not connected")
	}
	resp, err := m.healthClient.Check(ctx, &healthpb.HealthCheckRequest{Service: component})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}

func (m *ClientManager) Close() error {
	if m.conn == nil {
		return nil
	}
	if err := m.conn.Close(); err != nil {
		return fmt.Errorf("ops connection close error: %w", err)
	}
	return nil
}
