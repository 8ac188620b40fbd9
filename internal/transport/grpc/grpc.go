// Package grpc exposes the standard gRPC health service so that gRPC-aware
// orchestrators can probe the daemon the same way /readyz does.
package grpc

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the service reported alongside the overall "" status.
const ServiceName = "interviewdesk"

// Transport serves grpc.health.v1.Health.
type Transport struct {
	port   int
	server *grpc.Server
	health *health.Server
}

// New creates a new gRPC transport on the given port. Both services start
// as NOT_SERVING until SetReady(true).
func New(port int) *Transport {
	t := &Transport{
		port:   port,
		server: grpc.NewServer(),
		health: health.NewServer(),
	}
	healthpb.RegisterHealthServer(t.server, t.health)
	reflection.Register(t.server)
	t.SetReady(false)
	return t
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "grpc" }

// SetReady switches the reported serving status.
func (t *Transport) SetReady(ready bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ready {
		status = healthpb.HealthCheckResponse_SERVING
	}
	t.health.SetServingStatus("", status)
	t.health.SetServingStatus(ServiceName, status)
}

// Listen starts the gRPC server.
func (t *Transport) Listen(ctx context.Context) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", t.port))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	return t.Serve(ctx, lis)
}

// Serve serves on an existing listener until ctx is cancelled.
func (t *Transport) Serve(ctx context.Context, lis net.Listener) error {
	slog.Info("grpc health service listening", "addr", lis.Addr().String())

	go func() {
		<-ctx.Done()
		slog.Info("grpc transport shutting down")
		t.Close()
	}()

	if err := t.server.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return fmt.Errorf("grpc serve: %w", err)
	}
	return nil
}

// Close marks the services down and gracefully stops the server.
func (t *Transport) Close() error {
	t.health.Shutdown()
	t.server.GracefulStop()
	return nil
}
