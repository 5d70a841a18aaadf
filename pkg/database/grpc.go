package database

import (
	"context"
	"fmt"
	"net"

	"media_pipeline/pkg/logger"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServer exposes grpc.health.v1.Health for one service name
type HealthServer struct {
	server  *grpc.Server
	health  *health.Server
	service string
}

// NewHealthServer create a health server, NOT_SERVING until SetServing(true)
func NewHealthServer(service string) *HealthServer {
	s := grpc.NewServer()
	h := health.NewServer()
	healthpb.RegisterHealthServer(s, h)

	hs := &HealthServer{server: s, health: h, service: service}
	hs.SetServing(false)
	return hs
}

// Serve blocks serving on lis until Stop
func (h *HealthServer) Serve(lis net.Listener) error {
	logger.Log.Info(fmt.Sprintf("health grpc listening on %s", lis.Addr()))
	if err := h.server.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return err
	}
	return nil
}

// SetServing flip the status of the service and of the server as a whole
func (h *HealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(h.service, status)
}

// Stop mark everything NOT_SERVING and stop the server
func (h *HealthServer) Stop() {
	h.health.Shutdown()
	h.server.GracefulStop()
}

// CreateGRPCClient create grpc client and wait until it is READY or ctx is done
func CreateGRPCClient(ctx context.Context, addr string) (*grpc.ClientConn, error) {
	client, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("create grpc client[%s]: %w", addr, err)
	}

	client.Connect()
	for {
		state := client.GetState()
		if state == connectivity.Ready {
			return client, nil
		}
		if !client.WaitForStateChange(ctx, state) {
			client.Close()
			return nil, fmt.Errorf("connection[%s] did not become READY: %w", addr, ctx.Err())
		}
	}
}

// ProbeHealth return nil when service at addr reports SERVING
func ProbeHealth(ctx context.Context, addr, service string) error {
	conn, err := CreateGRPCClient(ctx, addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return fmt.Errorf("health check %s: %w", service, err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("health check %s: %s", service, resp.GetStatus())
	}
	return nil
}
