package server

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// OverallService is the health service name covering the whole process.
const OverallService = ""

// ListenerService returns the health service name for the listener on port.
func ListenerService(port int) string {
	return "poetry." + strconv.Itoa(port)
}

// Admin is the gRPC admin endpoint. It exposes the standard health service,
// one entry per poetry listener, plus reflection for grpcurl.
type Admin struct {
	addr       string
	logger     *slog.Logger
	grpcServer *grpc.Server
	health     *health.Server
	lis        net.Listener
}

// NewAdmin creates an admin endpoint for addr.
func NewAdmin(addr string, logger *slog.Logger) *Admin {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Admin{
		addr:   addr,
		logger: logger,
		health: health.NewServer(),
	}
}

// Start binds the admin listener and serves in the background.
func (a *Admin) Start() error {
	lis, err := net.Listen("tcp", a.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.addr, err)
	}
	a.lis = lis

	a.grpcServer = grpc.NewServer()
	healthpb.RegisterHealthServer(a.grpcServer, a.health)

	// Enable gRPC reflection for grpcurl
	reflection.Register(a.grpcServer)

	a.logger.Info("admin.starting", "addr", lis.Addr().String())

	go func() {
		if err := a.grpcServer.Serve(lis); err != nil {
			a.logger.Error("admin.serve_failed", "addr", a.addr, "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address. Only valid after Start.
func (a *Admin) Addr() net.Addr {
	return a.lis.Addr()
}

// SetServing flips the health status of service.
func (a *Admin) SetServing(service string, serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	a.health.SetServingStatus(service, status)
}

// Stop marks every service as not serving and gracefully stops.
func (a *Admin) Stop() {
	a.health.Shutdown()
	if a.grpcServer != nil {
		a.logger.Info("admin.stopping", "addr", a.addr)
		a.grpcServer.GracefulStop()
	}
}
