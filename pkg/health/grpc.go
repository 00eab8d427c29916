package health

import (
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Server exposes grpc.health.v1.Health for load balancers and orchestrators.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	lis    net.Listener
}

// Run starts serving on addr in the background. All services start as
// NOT_SERVING until SetServing is called.
func Run(addr string, services ...string) (*Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	for _, svc := range services {
		hs.SetServingStatus(svc, healthpb.HealthCheckResponse_NOT_SERVING)
	}

	go func() {
		_ = gs.Serve(lis)
	}()
	return &Server{grpc: gs, health: hs, lis: lis}, nil
}

func (s *Server) Addr() string { return s.lis.Addr().String() }

func (s *Server) SetServing(service string, serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(service, status)
}

// GracefulStop flips every service to NOT_SERVING before draining RPCs.
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
