package rpc

import (
	"errors"
	"net"

	"github.com/wfunc/diceserver/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// GatewayService is the health service name reported for the WebSocket gateway.
const GatewayService = "dice.Gateway"

// Server is the admin gRPC listener. It exposes the standard health service.
type Server struct {
	listener net.Listener
	address  string
	grpc     *grpc.Server
	health   *health.Server
}

// NewServer listens on addr. The gateway starts out NOT_SERVING.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	s := &Server{
		listener: listener,
		address:  listener.Addr().String(),
		grpc:     grpc.NewServer(),
		health:   health.NewServer(),
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	reflection.Register(s.grpc)
	s.health.SetServingStatus(GatewayService, healthpb.HealthCheckResponse_NOT_SERVING)
	return s, nil
}

// Addr is the bound listener address.
func (s *Server) Addr() string {
	return s.address
}

// Start serves until Stop is called.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	if err := s.grpc.Serve(s.listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		logger.Log.Errorf("RPC server stopped: %v", err)
	}
}

// SetServing flips the gateway health status.
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(GatewayService, status)
}

// Stop marks every service NOT_SERVING and drains in-flight calls.
func (s *Server) Stop() {
	logger.Log.Info("Stopping RPC server.")
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
