package server

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	"jobscout/internal/background"
	"jobscout/internal/config"
	"jobscout/internal/discovery"
	"jobscout/internal/grpc/interceptors"
	"jobscout/internal/logging"
)

// Discoverer runs one synchronous discovery
type Discoverer interface {
	Run(ctx context.Context, input discovery.RunInput) (*discovery.AggregationReport, error)
}

// RunManager queues and reports asynchronous runs
type RunManager interface {
	SubmitRun(ctx context.Context, input discovery.RunInput) (string, error)
	GetRun(ctx context.Context, runID string) (*background.RunRecord, error)
}

type Server struct {
	cfg        *config.Config
	discoverer Discoverer
	runs       RunManager
	logger     logging.Logger
	grpcServer *grpc.Server
	health     *health.Server
}

func NewServer(cfg *config.Config, discoverer Discoverer, runs RunManager, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	s := &Server{
		cfg:        cfg,
		discoverer: discoverer,
		runs:       runs,
		logger:     logger,
		health:     health.NewServer(),
	}

	s.grpcServer = grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    30 * time.Second,
			Timeout: 5 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.MaxRecvMsgSize(4*1024*1024),
		grpc.MaxSendMsgSize(16*1024*1024),
		grpc.ChainUnaryInterceptor(
			interceptors.RecoveryInterceptor(logger),
			interceptors.LoggingInterceptor(logger),
		),
		grpc.ChainStreamInterceptor(
			interceptors.StreamRecoveryInterceptor(logger),
			interceptors.StreamLoggingInterceptor(logger),
		),
	)

	RegisterDiscoveryServiceServer(s.grpcServer, s)
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	reflection.Register(s.grpcServer)
	return s
}

// Start serves on lis until Stop
func (s *Server) Start(lis net.Listener) error {
	s.logger.Info("Starting gRPC server", map[string]interface{}{
		"address": lis.Addr().String(),
	})
	return s.grpcServer.Serve(lis)
}

// Stop marks the service NOT_SERVING and drains in-flight calls until ctx expires
func (s *Server) Stop(ctx context.Context) {
	s.logger.Info("Shutting down gRPC server...", map[string]interface{}{})
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.grpcServer.Stop()
	}
}
