package grpcserver

import (
	"context"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/paventhan183/dr-appointment/libs/grpcx"
	"github.com/paventhan183/dr-appointment/libs/runtime"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const DefaultRefreshInterval = 10 * time.Second

// Health publishes the readiness checks through grpc.health.v1. The overall
// status ("") and the named service share one result.
type Health struct {
	srv      *health.Server
	service  string
	checks   []runtime.ReadyCheck
	interval time.Duration
	logger   *slog.Logger
	last     healthpb.HealthCheckResponse_ServingStatus
}

func NewHealth(service string, checks []runtime.ReadyCheck, interval time.Duration, logger *slog.Logger) *Health {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	h := &Health{
		srv:      health.NewServer(),
		service:  service,
		checks:   checks,
		interval: interval,
		logger:   logger,
		last:     healthpb.HealthCheckResponse_UNKNOWN,
	}
	h.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

func (h *Health) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.srv)
}

// Run refreshes the status immediately and then on every tick. On return
// every service reports NOT_SERVING.
func (h *Health) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			h.srv.Shutdown()
			return
		case <-ticker.C:
			h.refresh(ctx)
		}
	}
}

func (h *Health) refresh(ctx context.Context) {
	failures := runtime.RunChecks(ctx, h.checks)
	status := healthpb.HealthCheckResponse_SERVING
	if len(failures) > 0 {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	if status != h.last {
		if len(failures) > 0 {
			h.logger.Warn("health changed", "status", status.String(), "failures", strings.Join(failures, "; "))
		} else {
			h.logger.Info("health changed", "status", status.String())
		}
	}
	h.set(status)
}

func (h *Health) set(status healthpb.HealthCheckResponse_ServingStatus) {
	h.last = status
	h.srv.SetServingStatus("", status)
	if h.service != "" {
		h.srv.SetServingStatus(h.service, status)
	}
}

// NewServer builds a gRPC server with tracing, request id and access log
// interceptors.
func NewServer(logger *slog.Logger) *grpc.Server {
	return grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			grpcx.UnaryServerRequestIDInterceptor(),
			grpcx.UnaryServerLoggingInterceptor(logger),
		),
	)
}

// Start serves s on port until ctx is done, then stops gracefully.
func Start(ctx context.Context, s *grpc.Server, port string, logger *slog.Logger) error {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return err
	}

	go func() {
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := s.Serve(lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		s.GracefulStop()
	}()

	return nil
}
