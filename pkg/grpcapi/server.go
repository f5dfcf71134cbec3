package grpcapi

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/abdhe/code-assistant/pkg/logging"
)

const requestIDKey = "x-request-id"

// NewServer returns a gRPC server with the CodeAssistant service, the standard
// health service and reflection registered. The health status follows modelLoaded.
func NewServer(h *Handler, modelLoaded bool, logger *slog.Logger, opts ...grpc.ServerOption) *grpc.Server {
	if logger == nil {
		logger = slog.Default()
	}
	opts = append([]grpc.ServerOption{
		grpc.MaxRecvMsgSize(4 * 1024 * 1024),
		grpc.MaxSendMsgSize(16 * 1024 * 1024),
		grpc.ChainUnaryInterceptor(loggingInterceptor(logger.With("component", "grpc"))),
	}, opts...)
	s := grpc.NewServer(opts...)
	Register(s, h)

	hs := health.NewServer()
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if modelLoaded {
		st = healthpb.HealthCheckResponse_SERVING
	}
	hs.SetServingStatus("", st)
	hs.SetServingStatus(ServiceName, st)
	healthpb.RegisterHealthServer(s, hs)

	reflection.Register(s)
	return s
}

// loggingInterceptor tags each call with a request id, taken from the
// x-request-id metadata when present, and logs its outcome.
func loggingInterceptor(base *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		id := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get(requestIDKey); len(v) > 0 && len(v[0]) <= 128 {
				id = v[0]
			}
		}
		if id == "" {
			id = uuid.NewString()
		}
		_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDKey, id))

		l := base.With("request_id", id)
		start := time.Now()
		resp, err := handler(logging.WithContext(ctx, l), req)

		code := status.Code(err)
		attrs := []any{"method", info.FullMethod, "code", code.String(), "latency", time.Since(start)}
		if err != nil {
			l.Warn("rpc failed", append(attrs, "error", err)...)
		} else {
			l.Info("rpc completed", attrs...)
		}
		return resp, err
	}
}
