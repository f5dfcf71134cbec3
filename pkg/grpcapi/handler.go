// Package grpcapi serves the assistant over gRPC with JSON encoded messages.
package grpcapi

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/abdhe/code-assistant/pkg/assistant"
	"github.com/abdhe/code-assistant/pkg/gen"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "codeassistant.v1.CodeAssistant"

const (
	methodGenerate = "/" + ServiceName + "/Generate"
	methodDebug    = "/" + ServiceName + "/Debug"
	methodExplain  = "/" + ServiceName + "/Explain"
	methodOptimize = "/" + ServiceName + "/Optimize"
	methodHealth   = "/" + ServiceName + "/Health"
)

// AssistantServer is the server API of the CodeAssistant service.
type AssistantServer interface {
	Generate(context.Context, *GenerateRequest) (*Reply, error)
	Debug(context.Context, *CodeRequest) (*Reply, error)
	Explain(context.Context, *CodeRequest) (*Reply, error)
	Optimize(context.Context, *CodeRequest) (*Reply, error)
	Health(context.Context, *HealthRequest) (*HealthReply, error)
}

// Handler implements AssistantServer on top of the assistant service.
type Handler struct {
	svc *assistant.Service
	log *slog.Logger
}

// NewHandler creates a new gRPC handler.
func NewHandler(svc *assistant.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, log: logger.With("component", "grpc")}
}

// Register installs h on s.
func Register(s grpc.ServiceRegistrar, h AssistantServer) {
	s.RegisterService(&serviceDesc, h)
}

// Generate handles a unary generate request.
func (h *Handler) Generate(ctx context.Context, req *GenerateRequest) (*Reply, error) {
	in := assistant.GenerateInput{
		Prompt:      req.Prompt,
		Language:    req.Language,
		Temperature: req.Temperature,
	}
	if req.MaxLength != nil {
		n := int(*req.MaxLength)
		in.MaxLength = &n
	}
	res, err := h.svc.Generate(ctx, in)
	return toReply(res, err)
}

// Debug handles a unary debug request.
func (h *Handler) Debug(ctx context.Context, req *CodeRequest) (*Reply, error) {
	return toReply(h.svc.Debug(ctx, codeInput(req)))
}

// Explain handles a unary explain request.
func (h *Handler) Explain(ctx context.Context, req *CodeRequest) (*Reply, error) {
	return toReply(h.svc.Explain(ctx, codeInput(req)))
}

// Optimize handles a unary optimize request.
func (h *Handler) Optimize(ctx context.Context, req *CodeRequest) (*Reply, error) {
	return toReply(h.svc.Optimize(ctx, codeInput(req)))
}

// Health reports the model load state.
func (h *Handler) Health(_ context.Context, _ *HealthRequest) (*HealthReply, error) {
	st := h.svc.Health()
	return &HealthReply{
		Status:          st.Status,
		ModelLoaded:     st.ModelLoaded,
		TokenizerLoaded: st.TokenizerLoaded,
		Timestamp:       st.Timestamp.Format(time.RFC3339Nano),
	}, nil
}

func codeInput(req *CodeRequest) assistant.CodeInput {
	return assistant.CodeInput{Code: req.Code, Language: req.Language}
}

func toReply(res gen.Result, err error) (*Reply, error) {
	if err != nil {
		if errors.Is(err, assistant.ErrInvalidInput) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		return nil, status.Errorf(codes.Internal, "API Error: %v", err)
	}
	if !res.OK() {
		return nil, status.Error(codeFor(res.Err.Reason), res.Err.Message)
	}
	return &Reply{Response: res.Text, Cached: res.Cached}, nil
}

// codeFor maps a generation failure to a gRPC status code.
func codeFor(r gen.Reason) codes.Code {
	switch r {
	case gen.ReasonModelUnavailable:
		return codes.Unavailable
	case gen.ReasonBusy:
		return codes.ResourceExhausted
	case gen.ReasonTimeout:
		return codes.DeadlineExceeded
	default:
		return codes.Internal
	}
}

// ---------------------------------------------------------------------------
// Service descriptor
// ---------------------------------------------------------------------------

// serviceDesc is written by hand and has no protobuf file descriptor, so
// server reflection lists the service but cannot describe its methods.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AssistantServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Generate", Handler: generateHandler},
		{MethodName: "Debug", Handler: codeHandler(methodDebug, AssistantServer.Debug)},
		{MethodName: "Explain", Handler: codeHandler(methodExplain, AssistantServer.Explain)},
		{MethodName: "Optimize", Handler: codeHandler(methodOptimize, AssistantServer.Optimize)},
		{MethodName: "Health", Handler: healthHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func generateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GenerateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AssistantServer).Generate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGenerate}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AssistantServer).Generate(ctx, req.(*GenerateRequest))
	}
	return interceptor(ctx, in, info, handler)
}

type codeMethod func(AssistantServer, context.Context, *CodeRequest) (*Reply, error)

func codeHandler(fullMethod string, call codeMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(CodeRequest)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AssistantServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AssistantServer), ctx, req.(*CodeRequest))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func healthHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(HealthRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AssistantServer).Health(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodHealth}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AssistantServer).Health(ctx, req.(*HealthRequest))
	}
	return interceptor(ctx, in, info, handler)
}
