// Package rpc exposes the forecast pipeline over gRPC.
//
// The service is loadforecaster.v1.Forecaster with one unary method, Predict.
// Requests and responses are google.protobuf.Struct values carrying the same
// fields as the HTTP API:
//
//	request:  {"recent_consumption": [<30 numbers>]}
//	response: {"predicted_energy_consumption_kWh": <number>}
//
// The standard grpc.health.v1 service is registered alongside it.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/HatiCode/loadforecaster/cmd/forecaster/metrics"
	"github.com/HatiCode/loadforecaster/pkg/pipeline"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "loadforecaster.v1.Forecaster"

	// PredictMethod is the full method name of Predict.
	PredictMethod = "/" + ServiceName + "/Predict"

	// FieldRecentConsumption is the request field holding the window.
	FieldRecentConsumption = "recent_consumption"

	// FieldPrediction is the response field holding the forecast.
	FieldPrediction = "predicted_energy_consumption_kWh"
)

// ForecasterServer is the server API for the Forecaster service.
type ForecasterServer interface {
	Predict(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes the Forecaster service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ForecasterServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Predict",
			Handler:    predictHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "loadforecaster/v1/forecaster.proto",
}

// RegisterForecasterServer registers srv with s.
func RegisterForecasterServer(s grpc.ServiceRegistrar, srv ForecasterServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func predictHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ForecasterServer).Predict(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: PredictMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ForecasterServer).Predict(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Server implements ForecasterServer on top of a pipeline.
type Server struct {
	pipeline *pipeline.Pipeline
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewServer creates a Forecaster service. p may be nil, in which case every
// call fails with codes.Unavailable. m may be nil.
func NewServer(p *pipeline.Pipeline, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{pipeline: p, metrics: m, logger: logger}
}

// Predict forecasts the next value from the request's recent_consumption list.
func (s *Server) Predict(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.pipeline == nil {
		s.record("unavailable")
		return nil, status.Error(codes.Unavailable, "model not loaded")
	}

	window, err := decodeWindow(req)
	if errors.Is(err, pipeline.ErrInvalidInputLength) {
		s.record(pipeline.Kind(err))
		return nil, status.Error(codes.InvalidArgument, pipeline.InvalidInputLengthMessage)
	}
	if err != nil {
		s.record("bad_request")
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	prediction, err := s.pipeline.Forecast(ctx, window)
	if err != nil {
		kind := pipeline.Kind(err)
		s.record(kind)
		if errors.Is(err, pipeline.ErrInvalidInputLength) {
			return nil, status.Error(codes.InvalidArgument, pipeline.InvalidInputLengthMessage)
		}
		s.logger.Error("forecast failed", "kind", kind, "error", err)
		return nil, status.Error(codes.Internal, err.Error())
	}

	s.record("ok")
	if s.metrics != nil {
		s.metrics.SetPredictedValue(prediction)
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldPrediction: structpb.NewNumberValue(prediction),
	}}, nil
}

func (s *Server) record(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordRequest("grpc", outcome)
	}
}

// decodeWindow checks the list length before element types, matching the
// HTTP handler.
func decodeWindow(req *structpb.Struct) (pipeline.Window, error) {
	field, ok := req.GetFields()[FieldRecentConsumption]
	if !ok {
		return nil, fmt.Errorf("%s: field required", FieldRecentConsumption)
	}
	list := field.GetListValue()
	if list == nil {
		return nil, fmt.Errorf("%s: must be a list of numbers", FieldRecentConsumption)
	}

	values := list.GetValues()
	if err := pipeline.CheckLength(len(values)); err != nil {
		return nil, err
	}

	window := make(pipeline.Window, len(values))
	for i, v := range values {
		n, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, fmt.Errorf("%s[%d]: must be a number", FieldRecentConsumption, i)
		}
		window[i] = n.NumberValue
	}
	return window, nil
}

// NewGRPCServer creates a gRPC server with the Forecaster and health services
// registered. Health reports SERVING only when p is non-nil.
func NewGRPCServer(p *pipeline.Pipeline, m *metrics.Metrics, logger *slog.Logger, opts ...grpc.ServerOption) *grpc.Server {
	if logger == nil {
		logger = slog.Default()
	}

	opts = append(opts, grpc.ChainUnaryInterceptor(
		RecoveryInterceptor(logger),
		LoggingInterceptor(logger),
	))
	s := grpc.NewServer(opts...)

	RegisterForecasterServer(s, NewServer(p, m, logger))

	servingStatus := healthpb.HealthCheckResponse_NOT_SERVING
	if p != nil {
		servingStatus = healthpb.HealthCheckResponse_SERVING
	}
	hs := health.NewServer()
	hs.SetServingStatus("", servingStatus)
	hs.SetServingStatus(ServiceName, servingStatus)
	healthpb.RegisterHealthServer(s, hs)

	return s
}

// LoggingInterceptor logs the method, status code and duration of each call.
func LoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		logger.Info("gRPC request",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}

// RecoveryInterceptor converts panics in handlers into codes.Internal.
func RecoveryInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered",
					"error", r,
					"method", info.FullMethod,
					"stack", string(debug.Stack()),
				)
				err = status.Error(codes.Internal, "internal server error")
			}
		}()
		return handler(ctx, req)
	}
}
