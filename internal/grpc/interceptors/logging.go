package interceptors

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"jobscout/internal/logging"
	"jobscout/pkg/utils"
)

// RequestIDHeader is the metadata key carrying a caller supplied request id
const RequestIDHeader = "x-request-id"

type requestIDKey struct{}

// RequestIDFromContext returns the id set by LoggingInterceptor
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func incomingRequestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(RequestIDHeader); len(v) > 0 && v[0] != "" && len(v[0]) <= 128 {
			return v[0]
		}
	}
	return utils.GenerateRequestID()
}

func statusCode(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	if s, ok := status.FromError(err); ok {
		return s.Code()
	}
	return codes.Internal
}

// LoggingInterceptor returns a gRPC unary interceptor that logs requests and
// responses. The request id is stored in the context and sent back as a header.
func LoggingInterceptor(logger logging.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		startTime := time.Now()
		requestID := incomingRequestID(ctx)
		ctx = context.WithValue(ctx, requestIDKey{}, requestID)
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, requestID))

		logger.Debug("gRPC request started", map[string]interface{}{
			"request_id": requestID,
			"method":     info.FullMethod,
			"type":       "grpc_request_start",
		})

		resp, err := handler(ctx, req)

		fields := map[string]interface{}{
			"request_id":  requestID,
			"method":      info.FullMethod,
			"latency_ms":  time.Since(startTime).Milliseconds(),
			"status_code": statusCode(err).String(),
			"type":        "grpc_request_complete",
		}
		if err != nil {
			fields["error"] = err.Error()
			logger.Error("gRPC request failed", fields)
		} else {
			logger.Info("gRPC request completed", fields)
		}

		return resp, err
	}
}

// StreamLoggingInterceptor returns a gRPC streaming interceptor that logs stream operations
func StreamLoggingInterceptor(logger logging.Logger) grpc.StreamServerInterceptor {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		startTime := time.Now()
		requestID := incomingRequestID(ss.Context())

		err := handler(srv, ss)

		fields := map[string]interface{}{
			"request_id":  requestID,
			"method":      info.FullMethod,
			"latency_ms":  time.Since(startTime).Milliseconds(),
			"status_code": statusCode(err).String(),
			"type":        "grpc_stream_complete",
		}
		if err != nil {
			fields["error"] = err.Error()
			logger.Error("gRPC stream failed", fields)
		} else {
			logger.Info("gRPC stream completed", fields)
		}

		return err
	}
}
