package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"jobscout/internal/api/validation"
	"jobscout/internal/background"
	"jobscout/internal/grpc/interceptors"
	"jobscout/internal/logging"
	"jobscout/pkg/models"
	"jobscout/pkg/utils"
)

var validate = validation.New()

// toStruct converts any JSON-marshalable value to a Struct
func toStruct(v interface{}) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

// fromStruct decodes s into v through its JSON form
func fromStruct(s *structpb.Struct, v interface{}) error {
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func (s *Server) log(ctx context.Context) logging.Logger {
	return s.logger.WithField("request_id", interceptors.RequestIDFromContext(ctx))
}

func decodeDiscoverRequest(in *structpb.Struct) (*models.DiscoverRequest, error) {
	var req models.DiscoverRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid request format: %v", err)
	}
	if err := validate.Struct(&req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "validation failed: %v", err)
	}
	if !req.HasTerms() {
		return nil, status.Error(codes.InvalidArgument, "at least one of profile.role, profile.skills, queries or companies is required")
	}
	return &req, nil
}

// statusFromError maps application errors to gRPC codes
func statusFromError(err error) error {
	if errors.Is(err, background.ErrRunNotFound) {
		return status.Error(codes.NotFound, err.Error())
	}
	if utils.IsConfigurationError(err) {
		return status.Error(codes.FailedPrecondition, err.Error())
	}
	if ce, ok := utils.AsCustomError(err); ok {
		switch ce.Code {
		case http.StatusBadRequest:
			return status.Error(codes.InvalidArgument, ce.Error())
		case http.StatusNotFound:
			return status.Error(codes.NotFound, ce.Error())
		case http.StatusServiceUnavailable:
			return status.Error(codes.ResourceExhausted, ce.Error())
		case http.StatusRequestTimeout:
			return status.Error(codes.DeadlineExceeded, ce.Error())
		}
		return status.Error(codes.Unavailable, ce.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	if errors.Is(err, context.Canceled) {
		return status.Error(codes.Canceled, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

func (s *Server) Discover(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := decodeDiscoverRequest(in)
	if err != nil {
		return nil, err
	}

	report, err := s.discoverer.Run(ctx, req.ToRunInput())
	if err != nil {
		s.log(ctx).Error("Discovery run failed", map[string]interface{}{"error": err.Error()})
		return nil, statusFromError(err)
	}

	out, err := toStruct(report)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode report: %v", err)
	}
	s.log(ctx).Info("gRPC discovery completed", map[string]interface{}{
		"run_id":     report.RunID,
		"total_jobs": report.TotalJobs,
	})
	return out, nil
}

func (s *Server) SubmitDiscovery(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.runs == nil {
		return nil, status.Error(codes.Unimplemented, "asynchronous runs are disabled")
	}
	req, err := decodeDiscoverRequest(in)
	if err != nil {
		return nil, err
	}

	runID, err := s.runs.SubmitRun(ctx, req.ToRunInput())
	if err != nil {
		return nil, statusFromError(err)
	}
	out, err := toStruct(models.CreateAsyncDiscoverResponse(runID))
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return out, nil
}

func (s *Server) GetRun(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.runs == nil {
		return nil, status.Error(codes.Unimplemented, "asynchronous runs are disabled")
	}
	runID := strings.TrimSpace(in.GetFields()["runId"].GetStringValue())
	if runID == "" {
		return nil, status.Error(codes.InvalidArgument, "runId is required")
	}

	record, err := s.runs.GetRun(ctx, runID)
	if err != nil {
		return nil, statusFromError(err)
	}

	resp := models.RunStatusResponse{
		RunID:        record.RunID,
		Status:       models.AsyncStatus(record.Status),
		Error:        record.Error,
		CreatedAt:    record.CreatedAt,
		CompletedAt:  record.CompletedAt,
		ProcessingMS: record.ProcessingMS,
	}
	if record.Status == background.RunStatusSuccess {
		resp.Report = record.Report
	}
	out, err := toStruct(resp)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode run %s: %v", runID, err)
	}
	return out, nil
}
