package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	pb "github.com/ppiankov/askiguard/api/askiguard/v1"
	"github.com/ppiankov/askiguard/internal/approval"
	"github.com/ppiankov/askiguard/internal/command"
	"github.com/ppiankov/askiguard/internal/guard"
	"github.com/ppiankov/askiguard/internal/model"
)

// Config holds gRPC server configuration.
type Config struct {
	Port int
	// ConfigPath is the file ReloadConfig reads.
	ConfigPath string
}

// Server implements the askiguard.v1.Validator gRPC service.
type Server struct {
	svc    *guard.Service
	cfg    Config
	health *health.Server

	grpcServer *grpc.Server
}

// New creates a gRPC server backed by svc. Approvals that are no longer
// pending are cleaned up on start.
func New(svc *guard.Service, cfg Config) *Server {
	if n, err := svc.Approvals().Cleanup(); err != nil {
		slog.Warn("approval cleanup failed", "error", err)
	} else if n > 0 {
		slog.Info("approval cleanup", "removed", n)
	}

	s := &Server{
		svc:        svc,
		cfg:        cfg,
		health:     health.NewServer(),
		grpcServer: grpc.NewServer(),
	}

	pb.RegisterValidatorServer(s.grpcServer, s)
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	s.health.SetServingStatus(pb.ServiceName, healthpb.HealthCheckResponse_SERVING)
	return s
}

// Serve starts the gRPC server on the configured port. Blocks until stopped.
func (s *Server) Serve() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.cfg.Port, err)
	}
	return s.ServeOn(lis)
}

// ServeOn starts the gRPC server on the given listener.
func (s *Server) ServeOn(lis net.Listener) error {
	slog.Info("grpc server listening", "addr", lis.Addr().String())
	return s.grpcServer.Serve(lis)
}

// GracefulStop marks the service as not serving and drains in-flight calls.
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}

// ValidateOutput implements the ValidateOutput RPC.
func (s *Server) ValidateOutput(ctx context.Context, req *pb.OutputRequest) (*model.ValidationResult, error) {
	res := s.svc.ValidateOutput(req.Text, req.Context)
	return &res, nil
}

// ValidateInput implements the ValidateInput RPC.
func (s *Server) ValidateInput(ctx context.Context, req *pb.InputRequest) (*model.ValidationResult, error) {
	res := s.svc.ValidateInput(req.Text)
	return &res, nil
}

// ValidateCommand implements the ValidateCommand RPC.
func (s *Server) ValidateCommand(ctx context.Context, req *pb.CommandRequest) (*model.CommandValidationResult, error) {
	if req.Quick {
		return s.svc.QuickValidate(req.Command), nil
	}

	opts := command.Options{DryRun: req.DryRun}
	if req.Now != "" {
		now, err := time.Parse(time.RFC3339, req.Now)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "invalid now %q: %v", req.Now, err)
		}
		opts.Now = now
	}
	return s.svc.ValidateCommand(req.Command, req.UserRequest, opts), nil
}

// Learn implements the Learn RPC.
func (s *Server) Learn(ctx context.Context, req *pb.LearnRequest) (*pb.LearnResponse, error) {
	source := req.Source
	if source == "" {
		source = "grpc"
	}

	changed, err := s.svc.Learn(req.Kind, req.Pattern, source, req.Remove)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return &pb.LearnResponse{Changed: changed}, nil
}

// Stats implements the Stats RPC.
func (s *Server) Stats(ctx context.Context, req *pb.StatsRequest) (*pb.StatsResponse, error) {
	resp := pb.StatsResponse(s.svc.Summary())
	return &resp, nil
}

// Approve implements the Approve RPC.
func (s *Server) Approve(ctx context.Context, req *pb.ApproveRequest) (*pb.ApproveResponse, error) {
	var duration time.Duration
	if req.Duration != "" {
		var err error
		duration, err = time.ParseDuration(req.Duration)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "invalid duration %q: %v", req.Duration, err)
		}
	}

	if err := s.svc.Approvals().Approve(req.CommandID, req.By, duration); err != nil {
		return nil, approvalError(err)
	}
	return &pb.ApproveResponse{CommandID: req.CommandID, Status: string(approval.StatusApproved)}, nil
}

// Deny implements the Deny RPC.
func (s *Server) Deny(ctx context.Context, req *pb.DenyRequest) (*pb.DenyResponse, error) {
	if err := s.svc.Approvals().Deny(req.CommandID, req.By); err != nil {
		return nil, approvalError(err)
	}
	return &pb.DenyResponse{CommandID: req.CommandID, Status: string(approval.StatusDenied)}, nil
}

// ListPending implements the ListPending RPC.
func (s *Server) ListPending(ctx context.Context, req *pb.ListPendingRequest) (*pb.ListPendingResponse, error) {
	list, err := s.svc.Approvals().List(approval.StatusPending)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "list approvals: %v", err)
	}

	approvals := make([]pb.PendingApproval, len(list))
	for i, a := range list {
		approvals[i] = pb.PendingApproval{
			CommandID: a.CommandID,
			Title:     a.Title,
			Reason:    a.Reason,
			Verifier:  a.Verifier,
			RiskScore: a.RiskScore,
			CreatedAt: a.CreatedAt.Format(time.RFC3339),
		}
	}
	return &pb.ListPendingResponse{Approvals: approvals}, nil
}

// ExecutionLog implements the ExecutionLog RPC.
func (s *Server) ExecutionLog(ctx context.Context, req *pb.ExecutionLogRequest) (*pb.ExecutionLogResponse, error) {
	log := s.svc.ExecutionLog()
	if req.Limit > 0 {
		return &pb.ExecutionLogResponse{Entries: log.Recent(req.Limit)}, nil
	}
	return &pb.ExecutionLogResponse{Entries: log.Entries()}, nil
}

// ReloadConfig re-reads the config file and swaps it in.
// Called by the hot-reloader on file change.
func (s *Server) ReloadConfig() error {
	return s.svc.ReloadFile(s.cfg.ConfigPath)
}

func approvalError(err error) error {
	if errors.Is(err, approval.ErrNotFound) {
		return status.Error(codes.NotFound, err.Error())
	}
	return status.Error(codes.FailedPrecondition, err.Error())
}
