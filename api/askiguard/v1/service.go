package askiguardv1

import (
	"context"

	"google.golang.org/grpc"

	"github.com/ppiankov/askiguard/internal/model"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "askiguard.v1.Validator"

// Method names.
const (
	MethodValidateOutput  = "ValidateOutput"
	MethodValidateInput   = "ValidateInput"
	MethodValidateCommand = "ValidateCommand"
	MethodLearn           = "Learn"
	MethodStats           = "Stats"
	MethodApprove         = "Approve"
	MethodDeny            = "Deny"
	MethodListPending     = "ListPending"
	MethodExecutionLog    = "ExecutionLog"
)

// ValidatorServer is the server API for the Validator service.
type ValidatorServer interface {
	ValidateOutput(context.Context, *OutputRequest) (*model.ValidationResult, error)
	ValidateInput(context.Context, *InputRequest) (*model.ValidationResult, error)
	ValidateCommand(context.Context, *CommandRequest) (*model.CommandValidationResult, error)
	Learn(context.Context, *LearnRequest) (*LearnResponse, error)
	Stats(context.Context, *StatsRequest) (*StatsResponse, error)
	Approve(context.Context, *ApproveRequest) (*ApproveResponse, error)
	Deny(context.Context, *DenyRequest) (*DenyResponse, error)
	ListPending(context.Context, *ListPendingRequest) (*ListPendingResponse, error)
	ExecutionLog(context.Context, *ExecutionLogRequest) (*ExecutionLogResponse, error)
}

// RegisterValidatorServer registers srv on s.
func RegisterValidatorServer(s grpc.ServiceRegistrar, srv ValidatorServer) {
	s.RegisterService(&ValidatorServiceDesc, srv)
}

// ValidatorServiceDesc describes the Validator service.
var ValidatorServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ValidatorServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodValidateOutput, ValidatorServer.ValidateOutput),
		unary(MethodValidateInput, ValidatorServer.ValidateInput),
		unary(MethodValidateCommand, ValidatorServer.ValidateCommand),
		unary(MethodLearn, ValidatorServer.Learn),
		unary(MethodStats, ValidatorServer.Stats),
		unary(MethodApprove, ValidatorServer.Approve),
		unary(MethodDeny, ValidatorServer.Deny),
		unary(MethodListPending, ValidatorServer.ListPending),
		unary(MethodExecutionLog, ValidatorServer.ExecutionLog),
	},
	Metadata: "askiguard/v1/validator",
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func unary[Req, Resp any](name string, call func(ValidatorServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(ValidatorServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*Req))
			})
		},
	}
}

// ValidatorClient is the client API for the Validator service.
type ValidatorClient struct {
	cc grpc.ClientConnInterface
}

// NewValidatorClient wraps a connection.
func NewValidatorClient(cc grpc.ClientConnInterface) *ValidatorClient {
	return &ValidatorClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, name string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, fullMethod(name), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ValidatorClient) ValidateOutput(ctx context.Context, in *OutputRequest, opts ...grpc.CallOption) (*model.ValidationResult, error) {
	return invoke[model.ValidationResult](ctx, c.cc, MethodValidateOutput, in, opts)
}

func (c *ValidatorClient) ValidateInput(ctx context.Context, in *InputRequest, opts ...grpc.CallOption) (*model.ValidationResult, error) {
	return invoke[model.ValidationResult](ctx, c.cc, MethodValidateInput, in, opts)
}

func (c *ValidatorClient) ValidateCommand(ctx context.Context, in *CommandRequest, opts ...grpc.CallOption) (*model.CommandValidationResult, error) {
	return invoke[model.CommandValidationResult](ctx, c.cc, MethodValidateCommand, in, opts)
}

func (c *ValidatorClient) Learn(ctx context.Context, in *LearnRequest, opts ...grpc.CallOption) (*LearnResponse, error) {
	return invoke[LearnResponse](ctx, c.cc, MethodLearn, in, opts)
}

func (c *ValidatorClient) Stats(ctx context.Context, in *StatsRequest, opts ...grpc.CallOption) (*StatsResponse, error) {
	return invoke[StatsResponse](ctx, c.cc, MethodStats, in, opts)
}

func (c *ValidatorClient) Approve(ctx context.Context, in *ApproveRequest, opts ...grpc.CallOption) (*ApproveResponse, error) {
	return invoke[ApproveResponse](ctx, c.cc, MethodApprove, in, opts)
}

func (c *ValidatorClient) Deny(ctx context.Context, in *DenyRequest, opts ...grpc.CallOption) (*DenyResponse, error) {
	return invoke[DenyResponse](ctx, c.cc, MethodDeny, in, opts)
}

func (c *ValidatorClient) ListPending(ctx context.Context, in *ListPendingRequest, opts ...grpc.CallOption) (*ListPendingResponse, error) {
	return invoke[ListPendingResponse](ctx, c.cc, MethodListPending, in, opts)
}

func (c *ValidatorClient) ExecutionLog(ctx context.Context, in *ExecutionLogRequest, opts ...grpc.CallOption) (*ExecutionLogResponse, error) {
	return invoke[ExecutionLogResponse](ctx, c.cc, MethodExecutionLog, in, opts)
}
