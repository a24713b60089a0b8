package transport

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mimipynb/agentDial/internal/decode"
	"github.com/mimipynb/agentDial/internal/params"
	"github.com/mimipynb/agentDial/internal/policy"
	"github.com/mimipynb/agentDial/internal/signals"
	"github.com/mimipynb/agentDial/internal/state"
	"github.com/mimipynb/agentDial/internal/trial"
)

// #region service-desc
// TunerServer is the server API of the agentdial.Tuner service.
type TunerServer interface {
	StartTrial(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResumeTrial(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Step(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetTrial(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EndTrial(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(TunerServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryCall) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(TunerServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(TunerServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var tunerServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*TunerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "StartTrial", Handler: unaryHandler(methodStartTrial, TunerServer.StartTrial)},
		{MethodName: "ResumeTrial", Handler: unaryHandler(methodResumeTrial, TunerServer.ResumeTrial)},
		{MethodName: "Step", Handler: unaryHandler(methodStep, TunerServer.Step)},
		{MethodName: "GetTrial", Handler: unaryHandler(methodGetTrial, TunerServer.GetTrial)},
		{MethodName: "EndTrial", Handler: unaryHandler(methodEndTrial, TunerServer.EndTrial)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "agentdial/tuner",
}

// RegisterTunerServer registers srv on s.
func RegisterTunerServer(s grpc.ServiceRegistrar, srv TunerServer) {
	s.RegisterService(&tunerServiceDesc, srv)
}
// #endregion service-desc

// #region server
// Server serves trials from a trial.Manager.
type Server struct {
	manager  *trial.Manager
	defaults trial.StartConfig
	producer *signals.Producer
}

// NewServer creates a Server. defaults fill any section a StartTrial request
// omits. producer may be nil, in which case Step requests must carry an
// observation rather than signals.
func NewServer(manager *trial.Manager, defaults trial.StartConfig, producer *signals.Producer) *Server {
	return &Server{manager: manager, defaults: defaults, producer: producer}
}

// StartTrial opens a trial.
func (s *Server) StartTrial(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req StartRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	cfg := s.defaults
	if req.Policy != nil {
		cfg.Policy = *req.Policy
	}
	if req.Params != nil {
		cfg.Params = *req.Params
	}
	info, err := s.manager.Start(ctx, cfg)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(trialReply(info))
}

// ResumeTrial reactivates a checkpointed trial.
func (s *Server) ResumeTrial(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req TrialRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	info, err := s.manager.Resume(ctx, req.TrialID)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(trialReply(info))
}

// Step applies one turn.
func (s *Server) Step(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req StepRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	var gen *decode.GenerationConfig
	if req.Strategy != "" {
		cfg, err := decode.ForStrategy(req.Strategy)
		if err != nil {
			return nil, toStatus(err)
		}
		gen = &cfg
	}
	obs := req.Observation
	if req.Signals != nil {
		if s.producer == nil {
			return nil, status.Error(codes.InvalidArgument, "signals are not enabled on this server")
		}
		obs = s.producer.Observation(ctx, *req.Signals)
	}
	res, err := s.manager.Step(ctx, req.TrialID, obs)
	if err != nil {
		return nil, toStatus(err)
	}
	reply := StepReply{TrialID: res.TrialID, Turn: res.Turn, Actions: res.Actions, Values: res.Values, Reward: obs.Reward}
	if gen != nil {
		tuned := gen.WithSampling(res.Values)
		reply.Generation = &tuned
	}
	return toStruct(reply)
}

// GetTrial reports an active trial.
func (s *Server) GetTrial(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req TrialRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	info, err := s.manager.Get(req.TrialID)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(trialReply(info))
}

// EndTrial closes a trial.
func (s *Server) EndTrial(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req TrialRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	info, err := s.manager.End(ctx, req.TrialID)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(trialReply(info))
}
// #endregion server

// #region helpers
func trialReply(info trial.Info) TrialReply {
	return TrialReply{TrialID: info.ID, Kind: info.Kind, Turn: info.Turn, Values: info.Values}
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, trial.ErrTrialNotFound), errors.Is(err, state.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, trial.ErrTrialExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, policy.ErrInvalidReward),
		errors.Is(err, policy.ErrUnknownState),
		errors.Is(err, policy.ErrUnknownMethod),
		errors.Is(err, policy.ErrUnknownKind),
		errors.Is(err, params.ErrRange),
		errors.Is(err, params.ErrInvalidParameter),
		errors.Is(err, params.ErrInvalidAction),
		errors.Is(err, decode.ErrUnknownStrategy):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, policy.ErrCorruptSnapshot):
		return status.Error(codes.DataLoss, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
// #endregion helpers
