package transport

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mimipynb/agentDial/internal/policy"
	"github.com/mimipynb/agentDial/internal/signals"
)

// #region client-struct
// Client wraps a gRPC connection to a tuner server.
type Client struct {
	conn *grpc.ClientConn
	cc   grpc.ClientConnInterface
}
// #endregion client-struct

// #region constructor
// NewClient connects to the tuner gRPC server at addr.
func NewClient(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, cc: conn}, nil
}

// NewClientWithConn creates a Client over an existing connection. Close does not close cc.
func NewClientWithConn(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}
// #endregion constructor

// #region close
// Close shuts down the gRPC connection if the Client owns it.
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
// #endregion close

// #region calls
// StartTrial opens a trial on the server.
func (c *Client) StartTrial(ctx context.Context, req StartRequest) (TrialReply, error) {
	var reply TrialReply
	err := c.invoke(ctx, methodStartTrial, req, &reply)
	return reply, err
}

// ResumeTrial reactivates a checkpointed trial.
func (c *Client) ResumeTrial(ctx context.Context, trialID string) (TrialReply, error) {
	var reply TrialReply
	err := c.invoke(ctx, methodResumeTrial, TrialRequest{TrialID: trialID}, &reply)
	return reply, err
}

// Step sends one turn's observation.
func (c *Client) Step(ctx context.Context, trialID string, obs policy.Observation) (StepReply, error) {
	var reply StepReply
	err := c.invoke(ctx, methodStep, StepRequest{TrialID: trialID, Observation: obs}, &reply)
	return reply, err
}

// StepSignals sends one turn's generation data and lets the server derive the
// reward and state.
func (c *Client) StepSignals(ctx context.Context, trialID string, in signals.Input) (StepReply, error) {
	var reply StepReply
	err := c.invoke(ctx, methodStep, StepRequest{TrialID: trialID, Signals: &in}, &reply)
	return reply, err
}

// StepWithStrategy sends one turn's observation and asks for the decoding
// config of strategy tuned to the new values.
func (c *Client) StepWithStrategy(ctx context.Context, trialID string, obs policy.Observation, strategy string) (StepReply, error) {
	var reply StepReply
	err := c.invoke(ctx, methodStep, StepRequest{TrialID: trialID, Observation: obs, Strategy: strategy}, &reply)
	return reply, err
}

// GetTrial reports an active trial.
func (c *Client) GetTrial(ctx context.Context, trialID string) (TrialReply, error) {
	var reply TrialReply
	err := c.invoke(ctx, methodGetTrial, TrialRequest{TrialID: trialID}, &reply)
	return reply, err
}

// EndTrial closes a trial.
func (c *Client) EndTrial(ctx context.Context, trialID string) (TrialReply, error) {
	var reply TrialReply
	err := c.invoke(ctx, methodEndTrial, TrialRequest{TrialID: trialID}, &reply)
	return reply, err
}

func (c *Client) invoke(ctx context.Context, method string, req, reply interface{}) error {
	in, err := toStruct(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	return fromStruct(out, reply)
}
// #endregion calls
