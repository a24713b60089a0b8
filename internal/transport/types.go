package transport

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mimipynb/agentDial/internal/decode"
	"github.com/mimipynb/agentDial/internal/params"
	"github.com/mimipynb/agentDial/internal/policy"
	"github.com/mimipynb/agentDial/internal/signals"
)

// #region methods
const (
	serviceName = "agentdial.Tuner"

	methodStartTrial  = "/" + serviceName + "/StartTrial"
	methodResumeTrial = "/" + serviceName + "/ResumeTrial"
	methodStep        = "/" + serviceName + "/Step"
	methodGetTrial    = "/" + serviceName + "/GetTrial"
	methodEndTrial    = "/" + serviceName + "/EndTrial"
)
// #endregion methods

// #region messages
// StartRequest opens a trial. Nil sections fall back to defaults.
type StartRequest struct {
	Policy *policy.Config `json:"policy,omitempty"`
	Params *params.Specs  `json:"params,omitempty"`
}

// TrialRequest names an existing trial.
type TrialRequest struct {
	TrialID string `json:"trial_id"`
}

// StepRequest carries one turn's observation. When Signals is set the server
// derives the observation from it instead. A non-empty Strategy asks for the
// decoding config matching the tuned values.
type StepRequest struct {
	TrialID     string             `json:"trial_id"`
	Observation policy.Observation `json:"observation"`
	Signals     *signals.Input     `json:"signals,omitempty"`
	Strategy    string             `json:"strategy,omitempty"`
}

// TrialReply describes a trial.
type TrialReply struct {
	TrialID string        `json:"trial_id"`
	Kind    policy.Kind   `json:"kind"`
	Turn    int           `json:"turn"`
	Values  params.Values `json:"values"`
}

// StepReply is the outcome of an applied turn.
type StepReply struct {
	TrialID string          `json:"trial_id"`
	Turn    int             `json:"turn"`
	Actions policy.Decision `json:"actions"`
	Values  params.Values   `json:"values"`
	Reward  float64         `json:"reward"`

	Generation *decode.GenerationConfig `json:"generation,omitempty"`
}
// #endregion messages

// #region struct-codec
// toStruct converts a JSON-tagged Go value to a protobuf Struct.
func toStruct(v interface{}) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", v, err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("unmarshal %T: %w", v, err)
	}
	return structpb.NewStruct(m)
}

// fromStruct decodes a protobuf Struct into a JSON-tagged Go value.
func fromStruct(s *structpb.Struct, v interface{}) error {
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return fmt.Errorf("marshal struct: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	return nil
}
// #endregion struct-codec
