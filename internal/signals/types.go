package signals

import (
	"context"
	"errors"
)

// ErrInvalidConfig is returned by ProducerConfig.Validate.
var ErrInvalidConfig = errors.New("signals: invalid config")

// #region embedder-interface
// Embedder abstracts an embedding service so Producer can be tested without one.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
// #endregion embedder-interface

// #region config
// Weights blend the scored signals into one reward.
type Weights struct {
	Sentiment float64 `yaml:"sentiment" json:"sentiment"`
	Coherence float64 `yaml:"coherence" json:"coherence"` // ignored without an Embedder
	Novelty   float64 `yaml:"novelty" json:"novelty"`
}

// ProducerConfig holds tuning knobs for signal and reward computation.
type ProducerConfig struct {
	RiskEntropyMultiplier float64 `yaml:"risk_entropy_multiplier" json:"risk_entropy_multiplier"` // entropy >= EntropyThreshold * this → Risk
	EntropyThreshold      float64 `yaml:"entropy_threshold" json:"entropy_threshold"`
	RiskDiscount          float64 `yaml:"risk_discount" json:"risk_discount"` // reward multiplier on risky turns
	Weights               Weights `yaml:"weights" json:"weights"`
	NumStates             int     `yaml:"num_states" json:"num_states"` // entropy buckets for the observation state
}

// DefaultProducerConfig returns sensible defaults.
func DefaultProducerConfig() ProducerConfig {
	return ProducerConfig{
		RiskEntropyMultiplier: 1.5,
		EntropyThreshold:      0.5,
		RiskDiscount:          0.5,
		Weights:               Weights{Sentiment: 0.5, Coherence: 0.3, Novelty: 0.2},
		NumStates:             3,
	}
}

// Validate checks the config can produce rewards.
func (c ProducerConfig) Validate() error {
	w := c.Weights
	if w.Sentiment < 0 || w.Coherence < 0 || w.Novelty < 0 || w.Sentiment+w.Novelty <= 0 {
		return errors.Join(ErrInvalidConfig, errors.New("weights must be non-negative with a positive sentiment+novelty sum"))
	}
	if !(c.RiskDiscount >= 0 && c.RiskDiscount <= 1) {
		return errors.Join(ErrInvalidConfig, errors.New("risk_discount outside [0, 1]"))
	}
	if c.NumStates < 1 {
		return errors.Join(ErrInvalidConfig, errors.New("num_states must be at least 1"))
	}
	return nil
}
// #endregion config

// #region input
// Input bundles the data available after one generation. Entropy values are
// normalized to [0, 1].
type Input struct {
	Prompt       string    `json:"prompt" yaml:"prompt"`
	ResponseText string    `json:"response_text" yaml:"response_text"`
	Entropy      float64   `json:"entropy" yaml:"entropy"`
	NextEntropy  float64   `json:"next_entropy" yaml:"next_entropy"` // entropy the tuned values produced, for Q-learning
	Logits       []float64 `json:"logits,omitempty" yaml:"logits"`
	UserCorrect  bool      `json:"user_correct" yaml:"user_correct"`
}

// Signals are the heuristic scores of one turn.
type Signals struct {
	Sentiment      float64
	Coherence      float64
	Novelty        float64
	Risk           bool
	UserCorrection bool
}
// #endregion input
