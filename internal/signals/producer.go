package signals

import (
	"context"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/mimipynb/agentDial/internal/policy"
)

// #region producer
// Producer turns generation data into rewards and observation states.
type Producer struct {
	embedder Embedder
	config   ProducerConfig
}

// NewProducer creates a Producer. embedder may be nil (coherence drops out of the reward).
func NewProducer(embedder Embedder, config ProducerConfig) *Producer {
	return &Producer{embedder: embedder, config: config}
}
// #endregion producer

// #region produce
// Produce computes all signals from the given input.
func (p *Producer) Produce(ctx context.Context, input Input) Signals {
	return Signals{
		Sentiment:      p.sentimentScore(input),
		Coherence:      p.coherenceScore(ctx, input),
		Novelty:        p.noveltyScore(input),
		Risk:           p.riskFlag(input),
		UserCorrection: input.UserCorrect,
	}
}

// Reward blends signals into a reward in [0, 1]. A user correction scores 0.
//
// The blend is an example shaping heuristic for callers that have no reward
// of their own. Policies accept any caller-supplied reward; this formula is
// not part of that contract.
func (p *Producer) Reward(s Signals) float64 {
	if s.UserCorrection {
		return 0
	}
	w := p.config.Weights
	sum := w.Sentiment*s.Sentiment + w.Novelty*s.Novelty
	total := w.Sentiment + w.Novelty
	if p.embedder != nil {
		sum += w.Coherence * s.Coherence
		total += w.Coherence
	}
	if total <= 0 {
		return 0
	}
	r := sum / total
	if s.Risk {
		r *= p.config.RiskDiscount
	}
	return clamp(r)
}

// State buckets a normalized entropy into [0, NumStates).
func (p *Producer) State(entropy float64) int {
	n := p.config.NumStates
	if n <= 1 {
		return 0
	}
	s := int(clamp(entropy) * float64(n))
	if s >= n {
		s = n - 1
	}
	return s
}

// Observation builds a policy observation from one generation.
func (p *Producer) Observation(ctx context.Context, input Input) policy.Observation {
	return policy.Observation{
		Reward:    p.Reward(p.Produce(ctx, input)),
		State:     p.State(input.Entropy),
		NextState: p.State(input.NextEntropy),
	}
}
// #endregion produce

// #region sentiment
// sentimentScore approximates sentiment as lexical diversity * confidence.
// Confidence proxy: 1 - clamp(entropy).
func (p *Producer) sentimentScore(input Input) float64 {
	tokens := tokenize(input.ResponseText)
	if len(tokens) == 0 {
		return 0
	}
	unique := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		unique[t] = struct{}{}
	}
	diversity := float64(len(unique)) / float64(len(tokens))
	confidence := 1.0 - clamp(input.Entropy)
	return clamp(diversity * confidence)
}
// #endregion sentiment

// #region coherence
// coherenceScore computes cosine similarity between prompt and response embeddings.
// Degrades to 0 on error or nil embedder.
func (p *Producer) coherenceScore(ctx context.Context, input Input) float64 {
	if p.embedder == nil {
		return 0
	}
	promptEmb, err := p.embedder.Embed(ctx, input.Prompt)
	if err != nil {
		return 0
	}
	responseEmb, err := p.embedder.Embed(ctx, input.ResponseText)
	if err != nil {
		return 0
	}
	return clamp(cosineSimilarity(promptEmb, responseEmb))
}
// #endregion coherence

// #region novelty
// noveltyScore uses logit variance when logits are present, entropy otherwise.
func (p *Producer) noveltyScore(input Input) float64 {
	if len(input.Logits) > 1 {
		return clamp(math.Tanh(stat.Variance(input.Logits, nil)))
	}
	return clamp(input.Entropy)
}
// #endregion novelty

// #region risk
// riskFlag returns true when entropy exceeds the configured threshold.
func (p *Producer) riskFlag(input Input) bool {
	return input.Entropy >= p.config.EntropyThreshold*p.config.RiskEntropyMultiplier
}
// #endregion risk

// #region helpers
// tokenize splits text into lowercase whitespace-delimited tokens.
func tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

// cosineSimilarity computes cosine similarity between two vectors.
// Returns 0 for zero-length or mismatched vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	x, y := make([]float64, len(a)), make([]float64, len(b))
	for i := range a {
		x[i], y[i] = float64(a[i]), float64(b[i])
	}
	denom := floats.Norm(x, 2) * floats.Norm(y, 2)
	if denom == 0 {
		return 0
	}
	return floats.Dot(x, y) / denom
}

// clamp restricts v to [0, 1]. NaN maps to 0.
func clamp(v float64) float64 {
	if !(v > 0) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
// #endregion helpers
