package decode

import (
	"fmt"
	"math"

	"github.com/mimipynb/agentDial/internal/params"
)

// minBeams is the smallest beam count a beam strategy accepts.
const minBeams = 2

// #region options
type options struct {
	output        OutputArgs
	cache         CacheArgs
	gen           GenArgs
	constraints   []string
	forceWordsIDs []string
}

// Option customizes ForStrategy.
type Option func(*options)

// WithOutputArgs replaces the default output bundle.
func WithOutputArgs(o OutputArgs) Option { return func(opts *options) { opts.output = o } }

// WithCacheArgs replaces the default cache bundle.
func WithCacheArgs(c CacheArgs) Option { return func(opts *options) { opts.cache = c } }

// WithGenArgs replaces the default generation bundle.
func WithGenArgs(g GenArgs) Option { return func(opts *options) { opts.gen = g } }

// WithConstraints sets the constraints and forced words for beam-search-constrained.
func WithConstraints(constraints, forceWordsIDs []string) Option {
	return func(opts *options) {
		opts.constraints = append([]string(nil), constraints...)
		opts.forceWordsIDs = append([]string(nil), forceWordsIDs...)
	}
}
// #endregion options

// #region for-strategy
// ForStrategy builds the generation config for a strategy name.
func ForStrategy(name string, opts ...Option) (GenerationConfig, error) {
	o := options{
		output:        DefaultOutputArgs(),
		cache:         DefaultCacheArgs(),
		gen:           DefaultGenArgs(),
		constraints:   []string{"rude"},
		forceWordsIDs: []string{"helpful"},
	}
	for _, opt := range opts {
		opt(&o)
	}

	cfg := GenerationConfig{
		Strategy:   Strategy(name),
		OutputArgs: o.output,
		CacheArgs:  o.cache,
		GenArgs:    o.gen,
		NumBeams:   1,
	}
	switch cfg.Strategy {
	case GreedySearch:
	case ContrastiveSearch:
		cfg.PenaltyAlpha = 0.1
		cfg.TopK = 2
	case MultinomialSampling:
		cfg.DoSample = true
	case BeamSearch:
		cfg.NumBeams = minBeams
		cfg.DoSample = true
	case BeamSearchMulti:
		cfg.NumBeams = minBeams
		cfg.PenaltyAlpha = 1
		cfg.TopK = 2
		cfg.DoSample = true
	case BeamSearchDiverse:
		cfg.NumBeams = minBeams
		cfg.NumBeamGroups = 2
		cfg.DoSample = true
	case BeamSearchConstrained:
		cfg.NumBeams = minBeams
		cfg.DoSample = true
		cfg.Constraints = o.constraints
		cfg.ForceWordsIDs = o.forceWordsIDs
	default:
		return GenerationConfig{}, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
	return cfg, nil
}
// #endregion for-strategy

// #region sampling
// WithSampling returns a copy of c carrying the tuned sampling values.
// top_k is rounded to the nearest integer.
func (c GenerationConfig) WithSampling(v params.Values) GenerationConfig {
	out := c
	out.Constraints = append([]string(nil), c.Constraints...)
	out.ForceWordsIDs = append([]string(nil), c.ForceWordsIDs...)
	out.Temperature = v.Temperature
	out.TopK = int(math.Round(v.TopK))
	out.TopP = v.TopP
	return out
}
// #endregion sampling
