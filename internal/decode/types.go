package decode

import "errors"

// ErrUnknownStrategy is returned for a strategy name with no configuration.
var ErrUnknownStrategy = errors.New("decode: unknown strategy")

// #region strategy
// Strategy names a decoding method.
type Strategy string

const (
	GreedySearch          Strategy = "greedy-search"
	ContrastiveSearch     Strategy = "contrastive-search"
	MultinomialSampling   Strategy = "multinomial-sampling"
	BeamSearch            Strategy = "beam-search"
	BeamSearchMulti       Strategy = "beam-search-multi"
	BeamSearchDiverse     Strategy = "beam-search-diverse"
	BeamSearchConstrained Strategy = "beam-search-constrained"
)

// Strategies lists every supported strategy.
var Strategies = [...]Strategy{
	GreedySearch,
	ContrastiveSearch,
	MultinomialSampling,
	BeamSearch,
	BeamSearchMulti,
	BeamSearchDiverse,
	BeamSearchConstrained,
}
// #endregion strategy

// #region bundles
// OutputArgs controls output length.
type OutputArgs struct {
	MaxLength    int `json:"max_length,omitempty"` // 0 means unset
	MaxNewTokens int `json:"max_new_tokens"`
}

// CacheArgs controls the key/value cache.
type CacheArgs struct {
	UseCache bool `json:"use_cache"`
}

// GenArgs controls what generation returns.
type GenArgs struct {
	NumReturnSequences   int  `json:"num_return_sequences"`
	OutputAttentions     bool `json:"output_attentions"`
	OutputHiddenStates   bool `json:"output_hidden_states"`
	OutputScores         bool `json:"output_scores"`
	OutputLogits         bool `json:"output_logits"`
	ReturnDictInGenerate bool `json:"return_dict_in_generate"`
}

// DefaultOutputArgs returns the output bundle shared by every strategy.
func DefaultOutputArgs() OutputArgs { return OutputArgs{MaxNewTokens: 25} }

// DefaultCacheArgs returns the cache bundle shared by every strategy.
func DefaultCacheArgs() CacheArgs { return CacheArgs{UseCache: false} }

// DefaultGenArgs returns the generation bundle shared by every strategy.
func DefaultGenArgs() GenArgs { return GenArgs{NumReturnSequences: 1} }
// #endregion bundles

// #region config
// GenerationConfig is the full decoding configuration for one strategy.
// Values are never shared; every constructor returns a fresh copy.
type GenerationConfig struct {
	Strategy Strategy `json:"strategy"`
	OutputArgs
	CacheArgs
	GenArgs

	NumBeams      int     `json:"num_beams"`
	NumBeamGroups int     `json:"num_beam_groups,omitempty"`
	DoSample      bool    `json:"do_sample"`
	PenaltyAlpha  float64 `json:"penalty_alpha,omitempty"`

	Temperature float64 `json:"temperature,omitempty"`
	TopK        int     `json:"top_k,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`

	Constraints   []string `json:"constraints,omitempty"`
	ForceWordsIDs []string `json:"force_words_ids,omitempty"`
}
// #endregion config
