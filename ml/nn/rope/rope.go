// Package rope holds the option type shared by every model's rotary
// position embedding call so that YaRN- and multi-section (MRoPE) variants
// can be configured without changing the nn.RoPE call signature.
package rope

import "ocr-go-infer/ml"

// Type selects the backend rope kernel variant (normal, neox-style, or
// vision MRoPE with interleaved temporal/height/width sections).
type Type int

const (
	TypeNormal Type = iota
	TypeNeox
	TypeMRoPE
	TypeVision
)

// YaRN holds the "Yet another RoPE extensioN" long-context scaling
// parameters used by DeepSeek-V2/V3 style models.
type YaRN struct {
	OriginalContextLength int
	ExtrapolationFactor   float32
	AttentionFactor       float32
	BetaFast              float32
	BetaSlow              float32
}

// MRoPE holds the section split used by multi-axis (temporal, height,
// width) position embeddings for vision-aware decoders.
type MRoPE struct {
	Sections []int
}

// Options collects every optional RoPE parameter. Factors is a tensor of
// per-dimension frequency correction factors (NTK-by-parts); it is nil,
// meaning "no correction", when no option supplies one.
type Options struct {
	Type    Type
	Factors ml.Tensor

	YaRN  YaRN
	MRoPE MRoPE
}

func WithOriginalContextLength(n int) func(*Options) {
	return func(o *Options) { o.YaRN.OriginalContextLength = n }
}

func WithExtrapolationFactor(f float32) func(*Options) {
	return func(o *Options) { o.YaRN.ExtrapolationFactor = f }
}

func WithAttentionFactor(f float32) func(*Options) {
	return func(o *Options) { o.YaRN.AttentionFactor = f }
}

func WithBetaFast(f float32) func(*Options) {
	return func(o *Options) { o.YaRN.BetaFast = f }
}

func WithBetaSlow(f float32) func(*Options) {
	return func(o *Options) { o.YaRN.BetaSlow = f }
}

// WithVision selects the vision MRoPE kernel with the given axis sections.
func WithVision(sections []int) func(*Options) {
	return func(o *Options) {
		o.Type = TypeVision
		o.MRoPE.Sections = sections
	}
}

// WithTypeNeoX selects the split-half (GPT-NeoX style) rope kernel.
func WithTypeNeoX() func(*Options) {
	return func(o *Options) { o.Type = TypeNeox }
}
