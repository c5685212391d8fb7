// Package deepseekocr implements the DeepSeek-OCR architecture: a SAM
// vision backbone feeding a CLIP vision transformer, fused and projected
// into a DeepSeek-V2 mixture-of-experts causal decoder. It follows the
// structure deepseek2 already establishes for the language side and adds
// the vision encoder and multimodal fusion deepseek2 doesn't need.
package deepseekocr

import (
	"math"

	"ocr-go-infer/internal/debugpolicy"
	"ocr-go-infer/ml"
	"ocr-go-infer/ml/nn"
	"ocr-go-infer/ml/nn/rope"
)

// scoringFunc selects how router logits are turned into per-expert scores.
type scoringFunc int

const (
	scoringSoftmax scoringFunc = iota
	scoringSigmoid
)

// topkMethod selects how the routed experts are chosen from the scores.
type topkMethod int

const (
	topkGreedy topkMethod = iota
	topkNoAuxTC
)

// Options holds every configurable parameter of the language decoder,
// mirroring deepseek2.Options but adding the fields needed for
// group-constrained ("noaux_tc") expert routing and the plain LLaMA-style
// attention variant, both of which deepseek2 doesn't implement.
type Options struct {
	// attention variant
	useSplitHeads bool // true: DeepSeek-V2 split NOPE/ROPE heads; false: LLaMA-style

	hiddenSize,
	numHeads,
	numKVHeads,
	originalContextLength int

	eps,
	ropeBase,
	ropeScale float32
	kqScale float64

	// split-head (MLA) dimensions, only meaningful when useSplitHeads
	isMLA bool
	kvLoraRank,
	qkNopeHeadDim,
	qkRopeHeadDim,
	kqNopeHeadDim,
	qkHeadDim,
	qLoraRank,
	vHeadDim int

	// MoE
	numExperts,
	numExpertsUsed,
	numGroups,
	groupsUsed int
	normTopKProb        bool
	routedScalingFactor float32
	scoring             scoringFunc
	topkSelect          topkMethod
}

func (o Options) applyRotaryPositionEmbeddings(ctx ml.Context, t, p ml.Tensor) ml.Tensor {
	ropeDim := o.qkRopeHeadDim
	if !o.useSplitHeads {
		ropeDim = o.hiddenSize / o.numHeads
	}

	ropeScale := o.ropeScale
	if override := debugpolicy.Get().RopeScaleOverride; override != 0 {
		ropeScale = override
	}

	return nn.RoPE(ctx, t, p, ropeDim, o.ropeBase, 1./ropeScale,
		rope.WithOriginalContextLength(o.originalContextLength),
		rope.WithExtrapolationFactor(1.),
		rope.WithAttentionFactor(float32(1.0/(1.0+0.1*math.Log(float64(max(ropeScale, 1)))))),
	)
}

// SAMOptions configures the SAM image encoder.
type SAMOptions struct {
	width, depth, numHeads int
	patchSize, imageSize   int
	mlpRatio               float32
	windowSize             int
	globalAttnIndexes      []int32
	downsampleChannels     []uint32
	eps                    float32
}

// CLIPOptions configures the CLIP vision transformer.
type CLIPOptions struct {
	width, layers, heads int
	imageSize, patchSize int
	mlpRatio             float32
	eps                  float32
}

// ProjectorOptions configures the SAM+CLIP fusion linear projector.
type ProjectorOptions struct {
	inputDim, outputDim int
	downsampleRatio     float32
}

// VisionOptions bundles the whole deep-encoder configuration.
type VisionOptions struct {
	SAM       SAMOptions
	CLIP      CLIPOptions
	Projector ProjectorOptions
}
