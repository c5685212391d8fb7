// Modul: clip.go
// Beschreibung: CLIP-Vision-Transformer, der auf den SAM-Patch-Tokens
// aufsetzt: Klassentoken, interpolierte Positions-Embeddings, Pre-LayerNorm,
// gepackte QKV-Attention-Bloecke mit QuickGELU-MLP.

package deepseekocr

import (
	"ocr-go-infer/ml"
	"ocr-go-infer/ml/nn"
)

// clipAttention is standard (non-causal, no relative position bias)
// multi-head self-attention over the class token plus patch tokens.
type clipAttention struct {
	QKV    *nn.Linear `gguf:"attn_in_proj"`
	Output *nn.Linear `gguf:"attn_out_proj"`
}

func (a *clipAttention) Forward(ctx ml.Context, x ml.Tensor, opts *CLIPOptions) ml.Tensor {
	headDim := opts.width / opts.heads
	seqLen := x.Dim(1)

	qkv := a.QKV.Forward(ctx, x)
	qkv = qkv.Reshape(ctx, headDim, 3, opts.heads, seqLen)
	chunks := qkv.ChunkSections(ctx, 1, 1, 1, 1)
	q := chunks[0].Reshape(ctx, headDim, opts.heads, seqLen)
	k := chunks[1].Reshape(ctx, headDim, opts.heads, seqLen)
	v := chunks[2].Reshape(ctx, headDim, opts.heads, seqLen)

	scale := 1.0 / sqrtf(float32(headDim))
	attention := nn.Attention(ctx, q, k, v, float64(scale), nil)
	attention = attention.Reshape(ctx, attention.Dim(0)*attention.Dim(1), seqLen)
	return a.Output.Forward(ctx, attention)
}

// clipMLP is the QuickGELU-gated feed-forward CLIP uses in place of GELU.
type clipMLP struct {
	FC1 *nn.Linear `gguf:"mlp_fc1"`
	FC2 *nn.Linear `gguf:"mlp_fc2"`
}

func (m *clipMLP) Forward(ctx ml.Context, x ml.Tensor) ml.Tensor {
	return m.FC2.Forward(ctx, m.FC1.Forward(ctx, x).QuickGELU(ctx))
}

type clipBlock struct {
	Norm1     *nn.LayerNorm  `gguf:"ln_1"`
	Attention *clipAttention `gguf:"attn"`
	Norm2     *nn.LayerNorm  `gguf:"ln_2"`
	MLP       *clipMLP       `gguf:"mlp"`
}

func (b *clipBlock) Forward(ctx ml.Context, x ml.Tensor, opts *CLIPOptions) ml.Tensor {
	residual := x
	x = b.Norm1.Forward(ctx, x, opts.eps)
	x = b.Attention.Forward(ctx, x, opts)
	x = x.Add(ctx, residual)

	residual = x
	x = b.Norm2.Forward(ctx, x, opts.eps)
	x = b.MLP.Forward(ctx, x)
	return x.Add(ctx, residual)
}

// CLIPModel refines SAM's patch tokens with a second, global-attention-only
// transformer, prefixing a learned class token and adding its own
// interpolated absolute position embeddings.
type CLIPModel struct {
	ClassEmbed    ml.Tensor  `gguf:"class_embedding"`
	PatchEmbed    *nn.Conv2D `gguf:"patch_embed"`
	PositionEmbed ml.Tensor  `gguf:"position_embedding"`

	PreNorm *nn.LayerNorm `gguf:"pre_layernorm"`

	Blocks []clipBlock `gguf:"blocks"`

	*CLIPOptions
}

// Forward accepts SAM's output patch-token sequence reshaped back to an
// image grid (w, h, channels, 1), re-patchifies it, prepends the class
// token, adds position embeddings, runs the transformer and drops the
// class token again, returning [channels, w*h].
func (c *CLIPModel) Forward(ctx ml.Context, pixelValues ml.Tensor) ml.Tensor {
	stride := c.patchSize
	x := c.PatchEmbed.Forward(ctx, pixelValues, stride, stride, 0, 0, 1, 1)

	h, w := x.Dim(1), x.Dim(0)
	channels := x.Dim(2)
	x = x.Reshape(ctx, channels, w*h)

	classToken := c.ClassEmbed.Reshape(ctx, channels, 1)
	x = classToken.Concat(ctx, x, 1)

	pos := interpolateClassedPosEmbed(ctx, c.PositionEmbed, w, h, channels)
	x = x.Add(ctx, pos)

	x = c.PreNorm.Forward(ctx, x, c.eps)
	for i := range c.Blocks {
		x = c.Blocks[i].Forward(ctx, x, c.CLIPOptions)
	}

	return x.Slice(ctx, 1, 1, x.Dim(1), 1)
}

// interpolateClassedPosEmbed resizes the patch portion of the stored
// position embedding table (which has one extra leading row for the class
// token) to the current w x h grid, leaving the class token's row intact.
func interpolateClassedPosEmbed(ctx ml.Context, stored ml.Tensor, w, h, channels int) ml.Tensor {
	total := stored.Dim(1)
	side := isqrt(total - 1)

	classRow := stored.Slice(ctx, 1, 0, 1, 1)
	patchRows := stored.Slice(ctx, 1, 1, total, 1)

	grid := patchRows.Reshape(ctx, channels, side, side, 1)
	resized := grid.Interpolate(ctx, [4]int{channels, w, h, 1}, ml.SamplingModeBilinear)
	resized = resized.Reshape(ctx, channels, w*h)

	return classRow.Concat(ctx, resized, 1)
}

func isqrt(n int) int {
	r := 0
	for r*r < n {
		r++
	}
	return r
}
