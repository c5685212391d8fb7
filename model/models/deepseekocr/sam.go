// Modul: sam.go
// Beschreibung: SAM-Bild-Encoder: Patch-Embedding, interpolierte absolute
// Positions-Embeddings, Fenster-/Global-Attention-Bloecke mit zerlegten
// relativen Positions-Biases, Neck und zwei Downsample-Stufen.

package deepseekocr

import (
	"math"
	"slices"

	"ocr-go-infer/ml"
	"ocr-go-infer/ml/nn"
)

// samAttention is windowed or global multi-head attention with decomposed
// relative position biases along the height and width axes.
type samAttention struct {
	QKV    *nn.Linear `gguf:"attn_qkv"`
	Output *nn.Linear `gguf:"attn_proj"`

	RelPosH ml.Tensor `gguf:"attn_rel_pos_h"`
	RelPosW ml.Tensor `gguf:"attn_rel_pos_w"`
}

func (a *samAttention) Forward(ctx ml.Context, x ml.Tensor, h, w int, opts *SAMOptions) ml.Tensor {
	headDim := opts.width / opts.numHeads
	seqLen := h * w

	qkv := a.QKV.Forward(ctx, x)
	qkv = qkv.Reshape(ctx, headDim, 3, opts.numHeads, seqLen)
	chunks := qkv.ChunkSections(ctx, 1, 1, 1, 1)
	q := chunks[0].Reshape(ctx, headDim, opts.numHeads, seqLen)
	k := chunks[1].Reshape(ctx, headDim, opts.numHeads, seqLen)
	v := chunks[2].Reshape(ctx, headDim, opts.numHeads, seqLen)

	scale := 1.0 / sqrtf(float32(headDim))

	var bias ml.Tensor
	if a.RelPosH != nil && a.RelPosW != nil {
		biasData := decomposedRelativeBias(q.Floats(), h, w, h, w, headDim, opts.numHeads,
			a.RelPosH.Floats(), a.RelPosW.Floats())
		bias = ctx.Input().FromFloats(biasData, seqLen, seqLen, opts.numHeads, 1)
	}

	attention := nn.AttentionWithVMLA(ctx, q, k, v, bias, nil, float64(scale), nil)
	attention = attention.Reshape(ctx, attention.Dim(0)*attention.Dim(1), seqLen)
	return a.Output.Forward(ctx, attention)
}

// samMLP is the post-attention feed-forward with GELU.
type samMLP struct {
	FC1 *nn.Linear `gguf:"fc1"`
	FC2 *nn.Linear `gguf:"fc2"`
}

func (m *samMLP) Forward(ctx ml.Context, x ml.Tensor) ml.Tensor {
	return m.FC2.Forward(ctx, m.FC1.Forward(ctx, x).GELU(ctx))
}

// samBlock is one pre-norm transformer block; Forward partitions into
// non-overlapping windows unless this block's index is a global-attention
// index.
type samBlock struct {
	Norm1     *nn.LayerNorm `gguf:"norm1"`
	Attention *samAttention `gguf:"attn"`
	Norm2     *nn.LayerNorm `gguf:"norm2"`
	MLP       *samMLP       `gguf:"mlp"`
}

func (b *samBlock) Forward(ctx ml.Context, x ml.Tensor, h, w int, global bool, opts *SAMOptions) ml.Tensor {
	residual := x
	x = b.Norm1.Forward(ctx, x, opts.eps)

	if global || opts.windowSize == 0 {
		x = b.Attention.Forward(ctx, x, h, w, opts)
	} else {
		x = b.windowedForward(ctx, x, h, w, opts)
	}
	x = x.Add(ctx, residual)

	residual = x
	x = b.Norm2.Forward(ctx, x, opts.eps)
	x = b.MLP.Forward(ctx, x)
	return x.Add(ctx, residual)
}

// windowedForward partitions the h*w sequence into windowSize x windowSize
// windows (zero-padded symmetrically when h or w isn't a multiple), runs
// attention independently per window, then reassembles the sequence,
// discarding the padding. Partitioning is done on raw floats: there is no
// single generic tensor reshape that turns a padded 2D grid into a batch
// of windows when the grid size isn't a multiple of the window, so this
// mirrors how the gating selection in mlp.go handles shapes with no clean
// tensor-op expression.
func (b *samBlock) windowedForward(ctx ml.Context, x ml.Tensor, h, w int, opts *SAMOptions) ml.Tensor {
	ws := opts.windowSize
	padH := (ws - h%ws) % ws
	padW := (ws - w%ws) % ws
	hp, wp := h+padH, w+padW

	channels := x.Dim(0)
	src := x.Floats()

	windowsPerRow := wp / ws
	windowsPerCol := hp / ws
	numWindows := windowsPerRow * windowsPerCol
	winLen := ws * ws

	padded := make([]float32, numWindows*winLen*channels)
	for y := 0; y < hp; y++ {
		wy := y / ws
		ly := y % ws
		for x0 := 0; x0 < wp; x0++ {
			wx := x0 / ws
			lx := x0 % ws
			win := wy*windowsPerRow + wx
			dst := (win*winLen + ly*ws + lx) * channels
			if y < h && x0 < w {
				src0 := (y*w + x0) * channels
				copy(padded[dst:dst+channels], src[src0:src0+channels])
			}
		}
	}

	windowed := ctx.Input().FromFloats(padded, channels, winLen*numWindows)
	out := b.Attention.Forward(ctx, windowed, ws, ws, opts)
	outData := out.Floats()

	unpadded := make([]float32, h*w*channels)
	for y := 0; y < h; y++ {
		wy := y / ws
		ly := y % ws
		for x0 := 0; x0 < w; x0++ {
			wx := x0 / ws
			lx := x0 % ws
			win := wy*windowsPerRow + wx
			src0 := (win*winLen + ly*ws + lx) * channels
			dst := (y*w + x0) * channels
			copy(unpadded[dst:dst+channels], outData[src0:src0+channels])
		}
	}

	return ctx.Input().FromFloats(unpadded, channels, h*w)
}

// SAMModel is the custom SAM image encoder.
type SAMModel struct {
	PatchEmbed *nn.Conv2D `gguf:"patch_embed.proj"`
	PosEmbed   ml.Tensor  `gguf:"pos_embed"`

	Blocks []samBlock `gguf:"blocks"`

	NeckConv1 *nn.Conv2D    `gguf:"neck.0"`
	NeckNorm1 *nn.LayerNorm `gguf:"neck.1"`
	NeckConv2 *nn.Conv2D    `gguf:"neck.2"`
	NeckNorm2 *nn.LayerNorm `gguf:"neck.3"`

	Downsample0 *nn.Conv2D `gguf:"net_2"`
	Downsample1 *nn.Conv2D `gguf:"net_3"`

	*SAMOptions
}

// Forward runs one tile (NHWC, batch 1) through SAM and returns its
// patch-token sequence in [channels, h*w] layout, post-neck/downsample.
func (sam *SAMModel) Forward(ctx ml.Context, pixelValues ml.Tensor) ml.Tensor {
	stride := sam.patchSize
	x := sam.PatchEmbed.Forward(ctx, pixelValues, stride, stride, 0, 0, 1, 1)

	h, w := x.Dim(1), x.Dim(0)
	x = x.Reshape(ctx, x.Dim(2), w*h)

	pos := interpolatePosEmbed(ctx, sam.PosEmbed, w, h, x.Dim(0))
	x = x.Add(ctx, pos)

	for i := range sam.Blocks {
		global := slices.Contains(sam.globalAttnIndexes, int32(i))
		x = sam.Blocks[i].Forward(ctx, x, h, w, global, sam.SAMOptions)
	}

	x = x.Reshape(ctx, x.Dim(0), w, h, 1)
	x = sam.NeckConv1.Forward(ctx, x, 1, 1, 0, 0, 1, 1)
	x = channelLastLayerNorm(ctx, x, sam.NeckNorm1, sam.eps)
	x = sam.NeckConv2.Forward(ctx, x, 1, 1, 1, 1, 1, 1)
	x = channelLastLayerNorm(ctx, x, sam.NeckNorm2, sam.eps)

	x = sam.Downsample0.Forward(ctx, x, 2, 2, 1, 1, 1, 1)
	x = sam.Downsample1.Forward(ctx, x, 2, 2, 1, 1, 1, 1)

	channels := x.Dim(2)
	w, h = x.Dim(0), x.Dim(1)
	return x.Reshape(ctx, channels, w*h)
}

// interpolatePosEmbed resizes the stored square grid of absolute position
// embeddings to the current w x h feature-map side. The tensor runtime
// only offers nearest/bilinear sampling (ml.SamplingMode), so this uses
// bilinear in place of the reference's bicubic resize.
func interpolatePosEmbed(ctx ml.Context, stored ml.Tensor, w, h, channels int) ml.Tensor {
	side := stored.Dim(1)
	grid := stored.Reshape(ctx, channels, side, side, 1)
	resized := grid.Interpolate(ctx, [4]int{channels, w, h, 1}, ml.SamplingModeBilinear)
	return resized.Reshape(ctx, channels, w*h)
}

func sqrtf(x float32) float32 {
	return float32(math.Sqrt(float64(x)))
}

// channelLastLayerNorm normalizes over the channel axis of a (w, h,
// channels, batch) feature map by permuting channels to the fastest
// dimension, since nn.LayerNorm always normalizes over dim 0.
func channelLastLayerNorm(ctx ml.Context, x ml.Tensor, norm *nn.LayerNorm, eps float32) ml.Tensor {
	w, h, c, n := x.Dim(0), x.Dim(1), x.Dim(2), x.Dim(3)
	x = x.Permute(ctx, 2, 0, 1, 3).Contiguous(ctx)
	x = norm.Forward(ctx, x, eps)
	return x.Permute(ctx, 1, 2, 0, 3).Contiguous(ctx).Reshape(ctx, w, h, c, n)
}
