package nn

import (
	"ocr-go-infer/ml"
	"ocr-go-infer/ml/nn/rope"
)

// roper is implemented by backend tensors that can apply a fused rotary
// embedding kernel in place of the Sin/Cos/Mul decomposition. The cpu
// backend and any future accelerated backend both satisfy it.
type roper interface {
	RoPE(ctx ml.Context, positions ml.Tensor, ropeDim int, ropeBase, ropeScale float32, options ...func(*rope.Options)) ml.Tensor
}

// RoPE applies rotary position embeddings to t (shape [headDim, numHeads,
// seqLen, ...]) using the position ids in positions.
func RoPE(ctx ml.Context, t, positions ml.Tensor, ropeDim int, ropeBase, ropeScale float32, options ...func(*rope.Options)) ml.Tensor {
	return t.(roper).RoPE(ctx, positions, ropeDim, ropeBase, ropeScale, options...)
}
