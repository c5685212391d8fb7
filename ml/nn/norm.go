package nn

import "ocr-go-infer/ml"

// RMSNorm is root-mean-square layer normalization (no mean subtraction,
// no bias), the variant used throughout the DeepSeek-V2 decoder.
type RMSNorm struct {
	Weight ml.Tensor `gguf:"weight"`
}

func (m *RMSNorm) Forward(ctx ml.Context, t ml.Tensor, eps float32) ml.Tensor {
	return t.RMSNorm(ctx, m.Weight, eps)
}

// LayerNorm is standard mean/variance layer normalization with an affine
// weight and bias, used by the SAM neck, the SAM and CLIP transformer
// blocks, and CLIP's pre/post layer norms.
type LayerNorm struct {
	Weight ml.Tensor `gguf:"weight"`
	Bias   ml.Tensor `gguf:"bias"`
}

func (m *LayerNorm) Forward(ctx ml.Context, t ml.Tensor, eps float32) ml.Tensor {
	return t.LayerNorm(ctx, m.Weight, m.Bias, eps)
}

// Embedding looks up rows of a token/position embedding table.
type Embedding struct {
	Weight ml.Tensor `gguf:"weight"`
}

func (m *Embedding) Forward(ctx ml.Context, ids ml.Tensor) ml.Tensor {
	return m.Weight.Rows(ctx, ids)
}
