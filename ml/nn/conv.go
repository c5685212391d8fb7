package nn

import "ocr-go-infer/ml"

// Conv2D is a 2D convolution kernel (patch embeddings, SAM neck/downsample
// convs). Bias is optional: several SAM/CLIP convolutions are bias-free.
type Conv2D struct {
	Weight ml.Tensor `gguf:"weight"`
	Bias   ml.Tensor `gguf:"bias"`
}

func (m *Conv2D) Forward(ctx ml.Context, t ml.Tensor, s0, s1, p0, p1, d0, d1 int) ml.Tensor {
	t = t.Conv2D(ctx, m.Weight, s0, s1, p0, p1, d0, d1)
	if m.Bias != nil {
		t = t.Add(ctx, m.Bias)
	}

	return t
}
