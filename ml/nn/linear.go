// Package nn provides the reusable layer building blocks (projections,
// norms, embeddings, attention) that model packages assemble into a full
// architecture. Every layer is a thin struct around the raw ml.Tensor
// weights populated by the reflection-based loader in package model, so
// a zero-value *Linear etc. with a nil Weight means "not present in this
// checkpoint". Linear.Forward checks only Bias for nil, not Weight.
package nn

import "ocr-go-infer/ml"

// Linear is a weight matrix (and optional bias) applied as y = W^T x + b.
type Linear struct {
	Weight ml.Tensor `gguf:"weight"`
	Bias   ml.Tensor `gguf:"bias"`
}

func (m *Linear) Forward(ctx ml.Context, t ml.Tensor) ml.Tensor {
	t = m.Weight.Mulmat(ctx, t)
	if m.Bias != nil {
		t = t.Add(ctx, m.Bias)
	}

	return t
}
