// Modul: layer.go
// Beschreibung: Ein Decoder-Block des Sprachmodells: Attention-Norm,
// Attention, MLP-Norm, dichtes oder MoE-MLP.

package deepseekocr

import (
	"ocr-go-infer/kvcache"
	"ocr-go-infer/ml"
	"ocr-go-infer/ml/nn"
)

// Layer is one decoder block.
type Layer struct {
	AttnNorm  *nn.RMSNorm `gguf:"attn_norm"`
	Attention *Attention

	MLPNorm *nn.RMSNorm `gguf:"ffn_norm"`
	MLP     MLP
}

func (l *Layer) Forward(ctx ml.Context, hiddenStates, positions, outputs ml.Tensor, cache kvcache.Cache, opts *Options) ml.Tensor {
	residual := hiddenStates

	hiddenStates = l.AttnNorm.Forward(ctx, hiddenStates, opts.eps)
	hiddenStates = l.Attention.Forward(ctx, hiddenStates, positions, cache, opts)

	if outputs != nil {
		hiddenStates = hiddenStates.Rows(ctx, outputs)
		residual = residual.Rows(ctx, outputs)
	}
	hiddenStates = hiddenStates.Add(ctx, residual)

	residual = hiddenStates
	hiddenStates = l.MLPNorm.Forward(ctx, hiddenStates, opts.eps)
	hiddenStates = l.MLP.Forward(ctx, hiddenStates, opts)
	return hiddenStates.Add(ctx, residual)
}
