// Modul: attention.go
// Beschreibung: Zwei Attention-Varianten fuer den DeepSeek-V2 Decoder:
// Split-Head MLA (wie deepseek2) und klassisches LLaMA-Stil GQA, gewaehlt
// anhand der Konfiguration (qk_nope_head_dim + qk_rope_head_dim > 0).

package deepseekocr

import (
	"ocr-go-infer/kvcache"
	"ocr-go-infer/ml"
	"ocr-go-infer/ml/nn"
)

// Attention holds every projection either variant might use; whichever
// the configuration selects leaves the other group of fields nil (the
// reflection-based loader skips absent gguf tensors, so nil is the normal
// state for the unused variant's weights).
type Attention struct {
	// split-head (DeepSeek-V2) variant
	Q *nn.Linear `gguf:"attn_q"`

	QA     *nn.Linear  `gguf:"attn_q_a"`
	QANorm *nn.RMSNorm `gguf:"attn_q_a_norm"`
	QB     *nn.Linear  `gguf:"attn_q_b"`

	KVA     *nn.Linear  `gguf:"attn_kv_a_mqa"`
	KVANorm *nn.RMSNorm `gguf:"attn_kv_a_norm"`
	KVB     *nn.Linear  `gguf:"attn_kv_b"`

	KB *nn.Linear `gguf:"attn_k_b"`
	VB *nn.Linear `gguf:"attn_v_b"`

	// LLaMA-style variant
	K *nn.Linear `gguf:"attn_k"`
	V *nn.Linear `gguf:"attn_v"`

	Output *nn.Linear `gguf:"attn_out,alt:attn_output"`
}

// Forward dispatches to the split-head or plain variant per opts.useSplitHeads.
func (attn *Attention) Forward(ctx ml.Context, hiddenStates, positions ml.Tensor, cache kvcache.Cache, opts *Options) ml.Tensor {
	if opts.useSplitHeads {
		return attn.forwardSplitHeads(ctx, hiddenStates, positions, cache, opts)
	}
	return attn.forwardPlain(ctx, hiddenStates, positions, cache, opts)
}

// forwardSplitHeads is the DeepSeek-V2 MLA/NOPE+ROPE variant.
func (attn *Attention) forwardSplitHeads(ctx ml.Context, hiddenStates, positions ml.Tensor, cache kvcache.Cache, opts *Options) ml.Tensor {
	seqLength := hiddenStates.Dim(1)

	var query ml.Tensor
	if opts.qLoraRank == 0 {
		query = attn.Q.Forward(ctx, hiddenStates)
	} else {
		query = attn.QA.Forward(ctx, hiddenStates)
		query = attn.QANorm.Forward(ctx, query, opts.eps)
		query = attn.QB.Forward(ctx, query)
	}

	query = query.Reshape(ctx, query.Dim(0)/opts.numHeads, opts.numHeads, seqLength)
	queryChunks := query.ChunkSections(ctx, 0, opts.qkNopeHeadDim, opts.qkRopeHeadDim)

	compressedKV := attn.KVA.Forward(ctx, hiddenStates)
	kPass := compressedKV.Slice(ctx, 0, 0, opts.kvLoraRank, 1)
	kRot := compressedKV.View(ctx,
		opts.kvLoraRank*compressedKV.Stride(0), opts.qkRopeHeadDim,
		compressedKV.Stride(1), 1,
		compressedKV.Stride(1), compressedKV.Dim(1),
	)

	qRot := opts.applyRotaryPositionEmbeddings(ctx, queryChunks[1], positions)
	kRot = opts.applyRotaryPositionEmbeddings(ctx, kRot, positions)
	kPass = attn.KVANorm.Forward(ctx, kPass, opts.eps)

	var attention ml.Tensor
	if !opts.isMLA {
		kPass = attn.KVB.Forward(ctx, kPass)

		kv := kPass.Reshape(ctx, kPass.Dim(0)/opts.numKVHeads, opts.numKVHeads, seqLength)
		kvChunks := kv.ChunkSections(ctx, 0, opts.kqNopeHeadDim, opts.vHeadDim)

		kRot = kRot.Repeat(ctx, 1, queryChunks[0].Dim(1))
		query = qRot.Concat(ctx, queryChunks[0], 0)
		key := kRot.Concat(ctx, kvChunks[0], 0)
		attention = nn.Attention(ctx, query, key, kvChunks[1], opts.kqScale, cache)
	} else {
		qPass := queryChunks[0].Permute(ctx, 0, 2, 1, 3)
		qPassAbsorb := attn.KB.Forward(ctx, qPass)
		qPassAbsorb = qPassAbsorb.Permute(ctx, 0, 2, 1, 3)

		query = qRot.Concat(ctx, qPassAbsorb, 0)
		kPass = kPass.Reshape(ctx, opts.kvLoraRank, 1, seqLength)
		key := kRot.Concat(ctx, kPass, 0)
		value := kPass

		attention = nn.AttentionWithVMLA(ctx, query, key, value, nil, attn.VB.Weight, opts.kqScale, cache)
	}

	attention = attention.Reshape(ctx, attention.Dim(0)*attention.Dim(1), seqLength)
	return attn.Output.Forward(ctx, attention)
}

// forwardPlain is the LLaMA-style separate q/k/v projection attention with
// full-head rope and optional grouped-query key/value sharing.
func (attn *Attention) forwardPlain(ctx ml.Context, hiddenStates, positions ml.Tensor, cache kvcache.Cache, opts *Options) ml.Tensor {
	seqLength := hiddenStates.Dim(1)
	headDim := opts.hiddenSize / opts.numHeads

	query := attn.Q.Forward(ctx, hiddenStates)
	key := attn.K.Forward(ctx, hiddenStates)
	value := attn.V.Forward(ctx, hiddenStates)

	query = query.Reshape(ctx, headDim, opts.numHeads, seqLength)
	key = key.Reshape(ctx, headDim, opts.numKVHeads, seqLength)
	value = value.Reshape(ctx, headDim, opts.numKVHeads, seqLength)

	query = opts.applyRotaryPositionEmbeddings(ctx, query, positions)
	key = opts.applyRotaryPositionEmbeddings(ctx, key, positions)

	attention := nn.Attention(ctx, query, key, value, opts.kqScale, cache)
	attention = attention.Reshape(ctx, attention.Dim(0)*attention.Dim(1), seqLength)
	return attn.Output.Forward(ctx, attention)
}
