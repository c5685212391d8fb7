package nn

import (
	"ocr-go-infer/kvcache"
	"ocr-go-infer/ml"
)

// Attention performs causal (or cache-masked) scaled dot-product attention
// for a single query/key/value triple, storing key/value in cache (when
// non-nil) and reading back the full history before computing the score.
//
// query, key and value are expected in [headDim, numHeads, seqLen] layout.
func Attention(ctx ml.Context, query, key, value ml.Tensor, scale float64, cache kvcache.Cache) ml.Tensor {
	return attention(ctx, query, key, value, nil, nil, scale, cache)
}

// AttentionWithVMLA is Attention for the Multi-Head Latent Attention layout,
// where value is the shared compressed latent (kvLoraRank-wide) and vmla is
// the per-head up-projection applied to the attention output before it is
// reshaped back to hiddenSize, matching DeepSeek-V2's absorbed-value trick.
func AttentionWithVMLA(ctx ml.Context, query, key, value, mask, vmla ml.Tensor, scale float64, cache kvcache.Cache) ml.Tensor {
	return attention(ctx, query, key, value, mask, vmla, scale, cache)
}

func attention(ctx ml.Context, query, key, value, mask, vmla ml.Tensor, scale float64, cache kvcache.Cache) ml.Tensor {
	var cacheConfigApplied bool

	if cache != nil {
		cache.Put(ctx, key, value)

		var cacheMask ml.Tensor
		key, value, cacheMask = cache.Get(ctx)
		if mask == nil {
			mask = cacheMask
		}
		cacheConfigApplied = true
	}

	if sdpa, ok := query.(ml.ScaledDotProductAttention); ok {
		return sdpa.ScaledDotProductAttention(ctx, key, value, mask, nil, vmla, scale, cacheConfigApplied)
	}

	query = query.Permute(ctx, 0, 2, 1, 3)
	key = key.Permute(ctx, 0, 2, 1, 3)
	value = value.Permute(ctx, 1, 2, 0, 3).Contiguous(ctx)

	kq := key.MulmatFullPrec(ctx, query)
	kq = kq.Scale(ctx, scale)
	if mask != nil {
		kq = kq.Add(ctx, mask)
	}
	kq = kq.Softmax(ctx)

	kqv := value.Mulmat(ctx, kq)
	if vmla != nil {
		kqv = vmla.Mulmat(ctx, kqv)
	}

	return kqv.Permute(ctx, 0, 2, 1, 3).Contiguous(ctx)
}
