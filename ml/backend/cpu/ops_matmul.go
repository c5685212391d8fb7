package cpu

import "ocr-go-infer/ml"

// Mulmat computes, for each (i2, i3) batch slice, out[m,n] = sum_k
// t[k,m] * t2[k,n] -- the ggml convention where the receiver plays the
// role of the (already transposed) weight matrix.
func (t *Tensor) Mulmat(ctx ml.Context, t2 ml.Tensor) ml.Tensor {
	b := t2.(*Tensor)
	k := t.ne[0]

	ne2 := max(t.ne[2], b.ne[2])
	ne3 := max(t.ne[3], b.ne[3])
	out := newTensor(t.ctx, ml.DTypeF32, []int{t.ne[1], b.ne[1], ne2, ne3})

	for i3 := 0; i3 < ne3; i3++ {
		for i2 := 0; i2 < ne2; i2++ {
			a2 := i2 % t.ne[2]
			a3 := i3 % t.ne[3]
			b2 := i2 % b.ne[2]
			b3 := i3 % b.ne[3]

			for n := 0; n < b.ne[1]; n++ {
				for m := 0; m < t.ne[1]; m++ {
					var sum float32
					for kk := 0; kk < k; kk++ {
						sum += t.get(kk, m, a2, a3) * b.get(kk, n, b2, b3)
					}
					out.set(m, n, i2, i3, sum)
				}
			}
		}
	}

	return out
}

// MulmatFullPrec is identical to Mulmat here: this backend always
// accumulates in float32, so there is no reduced-precision fast path to
// fall back from.
func (t *Tensor) MulmatFullPrec(ctx ml.Context, t2 ml.Tensor) ml.Tensor {
	return t.Mulmat(ctx, t2)
}

// MulmatID is a batched, per-row expert-selected matmul: t holds one
// weight matrix per expert stacked along dim 2, ids[e,s] selects which
// expert slice to use for output column (e, s).
func (t *Tensor) MulmatID(ctx ml.Context, t2, ids ml.Tensor) ml.Tensor {
	b := t2.(*Tensor)
	idx := ids.(*Tensor)

	k := t.ne[0]
	out := newTensor(t.ctx, ml.DTypeF32, []int{t.ne[1], idx.ne[0], idx.ne[1]})

	for s := 0; s < idx.ne[1]; s++ {
		for e := 0; e < idx.ne[0]; e++ {
			expert := int(idx.get(e, s, 0, 0))

			for m := 0; m < t.ne[1]; m++ {
				var sum float32
				for kk := 0; kk < k; kk++ {
					sum += t.get(kk, m, expert, 0) * b.get(kk, 0, s, 0)
				}
				out.set(m, e, s, 0, sum)
			}
		}
	}

	return out
}

// AddID adds a per-expert bias (receiver, shape [dim, numExperts]) into
// t2 (shape [dim, numExpertsUsed, seqLen]) selected by ids.
func (t *Tensor) AddID(ctx ml.Context, t2, ids ml.Tensor) ml.Tensor {
	b := t2.(*Tensor)
	idx := ids.(*Tensor)

	out := newTensor(t.ctx, b.dtype, b.Shape())
	for s := 0; s < idx.ne[1]; s++ {
		for e := 0; e < idx.ne[0]; e++ {
			expert := int(idx.get(e, s, 0, 0))
			for m := 0; m < b.ne[0]; m++ {
				out.set(m, e, s, 0, b.get(m, e, s, 0)+t.get(m, expert, 0, 0))
			}
		}
	}
	return out
}
