package cpu

import (
	"math"
	"sort"

	"ocr-go-infer/ml"
	"ocr-go-infer/ml/nn/rope"
)

func (t *Tensor) Softmax(ctx ml.Context) ml.Tensor {
	out := newTensor(t.ctx, t.dtype, t.Shape())

	for i3 := 0; i3 < t.ne[3]; i3++ {
		for i2 := 0; i2 < t.ne[2]; i2++ {
			for i1 := 0; i1 < t.ne[1]; i1++ {
				max32 := float32(math.Inf(-1))
				for i0 := 0; i0 < t.ne[0]; i0++ {
					if v := t.get(i0, i1, i2, i3); v > max32 {
						max32 = v
					}
				}

				var sum float32
				for i0 := 0; i0 < t.ne[0]; i0++ {
					e := float32(math.Exp(float64(t.get(i0, i1, i2, i3) - max32)))
					out.set(i0, i1, i2, i3, e)
					sum += e
				}

				for i0 := 0; i0 < t.ne[0]; i0++ {
					out.set(i0, i1, i2, i3, out.get(i0, i1, i2, i3)/sum)
				}
			}
		}
	}

	return out
}

func (t *Tensor) L2Norm(ctx ml.Context, eps float32) ml.Tensor {
	out := newTensor(t.ctx, t.dtype, t.Shape())

	for i3 := 0; i3 < t.ne[3]; i3++ {
		for i2 := 0; i2 < t.ne[2]; i2++ {
			for i1 := 0; i1 < t.ne[1]; i1++ {
				var sumsq float32
				for i0 := 0; i0 < t.ne[0]; i0++ {
					v := t.get(i0, i1, i2, i3)
					sumsq += v * v
				}
				norm := float32(math.Sqrt(float64(sumsq) + float64(eps)))

				for i0 := 0; i0 < t.ne[0]; i0++ {
					out.set(i0, i1, i2, i3, t.get(i0, i1, i2, i3)/norm)
				}
			}
		}
	}

	return out
}

func (t *Tensor) RMSNorm(ctx ml.Context, weight ml.Tensor, eps float32) ml.Tensor {
	w, hasWeight := weight.(*Tensor)
	out := newTensor(t.ctx, t.dtype, t.Shape())

	for i3 := 0; i3 < t.ne[3]; i3++ {
		for i2 := 0; i2 < t.ne[2]; i2++ {
			for i1 := 0; i1 < t.ne[1]; i1++ {
				var sumsq float32
				for i0 := 0; i0 < t.ne[0]; i0++ {
					v := t.get(i0, i1, i2, i3)
					sumsq += v * v
				}
				scale := float32(1.0 / math.Sqrt(float64(sumsq)/float64(t.ne[0])+float64(eps)))

				for i0 := 0; i0 < t.ne[0]; i0++ {
					v := t.get(i0, i1, i2, i3) * scale
					if hasWeight {
						v *= w.get(i0, 0, 0, 0)
					}
					out.set(i0, i1, i2, i3, v)
				}
			}
		}
	}

	return out
}

func (t *Tensor) LayerNorm(ctx ml.Context, weight, bias ml.Tensor, eps float32) ml.Tensor {
	w, hasWeight := weight.(*Tensor)
	b, hasBias := bias.(*Tensor)
	out := newTensor(t.ctx, t.dtype, t.Shape())

	for i3 := 0; i3 < t.ne[3]; i3++ {
		for i2 := 0; i2 < t.ne[2]; i2++ {
			for i1 := 0; i1 < t.ne[1]; i1++ {
				var mean float32
				for i0 := 0; i0 < t.ne[0]; i0++ {
					mean += t.get(i0, i1, i2, i3)
				}
				mean /= float32(t.ne[0])

				var variance float32
				for i0 := 0; i0 < t.ne[0]; i0++ {
					d := t.get(i0, i1, i2, i3) - mean
					variance += d * d
				}
				variance /= float32(t.ne[0])
				inv := float32(1.0 / math.Sqrt(float64(variance)+float64(eps)))

				for i0 := 0; i0 < t.ne[0]; i0++ {
					v := (t.get(i0, i1, i2, i3) - mean) * inv
					if hasWeight {
						v *= w.get(i0, 0, 0, 0)
					}
					if hasBias {
						v += b.get(i0, 0, 0, 0)
					}
					out.set(i0, i1, i2, i3, v)
				}
			}
		}
	}

	return out
}

func mapElements(t *Tensor, fn func(float32) float32) *Tensor {
	out := newTensor(t.ctx, t.dtype, t.Shape())
	out.forEach(func(i0, i1, i2, i3 int) {
		out.set(i0, i1, i2, i3, fn(t.get(i0, i1, i2, i3)))
	})
	return out
}

func sigmoid(x float32) float32 {
	return float32(1 / (1 + math.Exp(float64(-x))))
}

func (t *Tensor) Sigmoid(ctx ml.Context) ml.Tensor { return mapElements(t, sigmoid) }
func (t *Tensor) Sin(ctx ml.Context) ml.Tensor     { return mapElements(t, func(x float32) float32 { return float32(math.Sin(float64(x))) }) }
func (t *Tensor) Cos(ctx ml.Context) ml.Tensor     { return mapElements(t, func(x float32) float32 { return float32(math.Cos(float64(x))) }) }
func (t *Tensor) Tanh(ctx ml.Context) ml.Tensor    { return mapElements(t, func(x float32) float32 { return float32(math.Tanh(float64(x))) }) }

func gelu(x float32) float32 {
	return 0.5 * x * (1 + float32(math.Erf(float64(x)/math.Sqrt2)))
}

func quickGelu(x float32) float32 {
	return x * sigmoid(1.702*x)
}

func silu(x float32) float32 {
	return x * sigmoid(x)
}

func relu(x float32) float32 {
	return max(x, 0)
}

func glu(ctx ml.Context, t *Tensor, up []ml.Tensor, act func(float32) float32) ml.Tensor {
	if len(up) > 0 {
		gated := mapElements(t, act)
		return gated.Mul(ctx, up[0])
	}
	return mapElements(t, act)
}

func (t *Tensor) GELU(ctx ml.Context, up ...ml.Tensor) ml.Tensor      { return glu(ctx, t, up, gelu) }
func (t *Tensor) QuickGELU(ctx ml.Context, up ...ml.Tensor) ml.Tensor { return glu(ctx, t, up, quickGelu) }
func (t *Tensor) SILU(ctx ml.Context, up ...ml.Tensor) ml.Tensor      { return glu(ctx, t, up, silu) }
func (t *Tensor) RELU(ctx ml.Context, up ...ml.Tensor) ml.Tensor      { return glu(ctx, t, up, relu) }

// SILUAlphaLimit implements the GPT-OSS clipped SwiGLU variant: gate is
// clipped to (-inf, limit], up is clipped to [-limit, limit].
func (t *Tensor) SILUAlphaLimit(ctx ml.Context, up ml.Tensor, alpha, limit float32) ml.Tensor {
	u := up.(*Tensor)
	out := newTensor(t.ctx, t.dtype, t.Shape())

	out.forEach(func(i0, i1, i2, i3 int) {
		gate := min(t.get(i0, i1, i2, i3), limit)
		upv := max(min(u.get(i0, i1, i2, i3), limit), -limit)
		out.set(i0, i1, i2, i3, gate*sigmoid(alpha*gate)*(upv+1))
	})
	return out
}

// Conv2D treats the receiver as the NHWC-ish input [W, H, Cin, N] and
// weight as [KW, KH, Cin, Cout], matching the layout convention used
// throughout the SAM and CLIP patch-embedding code.
func (t *Tensor) Conv2D(ctx ml.Context, weight ml.Tensor, s0, s1, p0, p1, d0, d1 int) ml.Tensor {
	w := weight.(*Tensor)
	iw, ih, cin, n := t.ne[0], t.ne[1], t.ne[2], t.ne[3]
	kw, kh, _, cout := w.ne[0], w.ne[1], w.ne[2], w.ne[3]

	ow := (iw+2*p0-d0*(kw-1)-1)/s0 + 1
	oh := (ih+2*p1-d1*(kh-1)-1)/s1 + 1

	out := newTensor(t.ctx, ml.DTypeF32, []int{ow, oh, cout, n})

	for b := 0; b < n; b++ {
		for oc := 0; oc < cout; oc++ {
			for oy := 0; oy < oh; oy++ {
				for ox := 0; ox < ow; ox++ {
					var sum float32
					for ic := 0; ic < cin; ic++ {
						for ky := 0; ky < kh; ky++ {
							iy := oy*s1 - p1 + ky*d1
							if iy < 0 || iy >= ih {
								continue
							}
							for kx := 0; kx < kw; kx++ {
								ix := ox*s0 - p0 + kx*d0
								if ix < 0 || ix >= iw {
									continue
								}
								sum += t.get(ix, iy, ic, b) * w.get(kx, ky, ic, oc)
							}
						}
					}
					out.set(ox, oy, oc, b, sum)
				}
			}
		}
	}

	return out
}

func (t *Tensor) Conv3D(ctx ml.Context, weight ml.Tensor, c, s0, s1, s2, p0, p1, p2, d0, d1, d2 int) ml.Tensor {
	panic("cpu: Conv3D is unused by the OCR decoder/vision stack")
}

func (t *Tensor) SSMConv(ctx ml.Context, kernel ml.Tensor) ml.Tensor {
	panic("cpu: SSMConv (Mamba-style state-space conv) has no caller in this model")
}

func (t *Tensor) AvgPool2D(ctx ml.Context, k, s int, p float32) ml.Tensor {
	panic("cpu: AvgPool2D has no caller in this model")
}

func (t *Tensor) IM2Col(ctx ml.Context, weight ml.Tensor, s0, s1, p0, p1, d0, d1 int) ml.Tensor {
	panic("cpu: IM2Col has no caller; Conv2D is used directly instead")
}

func (t *Tensor) Interpolate(ctx ml.Context, dims [4]int, samplingMode ml.SamplingMode) ml.Tensor {
	out := newTensor(t.ctx, t.dtype, dims[:t.nd])

	out.forEach(func(i0, i1, i2, i3 int) {
		var sx, sy float32
		if dims[0] > 1 {
			sx = float32(i0) * float32(t.ne[0]-1) / float32(dims[0]-1)
		}
		if dims[1] > 1 {
			sy = float32(i1) * float32(t.ne[1]-1) / float32(dims[1]-1)
		}

		switch samplingMode {
		case ml.SamplingModeNearest:
			out.set(i0, i1, i2, i3, t.get(int(sx+0.5), int(sy+0.5), i2, i3))
		default: // bilinear
			x0, y0 := int(sx), int(sy)
			x1, y1 := min(x0+1, t.ne[0]-1), min(y0+1, t.ne[1]-1)
			fx, fy := sx-float32(x0), sy-float32(y0)

			v00 := t.get(x0, y0, i2, i3)
			v10 := t.get(x1, y0, i2, i3)
			v01 := t.get(x0, y1, i2, i3)
			v11 := t.get(x1, y1, i2, i3)

			top := v00 + (v10-v00)*fx
			bot := v01 + (v11-v01)*fx
			out.set(i0, i1, i2, i3, top+(bot-top)*fy)
		}
	})

	return out
}

// TopK returns, for each column (dims 1..3), the indices of the k
// largest values along dim0 in descending order.
func (t *Tensor) TopK(ctx ml.Context, k int) ml.Tensor {
	shape := t.Shape()
	shape[0] = k
	out := newTensor(t.ctx, ml.DTypeI32, shape)

	for i3 := 0; i3 < t.ne[3]; i3++ {
		for i2 := 0; i2 < t.ne[2]; i2++ {
			for i1 := 0; i1 < t.ne[1]; i1++ {
				idx := make([]int, t.ne[0])
				for i := range idx {
					idx[i] = i
				}
				sort.Slice(idx, func(a, b int) bool {
					return t.get(idx[a], i1, i2, i3) > t.get(idx[b], i1, i2, i3)
				})
				for i := 0; i < k; i++ {
					out.set(i, i1, i2, i3, float32(idx[i]))
				}
			}
		}
	}

	return out
}

// Argsort returns indices that would sort dim0 in ascending order.
func (t *Tensor) Argsort(ctx ml.Context) ml.Tensor {
	out := newTensor(t.ctx, ml.DTypeI32, t.Shape())

	for i3 := 0; i3 < t.ne[3]; i3++ {
		for i2 := 0; i2 < t.ne[2]; i2++ {
			for i1 := 0; i1 < t.ne[1]; i1++ {
				idx := make([]int, t.ne[0])
				for i := range idx {
					idx[i] = i
				}
				sort.Slice(idx, func(a, b int) bool {
					return t.get(idx[a], i1, i2, i3) < t.get(idx[b], i1, i2, i3)
				})
				for i, v := range idx {
					out.set(i, i1, i2, i3, float32(v))
				}
			}
		}
	}

	return out
}

// RoPE applies rotary position embeddings to pairs (i, i+ropeDim/2) along
// dim0, the NeoX/DeepSeek-style split-half convention. YaRN's
// OriginalContextLength/BetaFast/BetaSlow ramp is intentionally not
// modeled; only the uniform frequency scale and attention-factor mscale
// are applied, since DeepSeek-OCR's checkpoints only ever exercise the
// constant-scale regime (extrapolation factor fixed at 1 by the caller).
func (t *Tensor) RoPE(ctx ml.Context, positions ml.Tensor, ropeDim int, ropeBase, ropeScale float32, options ...func(*rope.Options)) ml.Tensor {
	opts := rope.Options{YaRN: rope.YaRN{AttentionFactor: 1}}
	for _, o := range options {
		o(&opts)
	}
	mscale := opts.YaRN.AttentionFactor
	if mscale == 0 {
		mscale = 1
	}

	pos := positions.(*Tensor)
	out := newTensor(t.ctx, t.dtype, t.Shape())
	half := ropeDim / 2

	for i3 := 0; i3 < t.ne[3]; i3++ {
		for s := 0; s < t.ne[2]; s++ {
			p := pos.get(s, 0, 0, 0)

			for h := 0; h < t.ne[1]; h++ {
				for i := 0; i < half; i++ {
					freq := float32(math.Pow(float64(ropeBase), -2*float64(i)/float64(ropeDim)))
					theta := p * ropeScale * freq
					cosv := float32(math.Cos(float64(theta))) * mscale
					sinv := float32(math.Sin(float64(theta))) * mscale

					x1 := t.get(i, h, s, i3)
					x2 := t.get(i+half, h, s, i3)
					out.set(i, h, s, i3, x1*cosv-x2*sinv)
					out.set(i+half, h, s, i3, x1*sinv+x2*cosv)
				}
				for i := ropeDim; i < t.ne[0]; i++ {
					out.set(i, h, s, i3, t.get(i, h, s, i3))
				}
			}
		}
	}

	return out
}

// ScaledDotProductAttention implements the reference formula documented
// on ml.ScaledDotProductAttention using the elementwise ops above.
func (t *Tensor) ScaledDotProductAttention(ctx ml.Context, key, value, mask, sinks ml.Tensor, vmla ml.Tensor, scale float64, cacheConfigApplied bool) ml.Tensor {
	query := t.Permute(ctx, 0, 2, 1, 3)
	k := key.Permute(ctx, 0, 2, 1, 3)

	v := value
	if !cacheConfigApplied {
		v = value.Permute(ctx, 1, 2, 0, 3).Contiguous(ctx)
	}

	kq := k.(*Tensor).MulmatFullPrec(ctx, query)
	kq = kq.Scale(ctx, scale)
	if mask != nil {
		kq = kq.Add(ctx, mask)
	}
	kq = kq.Softmax(ctx)

	kqv := v.(*Tensor).Mulmat(ctx, kq)
	if vmla != nil {
		kqv = vmla.Mulmat(ctx, kqv)
	}

	return kqv.Permute(ctx, 0, 2, 1, 3).Contiguous(ctx)
}
