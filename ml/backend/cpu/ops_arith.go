package cpu

import (
	"math"

	"ocr-go-infer/ml"
)

// broadcastShape returns the result shape of a, b under ggml-style
// broadcasting: each dimension of b must be 1 or equal to a's.
func broadcastShape(a, b *Tensor) [4]int {
	var out [4]int
	for i := 0; i < 4; i++ {
		out[i] = a.ne[i]
	}
	return out
}

func elementwise(ctx ml.Context, a, b *Tensor, fn func(x, y float32) float32) *Tensor {
	shape := broadcastShape(a, b)
	out := newTensor(a.ctx, a.dtype, shape[:a.nd])

	out.forEach(func(i0, i1, i2, i3 int) {
		bi := [4]int{i0 % b.ne[0], i1 % b.ne[1], i2 % b.ne[2], i3 % b.ne[3]}
		out.set(i0, i1, i2, i3, fn(a.get(i0, i1, i2, i3), b.get(bi[0], bi[1], bi[2], bi[3])))
	})
	return out
}

func (t *Tensor) Add(ctx ml.Context, t2 ml.Tensor) ml.Tensor {
	return elementwise(ctx, t, t2.(*Tensor), func(x, y float32) float32 { return x + y })
}

func (t *Tensor) Sub(ctx ml.Context, t2 ml.Tensor) ml.Tensor {
	return elementwise(ctx, t, t2.(*Tensor), func(x, y float32) float32 { return x - y })
}

func (t *Tensor) Mul(ctx ml.Context, t2 ml.Tensor) ml.Tensor {
	return elementwise(ctx, t, t2.(*Tensor), func(x, y float32) float32 { return x * y })
}

func (t *Tensor) Div(ctx ml.Context, t2 ml.Tensor) ml.Tensor {
	return elementwise(ctx, t, t2.(*Tensor), func(x, y float32) float32 { return x / y })
}

func (t *Tensor) Scale(ctx ml.Context, s float64) ml.Tensor {
	out := newTensor(t.ctx, t.dtype, t.Shape())
	out.forEach(func(i0, i1, i2, i3 int) {
		out.set(i0, i1, i2, i3, float32(float64(t.get(i0, i1, i2, i3))*s))
	})
	return out
}

func (t *Tensor) Sqr(ctx ml.Context) ml.Tensor {
	out := newTensor(t.ctx, t.dtype, t.Shape())
	out.forEach(func(i0, i1, i2, i3 int) {
		v := t.get(i0, i1, i2, i3)
		out.set(i0, i1, i2, i3, v*v)
	})
	return out
}

func (t *Tensor) Sqrt(ctx ml.Context) ml.Tensor {
	out := newTensor(t.ctx, t.dtype, t.Shape())
	out.forEach(func(i0, i1, i2, i3 int) {
		out.set(i0, i1, i2, i3, float32(math.Sqrt(float64(t.get(i0, i1, i2, i3)))))
	})
	return out
}

// SumRows reduces dim0, leaving a [1, ne1, ne2, ne3] tensor of row sums.
func (t *Tensor) SumRows(ctx ml.Context) ml.Tensor {
	shape := t.Shape()
	shape[0] = 1
	out := newTensor(t.ctx, t.dtype, shape)

	t.forEach(func(i0, i1, i2, i3 int) {
		cur := out.get(0, i1, i2, i3)
		out.set(0, i1, i2, i3, cur+t.get(i0, i1, i2, i3))
	})
	return out
}

func (t *Tensor) Mean(ctx ml.Context) ml.Tensor {
	sum := t.SumRows(ctx).(*Tensor)
	sum.forEach(func(i0, i1, i2, i3 int) {
		sum.set(i0, i1, i2, i3, sum.get(i0, i1, i2, i3)/float32(t.ne[0]))
	})
	return sum
}

func (t *Tensor) Variance(ctx ml.Context) ml.Tensor {
	mean := t.Mean(ctx).(*Tensor)
	shape := t.Shape()
	shape[0] = 1
	out := newTensor(t.ctx, t.dtype, shape)

	t.forEach(func(i0, i1, i2, i3 int) {
		d := t.get(i0, i1, i2, i3) - mean.get(0, i1, i2, i3)
		out.set(0, i1, i2, i3, out.get(0, i1, i2, i3)+d*d)
	})
	out.forEach(func(i0, i1, i2, i3 int) {
		out.set(i0, i1, i2, i3, out.get(i0, i1, i2, i3)/float32(t.ne[0]))
	})
	return out
}

func (t *Tensor) Stddev(ctx ml.Context) ml.Tensor {
	return t.Variance(ctx).(*Tensor).Sqrt(ctx)
}
