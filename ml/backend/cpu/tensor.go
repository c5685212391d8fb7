// Package cpu is a pure Go, non-cgo implementation of the ml.Backend,
// ml.Context and ml.Tensor interfaces. It stores every tensor as a flat
// float32 slice with explicit per-dimension size/stride bookkeeping,
// dequantizing on load rather than implementing quantized compute
// kernels, which keeps the operator set small enough to hand-verify.
package cpu

import (
	"encoding/binary"
	"math"

	"github.com/x448/float16"

	"ocr-go-infer/ml"
)

// Tensor is a view (possibly non-contiguous) over a shared float32 buffer.
type Tensor struct {
	ctx *Context

	data []float32 // shared backing store
	off  int        // element offset of index (0,0,0,0) into data

	ne [4]int // size of each dimension, in elements
	nb [4]int // stride of each dimension, in elements
	nd int     // number of dimensions actually assigned (1-4)

	dtype ml.DType // nominal storage dtype, for bookkeeping/Cast round-tripping
}

func contiguousStrides(ne [4]int) [4]int {
	return [4]int{1, ne[0], ne[0] * ne[1], ne[0] * ne[1] * ne[2]}
}

func dims(shape []int) (ne [4]int, nd int) {
	ne = [4]int{1, 1, 1, 1}
	for i, n := range shape {
		ne[i] = n
	}
	return ne, max(len(shape), 1)
}

func newTensor(ctx *Context, dtype ml.DType, shape []int) *Tensor {
	ne, nd := dims(shape)
	n := ne[0] * ne[1] * ne[2] * ne[3]

	return &Tensor{
		ctx:   ctx,
		data:  make([]float32, n),
		ne:    ne,
		nb:    contiguousStrides(ne),
		nd:    nd,
		dtype: dtype,
	}
}

func (t *Tensor) numElements() int {
	return t.ne[0] * t.ne[1] * t.ne[2] * t.ne[3]
}

func (t *Tensor) isContiguous() bool {
	return t.nb == contiguousStrides(t.ne)
}

// at returns the flat data index for the given per-dimension indices.
func (t *Tensor) at(i0, i1, i2, i3 int) int {
	return t.off + i0*t.nb[0] + i1*t.nb[1] + i2*t.nb[2] + i3*t.nb[3]
}

func (t *Tensor) get(i0, i1, i2, i3 int) float32 {
	return t.data[t.at(i0, i1, i2, i3)]
}

func (t *Tensor) set(i0, i1, i2, i3 int, v float32) {
	t.data[t.at(i0, i1, i2, i3)] = v
}

// forEach walks every logical element in row-major (dim0 fastest) order.
func (t *Tensor) forEach(fn func(i0, i1, i2, i3 int)) {
	for i3 := 0; i3 < t.ne[3]; i3++ {
		for i2 := 0; i2 < t.ne[2]; i2++ {
			for i1 := 0; i1 < t.ne[1]; i1++ {
				for i0 := 0; i0 < t.ne[0]; i0++ {
					fn(i0, i1, i2, i3)
				}
			}
		}
	}
}

func (t *Tensor) Dim(n int) int {
	return t.ne[n]
}

func (t *Tensor) Stride(n int) int {
	return t.nb[n]
}

func (t *Tensor) Shape() []int {
	shape := make([]int, t.nd)
	for i := range shape {
		shape[i] = t.ne[i]
	}
	return shape
}

func (t *Tensor) DType() ml.DType {
	return t.dtype
}

// Cast returns a contiguous copy tagged with dtype. Compute always happens
// in float32; for DTypeF16 the values are round-tripped through a real
// binary16 encoding so that precision loss from a file's declared storage
// type is still observable in generated output.
func (t *Tensor) Cast(ctx ml.Context, dtype ml.DType) ml.Tensor {
	out := t.Contiguous(ctx).(*Tensor)
	out.dtype = dtype

	if dtype == ml.DTypeF16 {
		for i, v := range out.data {
			out.data[i] = float16.Fromfloat32(v).Float32()
		}
	}

	return out
}

func (t *Tensor) Bytes() []byte {
	floats := t.Floats()
	buf := make([]byte, 4*len(floats))
	for i, v := range floats {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func (t *Tensor) Floats() []float32 {
	out := make([]float32, t.numElements())
	i := 0
	t.forEach(func(i0, i1, i2, i3 int) {
		out[i] = t.get(i0, i1, i2, i3)
		i++
	})
	return out
}

func (t *Tensor) FromBytes(b []byte) {
	floats := make([]float32, len(b)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	t.FromFloats(floats)
}

func (t *Tensor) FromFloats(s []float32) {
	if len(s) != t.numElements() {
		panic("cpu: data size does not match tensor size")
	}

	i := 0
	t.forEach(func(i0, i1, i2, i3 int) {
		t.set(i0, i1, i2, i3, s[i])
		i++
	})
}

func (t *Tensor) FromInts(s []int32) {
	floats := make([]float32, len(s))
	for i, v := range s {
		floats[i] = float32(v)
	}
	t.FromFloats(floats)
}

func (t *Tensor) Copy(ctx ml.Context, t2 ml.Tensor) ml.Tensor {
	dst := t2.(*Tensor)
	i := 0
	src := t.Floats()
	dst.forEach(func(i0, i1, i2, i3 int) {
		dst.set(i0, i1, i2, i3, src[i])
		i++
	})
	return dst
}

func (t *Tensor) Duplicate(ctx ml.Context) ml.Tensor {
	return t.Contiguous(ctx)
}
