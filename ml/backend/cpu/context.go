package cpu

import (
	"ocr-go-infer/ml"
)

// Context is a no-op graph context: every Tensor method on this backend
// computes its result immediately rather than recording a node into a
// graph to be executed later, so Forward/Compute/Reserve only exist to
// satisfy ml.Context and have nothing left to do.
type Context struct {
	b         *Backend
	batchSize int
	layer     int
}

func (c *Context) newShape(dtype ml.DType, shape []int) *Tensor {
	return newTensor(c, dtype, shape)
}

func (c *Context) Empty(dtype ml.DType, shape ...int) ml.Tensor {
	return c.newShape(dtype, shape)
}

func (c *Context) Zeros(dtype ml.DType, shape ...int) ml.Tensor {
	return c.newShape(dtype, shape)
}

func (c *Context) FromBytes(dtype ml.DType, s []byte, shape ...int) ml.Tensor {
	t := c.newShape(dtype, shape)
	t.FromBytes(s)
	return t
}

func (c *Context) FromFloats(s []float32, shape ...int) ml.Tensor {
	if len(shape) == 0 {
		shape = []int{len(s)}
	}
	t := c.newShape(ml.DTypeF32, shape)
	t.FromFloats(s)
	return t
}

func (c *Context) FromInts(s []int32, shape ...int) ml.Tensor {
	if len(shape) == 0 {
		shape = []int{len(s)}
	}
	t := c.newShape(ml.DTypeI32, shape)
	t.FromInts(s)
	return t
}

// Arange builds values in the interval (start, stop] stepping by step, to
// match the documented ml.Context contract exactly (the first emitted
// value is start+step, not start).
func (c *Context) Arange(start, stop, step float32, dtype ml.DType) ml.Tensor {
	var vals []float32
	for v := start + step; v <= stop; v += step {
		vals = append(vals, v)
	}
	t := c.newShape(dtype, []int{len(vals)})
	t.FromFloats(vals)
	return t
}

func (c *Context) Forward(...ml.Tensor) ml.Context {
	return c
}

func (c *Context) SetBatchSize(n int) {
	c.batchSize = n
}

func (c *Context) Compute(...ml.Tensor) {}

func (c *Context) ComputeWithNotify(notify func(), _ ...ml.Tensor) {
	notify()
}

func (c *Context) Reserve() {}

func (c *Context) MaxGraphNodes() int {
	return 1 << 20
}

func (c *Context) Close() {}

func (c *Context) Input() ml.Context {
	return &Context{b: c.b, batchSize: c.batchSize, layer: -1}
}

func (c *Context) Layer(i int) ml.Context {
	return &Context{b: c.b, batchSize: c.batchSize, layer: i}
}
