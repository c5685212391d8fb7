package cpu

import "ocr-go-infer/ml"

func (t *Tensor) Contiguous(ctx ml.Context, shape ...int) ml.Tensor {
	out := newTensor(t.ctx, t.dtype, t.Shape())
	if len(shape) > 0 {
		out = newTensor(t.ctx, t.dtype, inferShape(t, shape))
	}

	src := t.Floats()
	out.FromFloats(src)
	return out
}

func inferShape(t *Tensor, shape []int) []int {
	out := make([]int, len(shape))
	inferIdx := -1
	known := 1
	for i, v := range shape {
		if v == -1 {
			inferIdx = i
			out[i] = -1
		} else {
			out[i] = v
			known *= v
		}
	}
	if inferIdx >= 0 {
		out[inferIdx] = t.numElements() / known
	}
	return out
}

func (t *Tensor) Reshape(ctx ml.Context, shape ...int) ml.Tensor {
	if !t.isContiguous() {
		return t.Contiguous(ctx, shape...)
	}

	out := *t
	ne, nd := dims(inferShape(t, shape))
	out.ne = ne
	out.nd = nd
	out.nb = contiguousStrides(ne)
	return &out
}

// View mirrors ggml's view convention: offset is in elements, and shape is
// [ne0, (nb_i, ne_i)...] for i = 1..rank-1, with nb given in elements.
func (t *Tensor) View(ctx ml.Context, offset int, shape ...int) ml.Tensor {
	out := &Tensor{ctx: t.ctx, data: t.data, off: t.off + offset, dtype: t.dtype}
	out.ne = [4]int{1, 1, 1, 1}
	out.nb = [4]int{1, 1, 1, 1}

	out.ne[0] = shape[0]
	nd := 1
	for i, j := 1, 1; j < len(shape); i, j = i+1, j+2 {
		out.nb[i] = shape[j]
		out.ne[i] = shape[j+1]
		nd = i + 1
	}
	out.nd = nd
	return out
}

func (t *Tensor) Permute(ctx ml.Context, order ...int) ml.Tensor {
	for i := len(order); i < 4; i++ {
		order = append(order, i)
	}

	out := *t
	for dst, src := range order {
		out.ne[dst] = t.ne[src]
		out.nb[dst] = t.nb[src]
	}
	out.nd = t.nd
	return &out
}

func (t *Tensor) Pad(ctx ml.Context, shape ...int) ml.Tensor {
	ne := [4]int{t.ne[0] + shape[0], t.ne[1] + shape[1], t.ne[2] + shape[2], t.ne[3] + shape[3]}
	out := newTensor(t.ctx, t.dtype, ne[:t.nd])

	t.forEach(func(i0, i1, i2, i3 int) {
		out.set(i0, i1, i2, i3, t.get(i0, i1, i2, i3))
	})
	return out
}

func (t *Tensor) Stack(ctx ml.Context, dim int, rest ...ml.Tensor) ml.Tensor {
	all := append([]ml.Tensor{t}, rest...)

	shape := t.Shape()
	for len(shape) <= dim {
		shape = append(shape, 1)
	}
	newShape := append([]int{}, shape...)
	newShape = append(newShape[:dim], append([]int{len(all)}, newShape[dim:]...)...)
	if len(newShape) > 4 {
		newShape = newShape[:4]
	}

	out := newTensor(t.ctx, t.dtype, newShape)
	for i, tt := range all {
		src := tt.(*Tensor).Floats()
		copy(out.data[i*len(src):], src)
	}
	return out
}

func (t *Tensor) Repeat(ctx ml.Context, dim, n int) ml.Tensor {
	shape := t.Shape()
	for len(shape) <= dim {
		shape = append(shape, 1)
	}
	shape[dim] *= n

	out := newTensor(t.ctx, t.dtype, shape)
	out.forEach(func(i0, i1, i2, i3 int) {
		idx := [4]int{i0, i1, i2, i3}
		idx[dim] = idx[dim] % t.ne[dim]
		out.set(i0, i1, i2, i3, t.get(idx[0], idx[1], idx[2], idx[3]))
	})
	return out
}

func (t *Tensor) Concat(ctx ml.Context, t2 ml.Tensor, dim int) ml.Tensor {
	b := t2.(*Tensor)
	shape := t.Shape()
	for len(shape) <= dim {
		shape = append(shape, 1)
	}
	shape[dim] = t.ne[dim] + b.ne[dim]

	out := newTensor(t.ctx, t.dtype, shape)
	out.forEach(func(i0, i1, i2, i3 int) {
		idx := [4]int{i0, i1, i2, i3}
		if idx[dim] < t.ne[dim] {
			out.set(i0, i1, i2, i3, t.get(idx[0], idx[1], idx[2], idx[3]))
		} else {
			idx[dim] -= t.ne[dim]
			out.set(i0, i1, i2, i3, b.get(idx[0], idx[1], idx[2], idx[3]))
		}
	})
	return out
}

// Rows gathers rows of t (dims 1..3 held fixed, dim0 is the row vector)
// indexed by the integer values stored in t2, an embedding-style lookup.
func (t *Tensor) Rows(ctx ml.Context, t2 ml.Tensor) ml.Tensor {
	idxT := t2.(*Tensor)
	idx := idxT.Floats()

	shape := append([]int{t.ne[0]}, idxT.Shape()...)
	out := newTensor(t.ctx, t.dtype, shape)

	for i, v := range idx {
		row := int(v)
		for c := 0; c < t.ne[0]; c++ {
			out.data[i*t.ne[0]+c] = t.get(c, row, 0, 0)
		}
	}
	return out
}

func (t *Tensor) SetRows(ctx ml.Context, src ml.Tensor, idxs ml.Tensor) ml.Tensor {
	s := src.(*Tensor)
	idxT := idxs.(*Tensor)
	idx := idxT.Floats()

	rowSize := s.ne[0]
	sData := s.Floats()

	for i, v := range idx {
		row := int(v)
		for c := 0; c < rowSize; c++ {
			t.set(c, row, 0, 0, sData[i*rowSize+c])
		}
	}
	return t
}

func (t *Tensor) Slice(ctx ml.Context, dim, low, high, step int) ml.Tensor {
	shape := t.Shape()
	n := 0
	for i := low; i < high; i += step {
		n++
	}
	shape[dim] = n

	out := newTensor(t.ctx, t.dtype, shape)
	out.forEach(func(i0, i1, i2, i3 int) {
		idx := [4]int{i0, i1, i2, i3}
		idx[dim] = low + idx[dim]*step
		out.set(i0, i1, i2, i3, t.get(idx[0], idx[1], idx[2], idx[3]))
	})
	return out
}

func (t *Tensor) Chunk(ctx ml.Context, dim int, size int) []ml.Tensor {
	var out []ml.Tensor
	for low := 0; low < t.ne[dim]; low += size {
		high := min(low+size, t.ne[dim])
		out = append(out, t.Slice(ctx, dim, low, high, 1))
	}
	return out
}

func (t *Tensor) ChunkSections(ctx ml.Context, dim int, sections ...int) []ml.Tensor {
	var out []ml.Tensor
	low := 0
	for _, s := range sections {
		out = append(out, t.Slice(ctx, dim, low, low+s, 1))
		low += s
	}
	return out
}
