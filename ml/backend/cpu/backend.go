package cpu

import (
	"context"
	"fmt"
	"os"

	"ocr-go-infer/fs"
	fsggml "ocr-go-infer/fs/ggml"
	"ocr-go-infer/ml"
)

func init() {
	ml.RegisterBackend("cpu", New)
}

// Backend is a pure Go tensor runtime: it dequantizes every weight into a
// float32 buffer at load time and runs every operation eagerly on this
// machine's CPU, with no GPU offload and no cgo dependency.
type Backend struct {
	modelPath string
	meta      *fsggml.GGML
	params    ml.BackendParams

	tensors map[string]*Tensor

	required ml.BackendMemory
}

// New opens modelPath and decodes its GGUF header. Tensor data is not read
// until Load is called.
func New(modelPath string, params ml.BackendParams) (ml.Backend, error) {
	f, err := os.Open(modelPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	meta, err := fsggml.Decode(f, -1)
	if err != nil {
		return nil, fmt.Errorf("cpu backend: decode %s: %w", modelPath, err)
	}

	return &Backend{
		modelPath: modelPath,
		meta:      meta,
		params:    params,
		tensors:   make(map[string]*Tensor),
	}, nil
}

// Load reads every tensor's raw bytes from disk and dequantizes them into
// this backend's weight store, reporting fractional progress as it goes.
func (b *Backend) Load(ctx context.Context, progress func(float32)) error {
	f, err := os.Open(b.modelPath)
	if err != nil {
		return err
	}
	defer f.Close()

	items := b.meta.Tensors().Items()
	base := int64(b.meta.Tensors().Offset)

	var totalBytes, doneBytes int64
	for _, t := range items {
		totalBytes += int64(t.Size())
	}

	for _, t := range items {
		if err := ctx.Err(); err != nil {
			return err
		}

		n := 1
		shape := make([]int, 0, len(t.Shape))
		for _, d := range t.Shape {
			shape = append(shape, int(d))
			n *= int(d)
		}

		raw := make([]byte, t.Size())
		if b.params.AllocMemory {
			if _, err := f.ReadAt(raw, base+int64(t.Offset)); err != nil {
				return fmt.Errorf("cpu backend: read tensor %s: %w", t.Name, err)
			}
		}

		dtype := ggmlToMLDType(fsggml.TensorType(t.Kind))
		tensor := newTensor(nil, dtype, shape)

		if b.params.AllocMemory {
			floats, err := dequantize(fsggml.TensorType(t.Kind), raw, n)
			if err != nil {
				return fmt.Errorf("cpu backend: tensor %s: %w", t.Name, err)
			}
			tensor.FromFloats(floats)
		}

		b.tensors[t.Name] = tensor
		b.required.CPU.Weights = append(b.required.CPU.Weights, t.Size())

		doneBytes += int64(t.Size())
		if totalBytes > 0 {
			progress(float32(doneBytes) / float32(totalBytes))
		}
	}

	b.required.CPU.Name = "CPU"
	b.required.CPU.Library = "cpu"

	return nil
}

func ggmlToMLDType(kind fsggml.TensorType) ml.DType {
	switch kind {
	case fsggml.TensorTypeF16:
		return ml.DTypeF16
	case fsggml.TensorTypeQ8_0:
		return ml.DTypeQ80
	case fsggml.TensorTypeQ4_0:
		return ml.DTypeQ40
	case fsggml.TensorTypeI8, fsggml.TensorTypeI16, fsggml.TensorTypeI32, fsggml.TensorTypeI64:
		return ml.DTypeI32
	default:
		return ml.DTypeF32
	}
}

func (b *Backend) Close() {
	b.tensors = nil
}

func (b *Backend) BackendMemory() ml.BackendMemory {
	return b.required
}

func (b *Backend) Config() fs.Config {
	return b.meta.KV()
}

func (b *Backend) Get(name string) ml.Tensor {
	t, ok := b.tensors[name]
	if !ok {
		return nil
	}
	return t
}

func (b *Backend) NewContext() ml.Context {
	return &Context{b: b}
}

func (b *Backend) NewContextSize(size int) ml.Context {
	return &Context{b: b, batchSize: size}
}

// BackendDevices reports the single CPU device this backend ever uses.
func (b *Backend) BackendDevices() []ml.DeviceInfo {
	return []ml.DeviceInfo{
		{
			DeviceID: ml.DeviceID{ID: "0", Library: "cpu"},
			Name:     "cpu",
			ComputeMajor: -1,
			ComputeMinor: -1,
			TotalMemory:  0,
			FreeMemory:   0,
		},
	}
}
