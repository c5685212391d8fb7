package cpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/x448/float16"

	fsggml "ocr-go-infer/fs/ggml"
)

// dequantize converts raw GGUF tensor bytes of the given type into a flat
// float32 slice with n logical elements. Only the storage types actually
// produced by the DeepSeek-OCR conversion pipeline are supported; k-quant
// and importance-matrix types are out of scope since this backend never
// runs quantized compute kernels, only dequantize-on-load.
func dequantize(kind fsggml.TensorType, raw []byte, n int) ([]float32, error) {
	switch kind {
	case fsggml.TensorTypeF32:
		out := make([]float32, n)
		for i := range out {
			out[i] = float32frombits(raw[4*i:])
		}
		return out, nil

	case fsggml.TensorTypeF16:
		out := make([]float32, n)
		for i := range out {
			bits := binary.LittleEndian.Uint16(raw[2*i:])
			out[i] = float16.Frombits(bits).Float32()
		}
		return out, nil

	case fsggml.TensorTypeBF16:
		out := make([]float32, n)
		for i := range out {
			bits := uint32(binary.LittleEndian.Uint16(raw[2*i:])) << 16
			out[i] = float32frombitsU32(bits)
		}
		return out, nil

	case fsggml.TensorTypeQ8_0:
		return dequantizeQ8_0(raw, n), nil

	case fsggml.TensorTypeQ4_0:
		return dequantizeQ4_0(raw, n), nil

	default:
		return nil, fmt.Errorf("cpu backend: unsupported tensor storage type %s", kind)
	}
}

func float32frombits(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

func float32frombitsU32(bits uint32) float32 {
	return math.Float32frombits(bits)
}

const q8_0BlockSize = 34 // 2-byte f16 scale + 32 int8 values
const q8_0Elements = 32

func dequantizeQ8_0(raw []byte, n int) []float32 {
	out := make([]float32, n)
	blocks := (n + q8_0Elements - 1) / q8_0Elements

	for b := 0; b < blocks; b++ {
		block := raw[b*q8_0BlockSize:]
		d := float16.Frombits(binary.LittleEndian.Uint16(block)).Float32()
		qs := block[2:]

		for i := 0; i < q8_0Elements; i++ {
			idx := b*q8_0Elements + i
			if idx >= n {
				break
			}
			out[idx] = float32(int8(qs[i])) * d
		}
	}
	return out
}

const q4_0BlockSize = 18 // 2-byte f16 scale + 16 bytes of packed 4-bit values
const q4_0Elements = 32

func dequantizeQ4_0(raw []byte, n int) []float32 {
	out := make([]float32, n)
	blocks := (n + q4_0Elements - 1) / q4_0Elements

	for b := 0; b < blocks; b++ {
		block := raw[b*q4_0BlockSize:]
		d := float16.Frombits(binary.LittleEndian.Uint16(block)).Float32()
		qs := block[2:]

		for i := 0; i < q4_0Elements/2; i++ {
			lo := qs[i] & 0x0F
			hi := qs[i] >> 4

			loIdx := b*q4_0Elements + i
			hiIdx := loIdx + q4_0Elements/2
			if loIdx < n {
				out[loIdx] = (float32(lo) - 8) * d
			}
			if hiIdx < n {
				out[hiIdx] = (float32(hi) - 8) * d
			}
		}
	}
	return out
}
