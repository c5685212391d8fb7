// Package fs defines the model configuration surface shared by every
// architecture package under model/models. A Config is a read-only,
// typed key-value view over either a GGUF metadata block (fs/ggml.KV)
// or a JSON-backed external config document (fs/ocrjson).
package fs

type Config interface {
	Architecture() string
	String(string, ...string) string
	Uint(string, ...uint32) uint32
	Float(string, ...float32) float32
	Bool(string, ...bool) bool

	Strings(string, ...[]string) []string
	Ints(string, ...[]int32) []int32
	Uints(string, ...[]uint32) []uint32
	Floats(string, ...[]float32) []float32
	Bools(string, ...[]bool) []bool
}
