// Package ocrjson implements fs.Config over the JSON configuration
// document described for the external config file: a flat document with
// text_config/vision_config/projector_config sections (language_config
// accepted as a legacy alias for text_config), unknown keys ignored.
//
// Keys are flattened into the same dotted, architecture-prefixed scheme
// fs/ggml.KV uses for GGUF metadata, so a model package written against
// fs.Config works unmodified whether it loads a GGUF checkpoint or this
// JSON document.
package ocrjson

import (
	"log/slog"
	"strings"
)

// Config is a read-only typed view over a flattened JSON configuration
// document.
type Config struct {
	kv map[string]any
}

func (c *Config) Architecture() string {
	if arch, ok := c.kv["general.architecture"].(string); ok && arch != "" {
		return arch
	}
	return "deepseekocr"
}

func (c *Config) Len() int {
	return len(c.kv)
}

func (c *Config) Value(key string) any {
	return c.kv[key]
}

type array[T any] struct {
	values []T
}

type valueTypes interface {
	uint32 | int32 | uint64 | int64 | string | float32 | bool
}

type arrayValueTypes interface {
	*array[uint32] | *array[int32] | *array[string] | *array[float32] | *array[bool]
}

func keyValue[T valueTypes | arrayValueTypes](c *Config, key string, defaultValue ...T) (T, bool) {
	if !strings.HasPrefix(key, "tokenizer.") && !strings.HasPrefix(key, "general.") {
		key = c.Architecture() + "." + key
	}

	if val, ok := c.kv[key].(T); ok {
		return val, true
	}

	slog.Debug("ocrjson: key with type not found", "key", key, "default", defaultValue[0])
	return defaultValue[0], false
}

func (c *Config) String(key string, defaultValue ...string) string {
	val, _ := keyValue(c, key, append(defaultValue, "")...)
	return val
}

func (c *Config) Uint(key string, defaultValue ...uint32) uint32 {
	val, _ := keyValue(c, key, append(defaultValue, 0)...)
	return val
}

func (c *Config) Float(key string, defaultValue ...float32) float32 {
	val, _ := keyValue(c, key, append(defaultValue, 0)...)
	return val
}

func (c *Config) Bool(key string, defaultValue ...bool) bool {
	val, _ := keyValue(c, key, append(defaultValue, false)...)
	return val
}

func (c *Config) Strings(key string, defaultValue ...[]string) []string {
	val, _ := keyValue(c, key, &array[string]{values: append(defaultValue, []string(nil))[0]})
	return val.values
}

func (c *Config) Ints(key string, defaultValue ...[]int32) []int32 {
	val, _ := keyValue(c, key, &array[int32]{values: append(defaultValue, []int32(nil))[0]})
	return val.values
}

func (c *Config) Uints(key string, defaultValue ...[]uint32) []uint32 {
	val, _ := keyValue(c, key, &array[uint32]{values: append(defaultValue, []uint32(nil))[0]})
	return val.values
}

func (c *Config) Floats(key string, defaultValue ...[]float32) []float32 {
	val, _ := keyValue(c, key, &array[float32]{values: append(defaultValue, []float32(nil))[0]})
	return val.values
}

func (c *Config) Bools(key string, defaultValue ...[]bool) []bool {
	val, _ := keyValue(c, key, &array[bool]{values: append(defaultValue, []bool(nil))[0]})
	return val.values
}
