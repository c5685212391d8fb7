// Package kvcache - Cache-Interface und Kernstrukturen
//
// Dieses Modul definiert das Cache-Interface sowie die Causal-Struktur,
// die einen rollierenden Key/Value-Speicher fuer autoregressive Inferenz
// verwaltet.
package kvcache

import (
	"errors"

	"ocr-go-infer/ml"
	"ocr-go-infer/model/input"
)

var (
	ErrKvCacheFull  = errors.New("could not find a kv cache slot")
	ErrNotSupported = errors.New("model does not support operation")
)

// Cache is implemented by all key/value cache variants (causal, sliding
// window, chunked).
type Cache interface {
	// StartForward is called once per batch before Forward to prepare cache
	// state (slot allocation, masks). reserve indicates this is a dry run
	// used only to size memory.
	StartForward(ctx ml.Context, batch input.Batch, reserve bool) error

	SetLayer(layer int)

	Get(ctx ml.Context) (key, value, mask ml.Tensor)
	Put(ctx ml.Context, key, value ml.Tensor)

	CopyPrefix(srcSeq, dstSeq int, length int32)
	CanResume(seq int, pos int32) bool
	Remove(seq int, beginIndex, endIndex int32) error

	SetConfig(ml.CacheConfig)
	SetCausal(ctx ml.Context, opts CausalOptions)

	Init(backend ml.Backend, dtype ml.DType, maxSequences, capacity, maxBatch int)
	Close()
}

// shiftFn adjusts the rotary phase of cached keys when a sequence's
// position window moves (e.g. context truncation).
type shiftFn func(ctx ml.Context, layer int, key, shift ml.Tensor) (ml.Tensor, error)

// CausalOptions disables causal masking for specific batch indices, used by
// models that mix causal text tokens with non-causal vision tokens.
type CausalOptions struct {
	Except []int
}

type cacheCell struct {
	pos       int32
	sequences []int
}

type cellRange struct {
	min int
	max int
}

// Causal implements a single rolling key/value store shared by all
// sequences, with optional sliding-window and chunked-attention eviction.
type Causal struct {
	DType ml.DType

	shiftFn  shiftFn
	backend  ml.Backend
	maxBatch int

	swaWindowSize int32
	swaMemorySize int32
	chunkSize     int32

	config *ml.CacheConfig

	cells      []cacheCell
	cellRanges map[int]cellRange

	ctxs   map[int]ml.Context
	keys   map[int]ml.Tensor
	values map[int]ml.Tensor

	curLayer     int
	curBatchSize int
	curSequences []int
	curPositions []int32
	curCellRange cellRange
	curLoc       ml.Tensor
	curMask      ml.Tensor
	opts         CausalOptions
}
