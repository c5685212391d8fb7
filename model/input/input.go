// Package input defines the types used to feed tokenized, possibly
// multimodal, sequences into a model's Forward pass.
package input

import "ocr-go-infer/ml"

// Multimodal is a single non-text element produced by a model's
// EncodeMultimodal (for DeepSeek-OCR this is always an image tile grid's
// worth of fused vision embeddings) along with the tensor dimension it
// occupies once scattered into the token embedding sequence.
type Multimodal struct {
	Tensor ml.Tensor
}

// Input is one position in a tokenized sequence. Text positions carry a
// Token; multimodal positions carry a reference into Multimodal instead,
// with MultimodalHash identifying which image the content came from so
// that repeated image inputs can share encoder work across a batch.
type Input struct {
	Token int32

	Multimodal     []Multimodal
	MultimodalHash uint64
	SameBatch      int
}

// Batch is the flattened form of a slice of Input values that is actually
// passed into a model's Forward method.
type Batch struct {
	// Inputs is a tensor of int32 token ids, one per position in the batch.
	Inputs ml.Tensor

	// Multimodal holds, for each batch index that has associated
	// multimodal content, the pre-encoded tensor data and where in Inputs
	// it should be scattered.
	Multimodal []MultimodalIndex

	// Positions holds, for each entry in Inputs, the position of that
	// input within its sequence (used for RoPE and causal masking).
	Positions []int32

	// Sequences holds, for each entry in Inputs, the sequence (request)
	// it belongs to.
	Sequences []int

	// Outputs lists, for each entry that should be read out of the final
	// hidden states (usually just the last token of each sequence), a
	// tensor describing where to write the model's output.
	Outputs ml.Tensor
}

// MultimodalIndex pairs a batch position with the multimodal content that
// should be substituted at that position.
type MultimodalIndex struct {
	Index      int
	Multimodal Multimodal
}
