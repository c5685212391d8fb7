// Modul: fusion.go
// Beschreibung: Multimodale Einbettungsfusion: Bild-Platzhaltertoken in der
// Tokenfolge werden durch projizierte Vision-Features ersetzt, Zeilen- und
// Kachel-Trennmarker bleiben Text-Embeddings.

package deepseekocr

import (
	"ocr-go-infer/ml"
	"ocr-go-infer/model/input"
)

// fuseEmbeddings scatters each multimodal chunk's projected token sequence
// into the token embedding sequence at the position its MultimodalIndex
// names, leaving every other (text, newline, tile-separator) position
// untouched. textEmbeds is [hidden, seqLen]; each chunk is [hidden, runLen]
// and is assumed to occupy runLen consecutive positions starting at Index,
// matching how the preprocessor lays out image placeholder runs.
func fuseEmbeddings(ctx ml.Context, textEmbeds ml.Tensor, multimodal []input.MultimodalIndex) ml.Tensor {
	if len(multimodal) == 0 {
		return textEmbeds
	}

	hidden := textEmbeds.Dim(0)
	seqLen := textEmbeds.Dim(1)
	out := make([]float32, hidden*seqLen)
	copy(out, textEmbeds.Floats())

	for _, mm := range multimodal {
		tokens := mm.Multimodal.Tensor.Floats()
		runLen := mm.Multimodal.Tensor.Dim(1)
		copy(out[mm.Index*hidden:(mm.Index+runLen)*hidden], tokens[:runLen*hidden])
	}

	return ctx.Input().FromFloats(out, hidden, seqLen)
}
