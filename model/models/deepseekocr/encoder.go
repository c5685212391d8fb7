// Modul: encoder.go
// Beschreibung: Deep-Encoder, der SAM- und CLIP-Merkmale je Kachel
// fusioniert: SAM liefert eine herunterskalierte Merkmalskarte, die direkt
// erneut von CLIP patchifiziert wird; beide Merkmalsstroeme werden
// kanalweise verkettet, per Pixel-Shuffle raeumlich komprimiert und auf
// die Einbettungsdimension des Sprachmodells projiziert.

package deepseekocr

import (
	"ocr-go-infer/ml"
	"ocr-go-infer/ml/nn"
)

// DeepEncoder runs one image tile through SAM, re-patchifies SAM's output
// feature map with CLIP, fuses the two feature streams, and projects them
// into the language decoder's embedding space.
type DeepEncoder struct {
	SAM  *SAMModel
	CLIP *CLIPModel

	Projector *nn.Linear `gguf:"projector"`

	*VisionOptions
}

// EncodeTile returns the projected vision token sequence for one
// preprocessed tile, shaped [embeddingDim, numTokens].
func (e *DeepEncoder) EncodeTile(ctx ml.Context, pixelValues ml.Tensor) ml.Tensor {
	samFeatures := e.SAM.Forward(ctx, pixelValues)

	side := isqrt(samFeatures.Dim(1))
	samGrid := samFeatures.Reshape(ctx, samFeatures.Dim(0), side, side, 1)

	clipFeatures := e.CLIP.Forward(ctx, samGrid)

	fused := samFeatures.Concat(ctx, clipFeatures, 0)
	fused = pixelShuffleDownsample(ctx, fused, side, side, e.VisionOptions.Projector.downsampleRatio)

	return e.Projector.Forward(ctx, fused)
}

// pixelShuffleDownsample groups adjacent ratio x ratio patches along the
// channel axis, reducing token count by ratio^2 while growing channel
// count correspondingly, mirroring the projector's "pixel shuffle" spatial
// compression ahead of the linear projection. Done on the host since it's
// a pure data-layout shuffle with no arithmetic a tensor op would help with.
func pixelShuffleDownsample(ctx ml.Context, x ml.Tensor, w, h int, ratio float32) ml.Tensor {
	factor := int(ratio)
	if factor <= 1 {
		return x
	}

	channels := x.Dim(0)
	src := x.Floats()
	wOut, hOut := w/factor, h/factor
	out := make([]float32, wOut*hOut*channels*factor*factor)

	for y := 0; y < hOut; y++ {
		for x0 := 0; x0 < wOut; x0++ {
			dstBase := (y*wOut + x0) * channels * factor * factor
			for dy := 0; dy < factor; dy++ {
				for dx := 0; dx < factor; dx++ {
					srcPos := (y*factor+dy)*w + (x0*factor + dx)
					srcBase := srcPos * channels
					dst := dstBase + (dy*factor+dx)*channels
					copy(out[dst:dst+channels], src[srcBase:srcBase+channels])
				}
			}
		}
	}

	return ctx.Input().FromFloats(out, channels*factor*factor, wOut*hOut)
}
