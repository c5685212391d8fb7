package postprocess

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"ocr-go-infer/vision"
)

func TestParseDetectionsExtractsLabelAndBoxes(t *testing.T) {
	raw := "before <|ref|>title<|/ref|><|det|>[[0,0,999,500]]<|/det|> after"

	got := ParseDetections(raw, 1000)
	if len(got) != 1 {
		t.Fatalf("len(detections) = %d, want 1", len(got))
	}

	d := got[0]
	if d.Label != "title" {
		t.Errorf("Label = %q, want %q", d.Label, "title")
	}
	if len(d.Boxes) != 1 {
		t.Fatalf("len(Boxes) = %d, want 1", len(d.Boxes))
	}

	box := d.Boxes[0]
	if box.X0 != 0 || box.Y0 != 0 || box.X1 != 1000 || box.Y1 != 501 {
		t.Errorf("Box = %+v, want {0 0 1000 501}", box)
	}
}

func TestParseDetectionsMultipleBoxesInOneSpan(t *testing.T) {
	raw := "<|ref|>image<|/ref|><|det|>[[0,0,100,100], [200,200,300,300]]<|/det|>"

	got := ParseDetections(raw, 1000)
	if len(got) != 1 {
		t.Fatalf("len(detections) = %d, want 1", len(got))
	}
	if len(got[0].Boxes) != 2 {
		t.Fatalf("len(Boxes) = %d, want 2", len(got[0].Boxes))
	}
}

func TestParseDetectionsNoSpansReturnsEmpty(t *testing.T) {
	got := ParseDetections("just plain text, no tags here", 1000)
	if len(got) != 0 {
		t.Fatalf("len(detections) = %d, want 0", len(got))
	}
}

func TestScaleCoordBoundaries(t *testing.T) {
	if got := scaleCoord(0, 1000); got != 0 {
		t.Errorf("scaleCoord(0, 1000) = %d, want 0", got)
	}
	if got := scaleCoord(999, 1000); got != 1000 {
		t.Errorf("scaleCoord(999, 1000) = %d, want 1000", got)
	}
}

func newSolidTestImage(w, h int, c color.Color) *vision.ImageInput {
	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			rgba.Set(x, y, c)
		}
	}
	return &vision.ImageInput{Image: rgba, Width: w, Height: h, Format: vision.FormatPNG}
}

func TestRenderMarkdownDropsNonImageSpans(t *testing.T) {
	raw := "Title: <|ref|>heading<|/ref|><|det|>[[0,0,100,100]]<|/det|> text"
	detections := ParseDetections(raw, 1000)

	out, nextIdx, err := RenderMarkdown(raw, detections, nil, t.TempDir(), 0)
	if err != nil {
		t.Fatalf("RenderMarkdown() error = %v", err)
	}
	if nextIdx != 0 {
		t.Errorf("nextIdx = %d, want 0 (no crops written for a non-image label)", nextIdx)
	}
	want := "Title:  text"
	if out != want {
		t.Errorf("RenderMarkdown() = %q, want %q", out, want)
	}
}

func TestRenderMarkdownCropsImageSpans(t *testing.T) {
	src := newSolidTestImage(200, 200, color.RGBA{R: 255, A: 255})
	raw := "<|ref|>image<|/ref|><|det|>[[0,0,500,500]]<|/det|> caption"
	detections := ParseDetections(raw, 1000)

	outDir := t.TempDir()
	out, nextIdx, err := RenderMarkdown(raw, detections, src, outDir, 0)
	if err != nil {
		t.Fatalf("RenderMarkdown() error = %v", err)
	}
	if nextIdx != 1 {
		t.Fatalf("nextIdx = %d, want 1", nextIdx)
	}

	cropPath := filepath.Join(outDir, "0.jpg")
	if _, err := os.Stat(cropPath); err != nil {
		t.Fatalf("expected crop file at %s: %v", cropPath, err)
	}

	if want := "![](images/0.jpg) caption"; out != want {
		t.Errorf("RenderMarkdown() = %q, want %q", out, want)
	}
}

func TestAnnotateDrawsWithoutMutatingSource(t *testing.T) {
	src := newSolidTestImage(50, 50, color.RGBA{G: 255, A: 255})
	detections := []Detection{{Label: "image", Boxes: []Box{{X0: 5, Y0: 5, X1: 40, Y1: 40}}}}

	out := Annotate(src, detections)
	if out == src {
		t.Fatal("Annotate() returned the same image pointer as the source")
	}

	r, g, b, _ := src.Image.At(5, 5).RGBA()
	if r != 0 || g == 0 || b != 0 {
		t.Error("Annotate() mutated the source image")
	}
}
