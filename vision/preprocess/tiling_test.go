package preprocess

import (
	"image"
	"image/color"
	"testing"

	"ocr-go-infer/vision"
)

func newTestImage(w, h int) *vision.ImageInput {
	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			rgba.Set(x, y, color.RGBA{R: uint8(x % 255), G: uint8(y % 255), B: 128, A: 255})
		}
	}
	return &vision.ImageInput{Image: rgba, Width: w, Height: h, Format: vision.FormatPNG}
}

func TestSelectResolutionPrefersClosestAspect(t *testing.T) {
	candidates := []Resolution{
		{Width: 1, Height: 1},
		{Width: 2, Height: 1},
		{Width: 1, Height: 2},
	}

	// a wide source image should prefer the wide candidate grid
	got := selectResolution(2000, 1000, candidates)
	if got != (Resolution{Width: 2, Height: 1}) {
		t.Fatalf("selectResolution() = %+v, want {2 1}", got)
	}

	// a tall source image should prefer the tall candidate grid
	got = selectResolution(1000, 2000, candidates)
	if got != (Resolution{Width: 1, Height: 2}) {
		t.Fatalf("selectResolution() = %+v, want {1 2}", got)
	}
}

func TestSelectResolutionSquareSourcePrefersSquareGrid(t *testing.T) {
	candidates := []Resolution{
		{Width: 1, Height: 1},
		{Width: 3, Height: 1},
	}
	got := selectResolution(1000, 1000, candidates)
	if got != (Resolution{Width: 1, Height: 1}) {
		t.Fatalf("selectResolution() = %+v, want {1 1}", got)
	}
}

func TestProcessSkipsLocalTilingForSingleTileResolution(t *testing.T) {
	img := newTestImage(800, 800)
	candidates := []Resolution{{Width: 1, Height: 1}}

	result, err := Process(img, candidates, 64, vision.ImageNetStandardMean, vision.ImageNetStandardStd)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(result.Local) != 0 {
		t.Fatalf("len(result.Local) = %d, want 0", len(result.Local))
	}
	if len(result.Global.Pixels) != 64*64*3 {
		t.Fatalf("len(result.Global.Pixels) = %d, want %d", len(result.Global.Pixels), 64*64*3)
	}
}

func TestProcessProducesGridOfLocalTiles(t *testing.T) {
	img := newTestImage(1600, 800)
	candidates := []Resolution{{Width: 2, Height: 1}}

	result, err := Process(img, candidates, 64, vision.ImageNetStandardMean, vision.ImageNetStandardStd)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if result.GridWidth != 2 || result.GridHeight != 1 {
		t.Fatalf("grid = %dx%d, want 2x1", result.GridWidth, result.GridHeight)
	}
	if len(result.Local) != 2 {
		t.Fatalf("len(result.Local) = %d, want 2", len(result.Local))
	}
	for i, tile := range result.Local {
		if len(tile.Pixels) != 64*64*3 {
			t.Errorf("tile %d: len(Pixels) = %d, want %d", i, len(tile.Pixels), 64*64*3)
		}
	}
}

func TestProcessWithNoCandidatesOnlyProducesGlobal(t *testing.T) {
	img := newTestImage(400, 300)
	result, err := Process(img, nil, 64, vision.ImageNetStandardMean, vision.ImageNetStandardStd)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(result.Local) != 0 {
		t.Fatalf("len(result.Local) = %d, want 0", len(result.Local))
	}
}
