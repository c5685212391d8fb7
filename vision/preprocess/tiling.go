// MODUL: tiling
// ZWECK: Dynamisches Kachel-Preprocessing fuer DeepSeek-OCR: Auswahl der
// passenden Kandidaten-Aufloesung, Erzeugung der globalen und lokalen
// Kacheln, Normalisierung zu float32-Tensoren im [W,H,C,1]-Layout.
// ABHAENGIGKEITEN: ocr-go-infer/vision (Bild-IO, Resize, Normalisierung)

package preprocess

import (
	"image"
	"sort"

	"golang.org/x/image/draw"

	"ocr-go-infer/vision"
)

// Resolution is a candidate (width, height) tile-grid resolution, given in
// multiples of TileSize.
type Resolution struct {
	Width, Height int
}

// Tile is one preprocessed image tile ready for the vision encoder: Pixels
// is normalized float32 data in [W, H, C, 1] layout.
type Tile struct {
	Pixels        []float32
	Width, Height int
}

// Result is the full set of tiles produced for one input image: exactly
// one Global tile (the whole image resized down) plus zero or more Local
// tiles (a grid crop of the image at its selected candidate resolution).
// GridWidth/GridHeight record the local tile grid's shape in tiles.
type Result struct {
	Global                Tile
	Local                 []Tile
	GridWidth, GridHeight int
}

// Process selects the best-fitting candidate resolution for img's aspect
// ratio, resizes the whole image down to tileSize for the global view, and
// crops the image (after resizing to the selected grid resolution) into
// tileSize x tileSize local tiles. mean/std normalize each tile the way
// the vision backbone was trained (see vision.ClipMean/ClipStd and
// vision.ImageNetStandardMean/Std for the presets the pack already
// defines).
func Process(img *vision.ImageInput, candidates []Resolution, tileSize int, mean, std [3]float32) (Result, error) {
	global, err := vision.ResizeImage(img, tileSize, tileSize)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		Global: Tile{
			Pixels: vision.NormalizeRGB(global, mean, std),
			Width:  tileSize,
			Height: tileSize,
		},
	}

	if len(candidates) == 0 {
		return result, nil
	}

	best := selectResolution(img.Width, img.Height, candidates)
	if best.Width == 1 && best.Height == 1 {
		// single-tile images skip the local grid entirely; the global
		// view alone already covers the whole image at full resolution.
		return result, nil
	}

	gridW, gridH := best.Width*tileSize, best.Height*tileSize
	resized, err := vision.ResizeImage(img, gridW, gridH)
	if err != nil {
		return Result{}, err
	}

	result.GridWidth, result.GridHeight = best.Width, best.Height
	for ty := 0; ty < best.Height; ty++ {
		for tx := 0; tx < best.Width; tx++ {
			crop, err := cropTile(resized, tx*tileSize, ty*tileSize, tileSize)
			if err != nil {
				return Result{}, err
			}
			result.Local = append(result.Local, Tile{
				Pixels: vision.NormalizeRGB(crop, mean, std),
				Width:  tileSize,
				Height: tileSize,
			})
		}
	}

	return result, nil
}

// cropTile extracts a tileSize x tileSize region starting at (x0, y0).
func cropTile(img *vision.ImageInput, x0, y0, tileSize int) (*vision.ImageInput, error) {
	dst := image.NewRGBA(image.Rect(0, 0, tileSize, tileSize))
	srcRect := image.Rect(x0, y0, x0+tileSize, y0+tileSize)
	draw.Draw(dst, dst.Bounds(), img.Image, srcRect.Min, draw.Src)

	return &vision.ImageInput{
		Image:  dst,
		Width:  tileSize,
		Height: tileSize,
		Format: img.Format,
	}, nil
}

// selectResolution picks the candidate whose aspect ratio best fits the
// source image: it prefers the one with the closest aspect ratio,
// breaking ties by the wasted score computed below. Candidates are not
// filtered by how far they would upscale the image.
func selectResolution(srcW, srcH int, candidates []Resolution) Resolution {
	srcAspect := float64(srcW) / float64(srcH)

	type scored struct {
		res         Resolution
		aspectDelta float64
		wasted      float64
	}

	scoredCandidates := make([]scored, len(candidates))
	for i, c := range candidates {
		aspect := float64(c.Width) / float64(c.Height)
		scaleW := float64(srcW) / float64(c.Width)
		scaleH := float64(srcH) / float64(c.Height)
		scale := scaleW
		if scaleH < scale {
			scale = scaleH
		}
		fitW, fitH := float64(srcW)*scale, float64(srcH)*scale
		wasted := float64(c.Width)*float64(c.Height) - fitW*fitH

		scoredCandidates[i] = scored{
			res:     c,
			aspectDelta: absf(aspect - srcAspect),
			wasted:  wasted,
		}
	}

	sort.Slice(scoredCandidates, func(i, j int) bool {
		if scoredCandidates[i].aspectDelta != scoredCandidates[j].aspectDelta {
			return scoredCandidates[i].aspectDelta < scoredCandidates[j].aspectDelta
		}
		return scoredCandidates[i].wasted < scoredCandidates[j].wasted
	})

	return scoredCandidates[0].res
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
