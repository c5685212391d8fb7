// Package postprocess parses grounded bounding-box spans out of generated
// OCR text, crops the referenced image regions, and renders the result as
// markdown with image links in place of the parsed spans.
package postprocess

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"ocr-go-infer/vision"
)

// spanPattern matches `<|ref|>LABEL<|/ref|><|det|>[[x1,y1,x2,y2], ...]<|/det|>`.
var spanPattern = regexp.MustCompile(`<\|ref\|>(.*?)<\|/ref\|><\|det\|>(\[\[[^\]]*(?:\],\s*\[[^\]]*)*\]\])<\|/det\|>`)

var boxPattern = regexp.MustCompile(`\[(\d+),\s*(\d+),\s*(\d+),\s*(\d+)\]`)

// Box is one parsed bounding box in pixel coordinates.
type Box struct {
	X0, Y0, X1, Y1 int
}

// Detection is one grounded span: a label and the boxes it covers.
type Detection struct {
	Label string
	Boxes []Box
	Start, End int // byte offsets of the whole span in the source text
}

// imageLabel identifies spans whose regions should be cropped and saved as
// image files rather than simply dropped from the rendered text.
const imageLabel = "image"

// ParseDetections scans raw for grounded spans, scaling each box's
// normalized [0,999] coordinates into pixel space against side (the
// source image's width and height, assumed square per the tiling grid).
func ParseDetections(raw string, side int) []Detection {
	matches := spanPattern.FindAllStringSubmatchIndex(raw, -1)
	detections := make([]Detection, 0, len(matches))

	for _, m := range matches {
		label := raw[m[2]:m[3]]
		boxesText := raw[m[4]:m[5]]

		var boxes []Box
		for _, bm := range boxPattern.FindAllStringSubmatch(boxesText, -1) {
			x0, _ := strconv.Atoi(bm[1])
			y0, _ := strconv.Atoi(bm[2])
			x1, _ := strconv.Atoi(bm[3])
			y1, _ := strconv.Atoi(bm[4])
			boxes = append(boxes, Box{
				X0: scaleCoord(x0, side),
				Y0: scaleCoord(y0, side),
				X1: scaleCoord(x1, side),
				Y1: scaleCoord(y1, side),
			})
		}

		detections = append(detections, Detection{
			Label: label,
			Boxes: boxes,
			Start: m[0],
			End:   m[1],
		})
	}

	return detections
}

// scaleCoord maps a normalized [0,999] coordinate onto [0,side].
func scaleCoord(coord, side int) int {
	return int(float64(coord)/999.0*float64(side) + 0.5)
}

// RenderMarkdown replaces every grounded span in raw with a markdown image
// link (for image-labeled spans, after cropping and saving each of their
// boxes under outDir) or drops the span entirely (for any other label).
// Crops are numbered sequentially across the whole document starting from
// nextIndex, which RenderMarkdown returns incremented by how many crops it
// wrote, so callers can chain calls across multiple pages.
func RenderMarkdown(raw string, detections []Detection, src *vision.ImageInput, outDir string, nextIndex int) (string, int, error) {
	var b strings.Builder
	cursor := 0
	cropIndex := nextIndex

	for _, d := range detections {
		b.WriteString(raw[cursor:d.Start])
		cursor = d.End

		if d.Label != imageLabel || src == nil {
			continue
		}

		for _, box := range d.Boxes {
			path := filepath.Join(outDir, fmt.Sprintf("%d.jpg", cropIndex))
			if err := cropAndSave(src, box, path); err != nil {
				return "", cropIndex, err
			}
			b.WriteString(fmt.Sprintf("![](%s)", filepath.Join("images", fmt.Sprintf("%d.jpg", cropIndex))))
			cropIndex++
		}
	}
	b.WriteString(raw[cursor:])

	return b.String(), cropIndex, nil
}

func cropAndSave(src *vision.ImageInput, box Box, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	rect := image.Rect(0, 0, box.X1-box.X0, box.Y1-box.Y0)
	dst := image.NewRGBA(rect)
	draw.Draw(dst, rect, src.Image, image.Pt(box.X0, box.Y0), draw.Src)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return jpeg.Encode(f, dst, &jpeg.Options{Quality: 92})
}

// Annotate draws every detection's box outlines onto a copy of src, for
// visual debugging of what the model grounded. It draws no label text.
func Annotate(src *vision.ImageInput, detections []Detection) *vision.ImageInput {
	bounds := src.Image.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, src.Image, bounds.Min, draw.Src)

	boxColor := color.RGBA{R: 255, G: 0, B: 0, A: 255}
	for _, d := range detections {
		for _, box := range d.Boxes {
			drawRect(dst, box, boxColor)
		}
	}

	return &vision.ImageInput{Image: dst, Width: src.Width, Height: src.Height, Format: src.Format}
}

func drawRect(dst *image.RGBA, box Box, c color.Color) {
	for x := box.X0; x < box.X1; x++ {
		dst.Set(x, box.Y0, c)
		dst.Set(x, box.Y1-1, c)
	}
	for y := box.Y0; y < box.Y1; y++ {
		dst.Set(box.X0, y, c)
		dst.Set(box.X1-1, y, c)
	}
}
