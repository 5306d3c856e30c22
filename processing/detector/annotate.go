package detector

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"coralcam/internal/models"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const minConfidence = 0.5

var (
	coral = color.RGBA{R: 253, G: 94, B: 77, A: 255}
	white = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

var labelFace = basicfont.Face7x13

func cloneRGBA(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, src, b.Min, draw.Src)
	return dst
}

func drawRect(img *image.RGBA, y1, x1, y2, x2 int, col color.Color) {
	thickness := 4
	bounds := img.Bounds()

	setPixel := func(x, y int) {
		if (image.Point{X: x, Y: y}).In(bounds) {
			img.Set(x, y, col)
		}
	}

	for t := 0; t < thickness; t++ {
		for x := x1; x <= x2; x++ {
			setPixel(x, y1+t)
			setPixel(x, y2-t)
		}
		for y := y1; y <= y2; y++ {
			setPixel(x1+t, y)
			setPixel(x2-t, y)
		}
	}
}

func textSize(text string) (width, height int) {
	d := &font.Drawer{Face: labelFace}
	return d.MeasureString(text).Ceil(), labelFace.Metrics().Ascent.Ceil()
}

// drawText writes text with its baseline at y. A nil bg leaves the frame
// visible behind the glyphs.
func drawText(dst *image.RGBA, x, y int, text string, fg, bg color.Color) {
	if bg != nil {
		w, h := textSize(text)
		draw.Draw(dst, image.Rect(x-2, y-h-2, x+w+2, y+labelFace.Metrics().Descent.Ceil()+2),
			image.NewUniform(bg), image.Point{}, draw.Src)
	}

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(fg),
		Face: labelFace,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

// annotateDetections boxes every result above the confidence threshold and
// tags it with "<label>: <pct>%". Tags never sit above the top edge.
func annotateDetections(img *image.RGBA, results []models.DetectionResult, labels models.Labels) {
	width, height := img.Bounds().Dx(), img.Bounds().Dy()

	for _, r := range results {
		if !r.HasBox() || r.Confidence <= minConfidence || r.Confidence >= 1.0 {
			continue
		}

		box := r.PixelBox(width, height)
		drawRect(img, box.Y1, box.X1, box.Y2, box.X2, coral)

		tag := fmt.Sprintf("%s: %d%%", resultLabel(r, labels), int(r.Confidence*100))
		_, th := textSize(tag)
		baseline := max(box.Y1, th+10) - 7
		drawText(img, box.X1, baseline, tag, white, coral)
	}
}

// annotateClassification prints the top class and its score in the top right corner.
func annotateClassification(img *image.RGBA, results []models.DetectionResult, labels models.Labels) {
	if len(results) == 0 {
		return
	}

	best := results[0]
	for _, r := range results[1:] {
		if r.Confidence > best.Confidence {
			best = r
		}
	}

	classText := "class: " + resultLabel(best, labels)
	scoreText := fmt.Sprintf("score: %.3f", best.Confidence)

	cw, ch := textSize(classText)
	x := img.Bounds().Max.X - (cw + 30)
	y := ch + 5
	drawText(img, x, y, classText, coral, nil)

	_, sh := textSize(scoreText)
	drawText(img, x, y+sh+5, scoreText, coral, nil)
}

// overlayModelInfo writes the model file and its input size in the top left corner.
func overlayModelInfo(img *image.RGBA, modelFile, inputSize string) {
	if modelFile == "" {
		return
	}
	_, h := textSize(modelFile)
	y := h + 5
	drawText(img, 10, y, modelFile, coral, nil)

	if inputSize != "" {
		_, sh := textSize(inputSize)
		drawText(img, 10, y+sh+5, inputSize, coral, nil)
	}
}

func resultLabel(r models.DetectionResult, labels models.Labels) string {
	if r.Label != "" {
		return r.Label
	}
	return labels.Name(r.Class)
}
