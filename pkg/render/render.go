// Package render draws detection overlays and similarity heatmaps.
package render

import (
	"image"
	"image/color"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/menta2k/ssimdiff/pkg/types"
)

// BoxStroke is the outline width of overlay boxes in pixels
const BoxStroke = 2

// BoxColor is the outline color of overlay boxes
var BoxColor = color.NRGBA{255, 0, 0, 255}

// jetStops are the anchor colors of the jet colormap
var jetStops = []struct {
	pos float64
	c   colorful.Color
}{
	{0.0, colorful.Color{R: 0, G: 0, B: 0.5}},
	{0.125, colorful.Color{R: 0, G: 0, B: 1}},
	{0.375, colorful.Color{R: 0, G: 1, B: 1}},
	{0.625, colorful.Color{R: 1, G: 1, B: 0}},
	{0.875, colorful.Color{R: 1, G: 0, B: 0}},
	{1.0, colorful.Color{R: 0.5, G: 0, B: 0}},
}

var (
	jetOnce sync.Once
	jet     [256]color.NRGBA
)

// JetPalette returns the 256-entry jet colormap: dark blue for 0 through
// cyan and yellow to dark red for 255.
func JetPalette() [256]color.NRGBA {
	jetOnce.Do(func() {
		for i := range jet {
			jet[i] = jetColor(float64(i) / 255)
		}
	})
	return jet
}

func jetColor(t float64) color.NRGBA {
	for i := 1; i < len(jetStops); i++ {
		lo, hi := jetStops[i-1], jetStops[i]
		if t <= hi.pos {
			c := lo.c.BlendRgb(hi.c, (t-lo.pos)/(hi.pos-lo.pos)).Clamped()
			r, g, b := c.RGB255()
			return color.NRGBA{r, g, b, 255}
		}
	}
	r, g, b := jetStops[len(jetStops)-1].c.RGB255()
	return color.NRGBA{r, g, b, 255}
}

// Overlay returns a copy of img with every box outlined in BoxColor.
// Boxes are drawn inside their rectangle and clipped to the image.
func Overlay(img image.Image, boxes []types.Box) *image.NRGBA {
	out := imaging.Clone(img)
	for _, b := range boxes {
		drawBox(out, b, BoxColor, BoxStroke)
	}
	return out
}

// Heatmap colors diff through the jet palette and upsamples it to w x h with
// nearest-neighbour sampling so individual map cells stay visible.
func Heatmap(diff *image.Gray, w, h int) *image.NRGBA {
	palette := JetPalette()
	b := diff.Bounds()
	small := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := palette[diff.Pix[y*diff.Stride+x]]
			i := y*small.Stride + x*4
			small.Pix[i+0] = c.R
			small.Pix[i+1] = c.G
			small.Pix[i+2] = c.B
			small.Pix[i+3] = c.A
		}
	}

	if w == b.Dx() && h == b.Dy() {
		return small
	}
	return imaging.Resize(small, w, h, imaging.NearestNeighbor)
}

// MaskImage renders a binary mask as an opaque black and white image
func MaskImage(mask *image.Gray, w, h int) *image.NRGBA {
	return imaging.Resize(mask, w, h, imaging.NearestNeighbor)
}

// drawBox outlines box with a stroke that stays inside its rectangle
func drawBox(img *image.NRGBA, box types.Box, c color.NRGBA, stroke int) {
	x0, y0 := box.X, box.Y
	x1, y1 := box.X+box.W, box.Y+box.H
	if x1 <= x0 || y1 <= y0 {
		return
	}
	for s := 0; s < stroke; s++ {
		drawHLine(img, y0+s, x0, x1, c)
		drawHLine(img, y1-1-s, x0, x1, c)
		drawVLine(img, x0+s, y0, y1, c)
		drawVLine(img, x1-1-s, y0, y1, c)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if x1 <= 0 || x0 >= img.Bounds().Dx() {
		return
	}
	x0 = max(x0, 0)
	x1 = min(x1, img.Bounds().Dx())
	i := y*img.Stride + x0*4
	for x := x0; x < x1; x++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	if y1 <= 0 || y0 >= img.Bounds().Dy() {
		return
	}
	y0 = max(y0, 0)
	y1 = min(y1, img.Bounds().Dy())
	i := y0*img.Stride + x*4
	for y := y0; y < y1; y++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += img.Stride
	}
}
