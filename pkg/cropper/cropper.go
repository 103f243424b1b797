package cropper

import (
	"image"
	"image/color"
)

// MatchSize reduces two images to their common size by cropping both from the
// top-left origin to (min widths, min heights). The results are views over the
// inputs; nothing is copied.
func MatchSize(a, b image.Image) (image.Image, image.Image) {
	ab, bb := a.Bounds(), b.Bounds()
	w := min(ab.Dx(), bb.Dx())
	h := min(ab.Dy(), bb.Dy())

	return CropTopLeft(a, w, h), CropTopLeft(b, w, h)
}

// CropTopLeft returns a w x h view of img anchored at its top-left corner.
// Requested sizes beyond the image are clamped; negative sizes yield an empty view.
func CropTopLeft(img image.Image, w, h int) image.Image {
	bounds := img.Bounds()
	w = max(0, min(w, bounds.Dx()))
	h = max(0, min(h, bounds.Dy()))

	return &croppedImage{
		original: img,
		bounds:   image.Rect(bounds.Min.X, bounds.Min.Y, bounds.Min.X+w, bounds.Min.Y+h),
	}
}

// croppedImage implements the image.Image interface for cropped views
type croppedImage struct {
	original image.Image
	bounds   image.Rectangle
}

func (c *croppedImage) ColorModel() color.Model {
	return c.original.ColorModel()
}

func (c *croppedImage) Bounds() image.Rectangle {
	return image.Rect(0, 0, c.bounds.Dx(), c.bounds.Dy())
}

func (c *croppedImage) At(x, y int) color.Color {
	pt := image.Point{x, y}
	if !pt.In(c.Bounds()) {
		return c.original.ColorModel().Convert(color.Transparent)
	}
	return c.original.At(x+c.bounds.Min.X, y+c.bounds.Min.Y)
}
