// Package localize turns a similarity map into a binary change mask and
// bounding boxes around the changed regions.
package localize

import (
	"image"

	"github.com/menta2k/ssimdiff/pkg/types"
)

// Localizer extracts changed regions from 8-bit similarity maps
type Localizer struct {
	params types.Params
}

// New creates a Localizer with the default parameters
func New() *Localizer {
	return &Localizer{params: types.DefaultParams()}
}

// NewWithParams creates a Localizer with custom parameters
func NewWithParams(params types.Params) *Localizer {
	return &Localizer{params: params}
}

// Localize smooths and binarizes diff (low similarity becomes 255), cleans
// the mask with morphology and returns it together with padded boxes around
// every external region of at least minArea pixels. The effective minimum is
// never below AreaRatio of the mask area.
//
// A map with a single gray level thresholds at 0, so a uniformly dissimilar
// map flags the whole frame while a uniformly similar one flags nothing.
func (l *Localizer) Localize(diff *image.Gray, minArea int) (*image.Gray, []types.Box) {
	b := diff.Bounds()
	w, h := b.Dx(), b.Dy()
	boxes := []types.Box{}

	blurred := GaussianBlur(diff, l.params.BlurSize)
	mask := ThresholdBinaryInv(blurred, OtsuThreshold(blurred))
	mask = Close(mask, l.params.KernelSize)
	mask = Dilate(mask, l.params.KernelSize)

	areaThresh := max(minArea, int(l.params.AreaRatio*float64(w*h)))

	for _, c := range FindExternalContours(mask) {
		if c.Area() < float64(areaThresh) {
			continue
		}
		boxes = append(boxes, l.pad(c.BoundingRect(), w, h))
	}

	return mask, boxes
}

// pad grows r by the configured padding, clamped to a w x h mask
func (l *Localizer) pad(r image.Rectangle, w, h int) types.Box {
	p := l.params.Padding
	x := max(0, r.Min.X-p)
	y := max(0, r.Min.Y-p)
	return types.Box{
		X: x,
		Y: y,
		W: min(w-x, r.Dx()+2*p),
		H: min(h-y, r.Dy()+2*p),
	}
}
