// Package metrics scores predicted change masks against ground truth.
package metrics

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

// unionEpsilon keeps IoU defined when both masks are empty
const unionEpsilon = 1e-9

// ErrMaskSize is returned when two masks do not have the same dimensions
var ErrMaskSize = errors.New("mask dimensions do not match")

// IoU returns the intersection-over-union of the nonzero pixels of pred and
// gt. Two empty masks score 0.
func IoU(pred, gt *image.Gray) (float64, error) {
	pb, gb := pred.Bounds(), gt.Bounds()
	if pb.Size() != gb.Size() {
		return 0, fmt.Errorf("%w: %dx%d vs %dx%d", ErrMaskSize, pb.Dx(), pb.Dy(), gb.Dx(), gb.Dy())
	}

	w, h := pb.Dx(), pb.Dy()
	var inter, union int
	for y := 0; y < h; y++ {
		prow := pred.Pix[y*pred.Stride : y*pred.Stride+w]
		grow := gt.Pix[y*gt.Stride : y*gt.Stride+w]
		for x := range w {
			p, g := prow[x] != 0, grow[x] != 0
			if p && g {
				inter++
			}
			if p || g {
				union++
			}
		}
	}

	return float64(inter) / (float64(union) + unionEpsilon), nil
}

// BinarizeGray converts img to a {0,255} mask where any nonzero luma is 255
func BinarizeGray(img image.Image) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y != 0 {
				out.Pix[(y-b.Min.Y)*out.Stride+(x-b.Min.X)] = 255
			}
		}
	}
	return out
}

// Coverage returns the fraction of mask pixels that are nonzero
func Coverage(mask *image.Gray) float64 {
	b := mask.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return 0
	}
	n := 0
	for y := 0; y < h; y++ {
		for _, v := range mask.Pix[y*mask.Stride : y*mask.Stride+w] {
			if v != 0 {
				n++
			}
		}
	}
	return float64(n) / float64(w*h)
}
