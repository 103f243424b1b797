package types

import (
	"errors"
	"fmt"
	"image"
	"math"
)

var (
	// ErrInvalidInput is returned when an image is missing or has zero area
	ErrInvalidInput = errors.New("invalid input image")
	// ErrInvalidParams is returned by Params.Validate
	ErrInvalidParams = errors.New("invalid pipeline parameters")
)

// Box represents an axis-aligned bounding box in integer pixel coordinates
type Box struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Rect returns the box as an image.Rectangle
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.W, b.Y+b.H)
}

// Area returns the area of the box
func (b Box) Area() int {
	return b.W * b.H
}

// Within reports whether the box lies inside a w x h image
func (b Box) Within(w, h int) bool {
	return b.X >= 0 && b.Y >= 0 && b.X+b.W <= w && b.Y+b.H <= h
}

// Clamp clips the box to a w x h image. A box entirely outside the image
// collapses to zero size at the nearest edge.
func (b Box) Clamp(w, h int) Box {
	r := b.Rect().Intersect(image.Rect(0, 0, w, h))
	if r.Empty() {
		x := min(max(b.X, 0), max(w, 0))
		y := min(max(b.Y, 0), max(h, 0))
		return Box{X: x, Y: y}
	}
	return Box{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}
}

// Scale multiplies every component by the per-axis factors, rounding to the nearest integer
func (b Box) Scale(sx, sy float64) Box {
	return Box{
		X: int(math.Round(float64(b.X) * sx)),
		Y: int(math.Round(float64(b.Y) * sy)),
		W: int(math.Round(float64(b.W) * sx)),
		H: int(math.Round(float64(b.H) * sy)),
	}
}

// ScaleBoxes maps boxes from a fromW x fromH space into a toW x toH space.
// A zero source dimension is treated as 1.
func ScaleBoxes(boxes []Box, fromW, fromH, toW, toH int) []Box {
	sx := float64(toW) / float64(max(1, fromW))
	sy := float64(toH) / float64(max(1, fromH))

	scaled := make([]Box, 0, len(boxes))
	for _, b := range boxes {
		scaled = append(scaled, b.Scale(sx, sy))
	}
	return scaled
}

// AnalysisResult is the output of one reference/suspect comparison
type AnalysisResult struct {
	SSIMScore float64     `json:"ssim_score"`
	Boxes     []Box       `json:"boxes"`
	IoU       *float64    `json:"iou"`
	Overlay   image.Image `json:"-"`
	Heatmap   image.Image `json:"-"`
	Mask      *image.Gray `json:"-"`
	DiffMap   *image.Gray `json:"-"`
}

// Params holds the fixed constants of the comparison pipeline.
// It is passed by value so several configurations can coexist.
type Params struct {
	// Normalized comparison size
	Width  int `json:"width"`
	Height int `json:"height"`

	// SSIM sliding window side and stabilization constants
	WinSize int     `json:"win_size"`
	K1      float64 `json:"k1"`
	K2      float64 `json:"k2"`

	// Smoothing kernel side applied before thresholding
	BlurSize int `json:"blur_size"`

	// Morphology structuring element side
	KernelSize int `json:"kernel_size"`

	// Minimum region area as a fraction of the mask area
	AreaRatio float64 `json:"area_ratio"`

	// Pixels added on each side of a detected box
	Padding int `json:"padding"`
}

// DefaultParams returns the standard 250x160 configuration
func DefaultParams() Params {
	return Params{
		Width:      250,
		Height:     160,
		WinSize:    7,
		K1:         0.01,
		K2:         0.03,
		BlurSize:   5,
		KernelSize: 3,
		AreaRatio:  0.0005,
		Padding:    2,
	}
}

// Validate checks the parameters for usable values
func (p Params) Validate() error {
	if p.Width < 1 || p.Height < 1 {
		return fmt.Errorf("%w: normalized size %dx%d must be positive", ErrInvalidParams, p.Width, p.Height)
	}
	if p.WinSize < 3 || p.WinSize%2 == 0 {
		return fmt.Errorf("%w: win_size must be odd and >= 3, got %d", ErrInvalidParams, p.WinSize)
	}
	if p.WinSize > p.Width || p.WinSize > p.Height {
		return fmt.Errorf("%w: win_size %d exceeds normalized size %dx%d", ErrInvalidParams, p.WinSize, p.Width, p.Height)
	}
	if p.K1 <= 0 || p.K2 <= 0 {
		return fmt.Errorf("%w: k1 and k2 must be positive", ErrInvalidParams)
	}
	if p.BlurSize != 1 && p.BlurSize != 3 && p.BlurSize != 5 {
		return fmt.Errorf("%w: blur_size must be 1, 3 or 5, got %d", ErrInvalidParams, p.BlurSize)
	}
	if p.KernelSize < 1 || p.KernelSize%2 == 0 {
		return fmt.Errorf("%w: kernel_size must be odd and positive, got %d", ErrInvalidParams, p.KernelSize)
	}
	if p.AreaRatio < 0 || p.AreaRatio >= 1 {
		return fmt.Errorf("%w: area_ratio must be in [0,1), got %f", ErrInvalidParams, p.AreaRatio)
	}
	if p.Padding < 0 {
		return fmt.Errorf("%w: padding must not be negative", ErrInvalidParams)
	}
	return nil
}
