package similarity

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/stat"

	"github.com/menta2k/ssimdiff/pkg/types"
)

// dynamicRange is the value range of 8-bit samples
const dynamicRange = 255.0

// Mapper computes structural similarity maps between two images
type Mapper struct {
	params types.Params
}

// Map is the result of a similarity computation
type Map struct {
	// Mean SSIM over the map with the window border excluded
	Score float64
	// Per-pixel SSIM, row-major, Width*Height values
	Raw []float64
	// Raw scaled to 8 bits, 255 = identical
	Diff *image.Gray
}

// New creates a Mapper with the default parameters
func New() *Mapper {
	return &Mapper{params: types.DefaultParams()}
}

// NewWithParams creates a Mapper with custom parameters
func NewWithParams(params types.Params) *Mapper {
	return &Mapper{params: params}
}

// Params returns the parameters used by the mapper
func (m *Mapper) Params() types.Params {
	return m.params
}

// Compute normalizes both images and returns their similarity map
func (m *Mapper) Compute(ref, sus image.Image) (Map, error) {
	if err := m.params.Validate(); err != nil {
		return Map{}, err
	}
	if err := checkImage("reference", ref); err != nil {
		return Map{}, err
	}
	if err := checkImage("suspect", sus); err != nil {
		return Map{}, err
	}

	a := Normalize(ref, m.params.Width, m.params.Height)
	b := Normalize(sus, m.params.Width, m.params.Height)

	score, raw := SSIM(a, b, m.params)

	return Map{
		Score: score,
		Raw:   raw,
		Diff:  ToGray8(raw, m.params.Width, m.params.Height),
	}, nil
}

func checkImage(name string, img image.Image) error {
	if img == nil {
		return fmt.Errorf("%w: %s image is nil", types.ErrInvalidInput, name)
	}
	b := img.Bounds()
	if b.Dx() < 1 || b.Dy() < 1 {
		return fmt.Errorf("%w: %s image has size %dx%d", types.ErrInvalidInput, name, b.Dx(), b.Dy())
	}
	return nil
}

// Normalize converts img to luma and resizes it to w x h. Each axis is
// area-averaged when it shrinks and linearly interpolated when it grows.
func Normalize(img image.Image, w, h int) *image.Gray {
	gray := imaging.Grayscale(img)
	b := gray.Bounds()
	resized := imaging.Resize(gray, w, b.Dy(), axisFilter(b.Dx(), w))
	resized = imaging.Resize(resized, w, h, axisFilter(b.Dy(), h))

	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		src := resized.Pix[y*resized.Stride:]
		dst := out.Pix[y*out.Stride:]
		for x := 0; x < w; x++ {
			dst[x] = src[x*4]
		}
	}
	return out
}

// axisFilter picks the resampling filter for one axis going from n to m samples.
// The box filter's support shrinks below a pixel when upsampling, which
// degenerates into nearest-neighbour sampling.
func axisFilter(n, m int) imaging.ResampleFilter {
	if m > n {
		return imaging.Linear
	}
	return imaging.Box
}

// SSIM computes the mean structural similarity and the full per-pixel map of
// two equally sized grayscale images. Local statistics use a uniform
// WinSize x WinSize window with mirrored borders and sample covariance.
func SSIM(a, b *image.Gray, params types.Params) (float64, []float64) {
	w, h := a.Bounds().Dx(), a.Bounds().Dy()
	n := w * h

	x := grayToFloat(a)
	y := grayToFloat(b)

	xx := make([]float64, n)
	yy := make([]float64, n)
	xy := make([]float64, n)
	for i := range n {
		xx[i] = x[i] * x[i]
		yy[i] = y[i] * y[i]
		xy[i] = x[i] * y[i]
	}

	win := params.WinSize
	ux := uniformFilter(x, w, h, win)
	uy := uniformFilter(y, w, h, win)
	uxx := uniformFilter(xx, w, h, win)
	uyy := uniformFilter(yy, w, h, win)
	uxy := uniformFilter(xy, w, h, win)

	np := float64(win * win)
	covNorm := np / (np - 1)

	c1 := math.Pow(params.K1*dynamicRange, 2)
	c2 := math.Pow(params.K2*dynamicRange, 2)

	s := make([]float64, n)
	for i := range n {
		vx := covNorm * (uxx[i] - ux[i]*ux[i])
		vy := covNorm * (uyy[i] - uy[i]*uy[i])
		vxy := covNorm * (uxy[i] - ux[i]*uy[i])

		a1 := 2*ux[i]*uy[i] + c1
		a2 := 2*vxy + c2
		b1 := ux[i]*ux[i] + uy[i]*uy[i] + c1
		b2 := vx + vy + c2

		s[i] = (a1 * a2) / (b1 * b2)
	}

	return meanCropped(s, w, h, (win-1)/2), s
}

// ToGray8 scales similarity values to 8 bits. Values are clamped to [0,255]
// before truncation so negative similarity saturates at 0.
func ToGray8(raw []float64, w, h int) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := raw[y*w+x] * dynamicRange
			out.Pix[y*out.Stride+x] = uint8(math.Max(0, math.Min(dynamicRange, v)))
		}
	}
	return out
}

// meanCropped averages the map with a pad-pixel border excluded. Maps too small
// to crop are averaged whole.
func meanCropped(s []float64, w, h, pad int) float64 {
	if w <= 2*pad || h <= 2*pad {
		return stat.Mean(s, nil)
	}

	inner := make([]float64, 0, (w-2*pad)*(h-2*pad))
	for y := pad; y < h-pad; y++ {
		inner = append(inner, s[y*w+pad:y*w+w-pad]...)
	}
	return stat.Mean(inner, nil)
}

func grayToFloat(img *image.Gray) []float64 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]float64, w*h)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			out[y*w+x] = float64(row[x])
		}
	}
	return out
}

// uniformFilter is a separable mean filter of side size with symmetric
// (edge-repeating) reflection at the borders.
func uniformFilter(src []float64, w, h, size int) []float64 {
	r := size / 2
	inv := 1 / float64(size)

	tmp := make([]float64, w*h)
	for y := 0; y < h; y++ {
		row := src[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			var sum float64
			for k := -r; k <= r; k++ {
				sum += row[reflect(x+k, w)]
			}
			tmp[y*w+x] = sum * inv
		}
	}

	out := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum float64
			for k := -r; k <= r; k++ {
				sum += tmp[reflect(y+k, h)*w+x]
			}
			out[y*w+x] = sum * inv
		}
	}
	return out
}

// reflect maps i into [0,n) mirroring about the array edges: d c b a | a b c d | d c b a
func reflect(i, n int) int {
	for i < 0 || i >= n {
		if i < 0 {
			i = -i - 1
		}
		if i >= n {
			i = 2*n - i - 1
		}
	}
	return i
}
