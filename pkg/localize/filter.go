package localize

import (
	"image"
	"math"
)

// Binomial smoothing kernels indexed by side length. Their weights sum to a
// power of two so the 8-bit result can be rounded exactly.
var binomialKernels = map[int][]int{
	1: {1},
	3: {1, 2, 1},
	5: {1, 4, 6, 4, 1},
}

// GaussianBlur smooths src with a size x size binomial Gaussian kernel.
// Borders are mirrored without repeating the edge pixel (gfedcb|abcdefgh|gfedcba).
// Supported sizes are 1, 3 and 5; other sizes return a copy of src.
func GaussianBlur(src *image.Gray, size int) *image.Gray {
	kernel, ok := binomialKernels[size]
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))

	if !ok || size == 1 {
		for y := 0; y < h; y++ {
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+w], src.Pix[y*src.Stride:y*src.Stride+w])
		}
		return dst
	}

	r := size / 2
	norm := 0
	for _, k := range kernel {
		norm += k
	}
	div := norm * norm

	tmp := make([]int, w*h)
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride:]
		for x := 0; x < w; x++ {
			acc := 0
			for i, k := range kernel {
				acc += k * int(row[reflect101(x+i-r, w)])
			}
			tmp[y*w+x] = acc
		}
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			acc := 0
			for i, k := range kernel {
				acc += k * tmp[reflect101(y+i-r, h)*w+x]
			}
			dst.Pix[y*dst.Stride+x] = uint8((acc + div/2) / div)
		}
	}
	return dst
}

// reflect101 maps i into [0,n) mirroring about the edge pixels
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*n - 2 - i
		}
	}
	return i
}

// OtsuThreshold returns the gray level that maximizes the between-class
// variance of img's histogram, which is the level minimizing the intra-class
// variance. An image with a single gray level yields 0.
func OtsuThreshold(img *image.Gray) uint8 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	total := w * h
	if total == 0 {
		return 0
	}

	var hist [256]int
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w]
		for _, v := range row {
			hist[v]++
		}
	}

	scale := 1 / float64(total)
	mu := 0.0
	for i, c := range hist {
		mu += float64(i) * float64(c)
	}
	mu *= scale

	// float32 machine epsilon
	const eps = 1.1920929e-07

	var mu1, q1, maxSigma float64
	maxVal := 0
	for i, c := range hist {
		p := float64(c) * scale
		mu1 *= q1
		q1 += p
		q2 := 1 - q1

		if math.Min(q1, q2) < eps || math.Max(q1, q2) > 1-eps {
			continue
		}

		mu1 = (mu1 + float64(i)*p) / q1
		mu2 := (mu - q1*mu1) / q2
		sigma := q1 * q2 * (mu1 - mu2) * (mu1 - mu2)
		if sigma > maxSigma {
			maxSigma = sigma
			maxVal = i
		}
	}
	return uint8(maxVal)
}

// ThresholdBinaryInv marks pixels at or below t as 255 and the rest as 0
func ThresholdBinaryInv(img *image.Gray, t uint8) *image.Gray {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		src := img.Pix[y*img.Stride:]
		out := dst.Pix[y*dst.Stride:]
		for x := 0; x < w; x++ {
			if src[x] <= t {
				out[x] = 255
			}
		}
	}
	return dst
}
