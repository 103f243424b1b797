package localize

import "image"

// Dilate replaces every pixel with the maximum over a size x size square
// neighbourhood. Pixels outside the image are ignored.
func Dilate(img *image.Gray, size int) *image.Gray {
	return morph(img, size, func(a, b uint8) bool { return b > a })
}

// Erode replaces every pixel with the minimum over a size x size square
// neighbourhood. Pixels outside the image are ignored.
func Erode(img *image.Gray, size int) *image.Gray {
	return morph(img, size, func(a, b uint8) bool { return b < a })
}

// Close is a dilation followed by an erosion. It merges fragments separated
// by gaps narrower than the structuring element.
func Close(img *image.Gray, size int) *image.Gray {
	return Erode(Dilate(img, size), size)
}

// morph applies a rectangular rank filter; better reports whether b should
// replace the running value a. The square element is separable, so rows and
// columns are processed in two passes.
func morph(img *image.Gray, size int, better func(a, b uint8) bool) *image.Gray {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	r := size / 2

	tmp := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		src := img.Pix[y*img.Stride:]
		dst := tmp.Pix[y*tmp.Stride:]
		for x := 0; x < w; x++ {
			v := src[x]
			for k := max(0, x-r); k <= min(w-1, x+r); k++ {
				if better(v, src[k]) {
					v = src[k]
				}
			}
			dst[x] = v
		}
	}

	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := tmp.Pix[y*tmp.Stride+x]
			for k := max(0, y-r); k <= min(h-1, y+r); k++ {
				if c := tmp.Pix[k*tmp.Stride+x]; better(v, c) {
					v = c
				}
			}
			out.Pix[y*out.Stride+x] = v
		}
	}
	return out
}
