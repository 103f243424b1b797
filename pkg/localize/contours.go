package localize

import (
	"image"
	"math"
)

// Contour is the traced outer border of a connected foreground region
type Contour struct {
	Points []image.Point
}

// Area returns the area enclosed by the contour polygon (shoelace formula).
// Single pixels and one-pixel-wide lines have zero area.
func (c Contour) Area() float64 {
	n := len(c.Points)
	if n < 3 {
		return 0
	}
	var sum int
	for i := range n {
		p, q := c.Points[i], c.Points[(i+1)%n]
		sum += p.X*q.Y - q.X*p.Y
	}
	return math.Abs(float64(sum)) / 2
}

// BoundingRect returns the smallest rectangle containing every contour pixel
func (c Contour) BoundingRect() image.Rectangle {
	if len(c.Points) == 0 {
		return image.Rectangle{}
	}
	minX, minY := c.Points[0].X, c.Points[0].Y
	maxX, maxY := minX, minY
	for _, p := range c.Points[1:] {
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}

// Neighbour offsets, counterclockwise on screen starting east
var directions = [8]image.Point{
	{1, 0}, {1, -1}, {0, -1}, {-1, -1},
	{-1, 0}, {-1, 1}, {0, 1}, {1, 1},
}

const west = 4

// FindExternalContours returns the outer borders of the 8-connected
// foreground (nonzero) regions of mask. Regions lying inside a hole of
// another region are not reported, nor are hole borders. Contours are
// returned in raster order of their top-left pixel.
func FindExternalContours(mask *image.Gray) []Contour {
	b := mask.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil
	}

	fg := make([]bool, w*h)
	for y := 0; y < h; y++ {
		for x, v := range mask.Pix[y*mask.Stride : y*mask.Stride+w] {
			fg[y*w+x] = v != 0
		}
	}

	outside := outerBackground(fg, w, h)
	labels := make([]int32, w*h)
	var label int32

	var contours []Contour
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx := y*w + x
			if !fg[idx] || labels[idx] != 0 {
				continue
			}
			label++
			labelComponent(fg, labels, w, h, x, y, label)

			// The left neighbour of a region's first raster pixel lies in the
			// background that surrounds the region.
			if x > 0 && !outside[idx-1] {
				continue
			}
			contours = append(contours, Contour{Points: traceBorder(fg, w, h, image.Point{x, y})})
		}
	}
	return contours
}

// outerBackground marks background pixels 4-connected to the image frame
func outerBackground(fg []bool, w, h int) []bool {
	outside := make([]bool, w*h)
	queue := make([]int, 0, 2*(w+h))

	seed := func(x, y int) {
		idx := y*w + x
		if !fg[idx] && !outside[idx] {
			outside[idx] = true
			queue = append(queue, idx)
		}
	}
	for x := 0; x < w; x++ {
		seed(x, 0)
		seed(x, h-1)
	}
	for y := 0; y < h; y++ {
		seed(0, y)
		seed(w-1, y)
	}

	for len(queue) > 0 {
		idx := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		cx, cy := idx%w, idx/w
		for _, d := range [4]image.Point{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			nx, ny := cx+d.X, cy+d.Y
			if nx < 0 || nx >= w || ny < 0 || ny >= h {
				continue
			}
			seed(nx, ny)
		}
	}
	return outside
}

// labelComponent flood-fills the 8-connected region containing (x, y)
func labelComponent(fg []bool, labels []int32, w, h, x, y int, label int32) {
	stack := []int{y*w + x}
	labels[y*w+x] = label

	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		cx, cy := idx%w, idx/w
		for _, d := range directions {
			nx, ny := cx+d.X, cy+d.Y
			if nx < 0 || nx >= w || ny < 0 || ny >= h {
				continue
			}
			ni := ny*w + nx
			if fg[ni] && labels[ni] == 0 {
				labels[ni] = label
				stack = append(stack, ni)
			}
		}
	}
}

// traceBorder follows the outer border of the region whose first raster
// pixel is start (Suzuki-Abe border following, 8-connectivity).
func traceBorder(fg []bool, w, h int, start image.Point) []image.Point {
	isFg := func(p image.Point) bool {
		return p.X >= 0 && p.X < w && p.Y >= 0 && p.Y < h && fg[p.Y*w+p.X]
	}

	// Search clockwise from the west neighbour for the pixel preceding start
	first := -1
	for i := range 8 {
		d := (west - i + 8) % 8
		if isFg(start.Add(directions[d])) {
			first = d
			break
		}
	}
	if first < 0 {
		return []image.Point{start}
	}

	p1 := start.Add(directions[first])
	prev, cur := p1, start
	var points []image.Point

	for {
		back := directionOf(cur, prev)
		var next image.Point
		for i := 1; i <= 8; i++ {
			cand := cur.Add(directions[(back+i)%8])
			if isFg(cand) {
				next = cand
				break
			}
		}

		points = append(points, cur)
		if next == start && cur == p1 {
			return points
		}
		prev, cur = cur, next
	}
}

// directionOf returns the index of the neighbour offset leading from p to q
func directionOf(p, q image.Point) int {
	d := q.Sub(p)
	for i, dir := range directions {
		if dir == d {
			return i
		}
	}
	return 0
}
