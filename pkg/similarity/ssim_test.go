package similarity

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"math"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/menta2k/ssimdiff/pkg/types"
)

// createTestImage creates a solid image of the given color
func createTestImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{c}, image.Point{}, draw.Src)
	return img
}

// createTamperedPair returns a black reference and a copy with a white square drawn on it
func createTamperedPair() (*image.RGBA, *image.RGBA) {
	ref := createTestImage(300, 200, color.Black)
	sus := createTestImage(300, 200, color.Black)
	draw.Draw(sus, image.Rect(50, 50, 121, 121), &image.Uniform{color.White}, image.Point{}, draw.Src)
	return ref, sus
}

func createGradient(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 255 / width), uint8(y * 255 / height), 90, 255})
		}
	}
	return img
}

func TestComputeIdenticalImages(t *testing.T) {
	mapper := New()
	img := createGradient(640, 480)

	result, err := mapper.Compute(img, img)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if math.Abs(result.Score-1) > 1e-9 {
		t.Errorf("Expected score 1 for identical images, got %f", result.Score)
	}

	for i, v := range result.Diff.Pix {
		if v != 255 {
			t.Fatalf("Expected every map value to be 255, got %d at %d", v, i)
		}
	}
}

func TestComputeUniformBlack(t *testing.T) {
	mapper := New()
	ref := createTestImage(300, 200, color.Black)
	sus := createTestImage(120, 90, color.Black)

	result, err := mapper.Compute(ref, sus)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if math.Abs(result.Score-1) > 1e-9 {
		t.Errorf("Expected score 1 for uniform black images, got %f", result.Score)
	}
}

func TestComputeMapDimensions(t *testing.T) {
	mapper := New()
	sizes := [][2]int{{300, 200}, {10, 10}, {1, 1}, {2000, 90}, {250, 160}}

	for _, sz := range sizes {
		ref := createGradient(sz[0], sz[1])
		sus := createTestImage(sz[1]+3, sz[0]+7, color.Gray{100})

		result, err := mapper.Compute(ref, sus)
		if err != nil {
			t.Fatalf("Compute failed for %v: %v", sz, err)
		}

		b := result.Diff.Bounds()
		if b.Dx() != 250 || b.Dy() != 160 {
			t.Errorf("Input %v: expected 250x160 map, got %dx%d", sz, b.Dx(), b.Dy())
		}

		if len(result.Raw) != 250*160 {
			t.Errorf("Input %v: expected %d raw values, got %d", sz, 250*160, len(result.Raw))
		}
	}
}

func TestComputeTamperedSquare(t *testing.T) {
	mapper := New()
	ref, sus := createTamperedPair()

	result, err := mapper.Compute(ref, sus)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if result.Score >= 1 {
		t.Errorf("Expected score below 1, got %f", result.Score)
	}

	if result.Score < 0 || result.Score > 1 {
		t.Errorf("Expected score within [0,1], got %f", result.Score)
	}

	// Centre of the square in normalized space: (85.5/300*250, 85.5/200*160)
	if v := result.Diff.GrayAt(71, 68).Y; v > 10 {
		t.Errorf("Expected low similarity inside the square, got %d", v)
	}

	// Far corner is untouched
	if v := result.Diff.GrayAt(240, 150).Y; v != 255 {
		t.Errorf("Expected 255 far from the square, got %d", v)
	}
}

func TestComputeCustomParams(t *testing.T) {
	params := types.DefaultParams()
	params.Width = 64
	params.Height = 48

	mapper := NewWithParams(params)
	img := createGradient(300, 200)

	result, err := mapper.Compute(img, img)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if b := result.Diff.Bounds(); b.Dx() != 64 || b.Dy() != 48 {
		t.Errorf("Expected 64x48 map, got %dx%d", b.Dx(), b.Dy())
	}

	if mapper.Params().Width != 64 {
		t.Errorf("Params() should report the custom width")
	}
}

func TestComputeInvalidInput(t *testing.T) {
	mapper := New()
	valid := createTestImage(10, 10, color.Black)
	empty := image.NewRGBA(image.Rect(0, 0, 0, 10))

	if _, err := mapper.Compute(nil, valid); !errors.Is(err, types.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil reference, got %v", err)
	}

	if _, err := mapper.Compute(valid, empty); !errors.Is(err, types.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty suspect, got %v", err)
	}
}

func TestComputeInvalidParams(t *testing.T) {
	params := types.DefaultParams()
	params.WinSize = 4

	mapper := NewWithParams(params)
	img := createTestImage(10, 10, color.Black)

	if _, err := mapper.Compute(img, img); !errors.Is(err, types.ErrInvalidParams) {
		t.Errorf("Expected ErrInvalidParams, got %v", err)
	}
}

func TestNormalizeAveragesArea(t *testing.T) {
	// One-pixel checkerboard: area averaging gives mid gray, nearest neighbour would not
	img := image.NewGray(image.Rect(0, 0, 500, 320))
	for y := 0; y < 320; y++ {
		for x := 0; x < 500; x++ {
			if (x+y)%2 == 0 {
				img.Pix[y*img.Stride+x] = 255
			}
		}
	}

	out := Normalize(img, 250, 160)
	for _, pt := range []image.Point{{10, 10}, {125, 80}, {200, 150}} {
		v := out.GrayAt(pt.X, pt.Y).Y
		if v < 100 || v > 155 {
			t.Errorf("Expected mid gray at %v, got %d", pt, v)
		}
	}
}

func TestNormalizeUpsamplesRamp(t *testing.T) {
	// Enlarging interpolates: a black/white pair becomes a ramp, not a step
	img := image.NewGray(image.Rect(0, 0, 2, 1))
	img.Pix[1] = 255

	out := Normalize(img, 250, 160)
	row := out.Pix[80*out.Stride : 80*out.Stride+250]

	if row[0] > 5 || row[249] < 250 {
		t.Errorf("Expected the ends to keep the source values, got %d and %d", row[0], row[249])
	}

	distinct := map[uint8]bool{}
	for x := 1; x < len(row); x++ {
		if row[x] < row[x-1] {
			t.Fatalf("Expected a non-decreasing row, got %d after %d at %d", row[x], row[x-1], x)
		}
		distinct[row[x]] = true
	}
	if len(distinct) < 50 {
		t.Errorf("Expected a gradual ramp, got %d distinct values", len(distinct))
	}

	if v := row[125]; v < 100 || v > 155 {
		t.Errorf("Expected mid gray at the centre, got %d", v)
	}

	for y := 0; y < 160; y++ {
		if out.Pix[y*out.Stride+125] != row[125] {
			t.Fatalf("Expected identical rows from a single source row, row %d differs", y)
		}
	}
}

func TestAxisFilter(t *testing.T) {
	tests := []struct {
		n, m int
		want float64
	}{
		{500, 250, imaging.Box.Support},
		{250, 250, imaging.Box.Support},
		{2, 250, imaging.Linear.Support},
	}

	for _, tt := range tests {
		if got := axisFilter(tt.n, tt.m).Support; got != tt.want {
			t.Errorf("axisFilter(%d, %d) support = %v, expected %v", tt.n, tt.m, got, tt.want)
		}
	}
}

func TestNormalizeLuma(t *testing.T) {
	img := createTestImage(20, 20, color.RGBA{255, 0, 0, 255})
	out := Normalize(img, 10, 10)

	// 0.299 * 255
	if v := out.GrayAt(5, 5).Y; v < 75 || v > 77 {
		t.Errorf("Expected luma of pure red near 76, got %d", v)
	}
}

func TestToGray8(t *testing.T) {
	raw := []float64{1, 0.5, 0, -0.5, -1, 1.2}
	out := ToGray8(raw, 6, 1)

	want := []uint8{255, 127, 0, 0, 0, 255}
	for i, w := range want {
		if out.Pix[i] != w {
			t.Errorf("Value %f: expected %d, got %d", raw[i], w, out.Pix[i])
		}
	}
}

func TestUniformFilterConstant(t *testing.T) {
	src := make([]float64, 12*9)
	for i := range src {
		src[i] = 42
	}

	out := uniformFilter(src, 12, 9, 7)
	for i, v := range out {
		if math.Abs(v-42) > 1e-9 {
			t.Fatalf("Expected constant 42 at %d, got %f", i, v)
		}
	}
}

func TestUniformFilterEdges(t *testing.T) {
	// Row [0 3 6] with size 3: mirrored edges give (0+0+3)/3 and (3+6+6)/3
	out := uniformFilter([]float64{0, 3, 6}, 3, 1, 3)

	want := []float64{1, 3, 5}
	for i := range want {
		if math.Abs(out[i]-want[i]) > 1e-9 {
			t.Errorf("Index %d: expected %f, got %f", i, want[i], out[i])
		}
	}
}

func TestReflect(t *testing.T) {
	tests := []struct{ i, n, want int }{
		{-1, 5, 0},
		{-2, 5, 1},
		{5, 5, 4},
		{6, 5, 3},
		{2, 5, 2},
		{-3, 1, 0},
		{4, 2, 0},
	}

	for _, tt := range tests {
		if got := reflect(tt.i, tt.n); got != tt.want {
			t.Errorf("reflect(%d, %d) = %d, expected %d", tt.i, tt.n, got, tt.want)
		}
	}
}

func BenchmarkCompute(b *testing.B) {
	mapper := New()
	ref, sus := createTamperedPair()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mapper.Compute(ref, sus)
	}
}
