package ssimdiff

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/menta2k/ssimdiff/internal/utils"
	"github.com/menta2k/ssimdiff/pkg/analyzer"
)

// createTestImage creates a gray test image with an optional bright patch
func createTestImage(width, height int, patch image.Rectangle) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if (image.Point{x, y}).In(patch) {
				img.Set(x, y, color.RGBA{255, 255, 255, 255})
			} else {
				img.Set(x, y, color.RGBA{64, 64, 64, 255})
			}
		}
	}

	return img
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
}

func TestNew(t *testing.T) {
	c := New()
	if c == nil {
		t.Fatal("New() returned nil")
	}

	if c.analyzer == nil || c.processor == nil {
		t.Error("Components should be initialized")
	}

	if c.output.Format != "png" {
		t.Errorf("Expected png output, got %s", c.output.Format)
	}
}

func TestCompare(t *testing.T) {
	c := New()
	ref := createTestImage(300, 200, image.Rectangle{})
	sus := createTestImage(300, 200, image.Rect(60, 40, 140, 100))

	result, err := c.Compare(ref, sus, nil)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}

	if result.SSIMScore >= 1 {
		t.Errorf("Expected score below 1, got %f", result.SSIMScore)
	}
	if len(result.Boxes) == 0 {
		t.Error("Expected at least one box around the patch")
	}

	same, err := c.Analyze(ref, ref, nil)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if len(same.Boxes) != 0 {
		t.Errorf("Identical images should produce no boxes, got %v", same.Boxes)
	}
}

func TestCompareFiles(t *testing.T) {
	dir := t.TempDir()
	refPath := filepath.Join(dir, "ref.png")
	susPath := filepath.Join(dir, "sus.png")
	writePNG(t, refPath, createTestImage(120, 80, image.Rectangle{}))
	writePNG(t, susPath, createTestImage(120, 80, image.Rect(20, 20, 50, 50)))

	c := New()
	ctx := context.Background()

	result, err := c.CompareFiles(ctx, refPath, susPath, "")
	if err != nil {
		t.Fatalf("CompareFiles failed: %v", err)
	}
	if result.IoU != nil {
		t.Error("IoU should be nil without ground truth")
	}

	if _, err := c.CompareFiles(ctx, filepath.Join(dir, "missing.png"), susPath, ""); err == nil {
		t.Error("Expected error for missing reference")
	}
	if _, err := c.CompareFiles(ctx, refPath, susPath, filepath.Join(dir, "missing.png")); err == nil {
		t.Error("Expected error for missing ground truth")
	}
}

func TestProcessImageFiles(t *testing.T) {
	dir := t.TempDir()
	refPath := filepath.Join(dir, "ref.png")
	susPath := filepath.Join(dir, "suspect.png")
	gtPath := filepath.Join(dir, "gt.png")

	patch := image.Rect(40, 30, 100, 90)
	writePNG(t, refPath, createTestImage(200, 150, image.Rectangle{}))
	writePNG(t, susPath, createTestImage(200, 150, patch))

	gt := image.NewGray(image.Rect(0, 0, 200, 150))
	for y := patch.Min.Y; y < patch.Max.Y; y++ {
		for x := patch.Min.X; x < patch.Max.X; x++ {
			gt.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	writePNG(t, gtPath, gt)

	outDir := filepath.Join(dir, "out")
	c := NewWithConfig(analyzer.DefaultConfig(), DefaultOutputOptions())

	report, err := c.ProcessImageFiles(context.Background(), refPath, susPath, gtPath, outDir)
	if err != nil {
		t.Fatalf("ProcessImageFiles failed: %v", err)
	}

	if report.OverlayPath != filepath.Join(outDir, "suspect_overlay.png") {
		t.Errorf("Unexpected overlay path %s", report.OverlayPath)
	}
	for _, p := range []string{report.OverlayPath, report.HeatmapPath, filepath.Join(outDir, "result.json")} {
		if !utils.FileExists(p) {
			t.Errorf("Expected %s to be written", p)
		}
	}

	if report.IoU == nil || *report.IoU <= 0 {
		t.Errorf("Expected positive IoU against the patch mask, got %v", report.IoU)
	}
	if report.ChangedFraction <= 0 || report.ChangedFraction >= 1 {
		t.Errorf("Expected a partial changed fraction, got %f", report.ChangedFraction)
	}
	if report.SuspectInfo.Width != 200 || report.SuspectInfo.Height != 150 {
		t.Errorf("Unexpected suspect info %+v", report.SuspectInfo)
	}

	data, err := os.ReadFile(filepath.Join(outDir, "result.json"))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	var decoded Report
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("result.json is not valid JSON: %v", err)
	}
	if decoded.SSIMScore != report.SSIMScore || len(decoded.Boxes) != len(report.Boxes) {
		t.Errorf("result.json does not match the returned report")
	}
}

func TestProcessImageFilesDebug(t *testing.T) {
	dir := t.TempDir()
	refPath := filepath.Join(dir, "ref.png")
	susPath := filepath.Join(dir, "sus.png")
	writePNG(t, refPath, createTestImage(120, 80, image.Rectangle{}))
	writePNG(t, susPath, createTestImage(120, 80, image.Rect(10, 10, 40, 40)))

	opts := DefaultOutputOptions()
	opts.Debug = true
	opts.Format = "jpg"
	c := NewWithConfig(analyzer.DefaultConfig(), opts)

	report, err := c.ProcessImageFiles(context.Background(), refPath, susPath, "", dir)
	if err != nil {
		t.Fatalf("ProcessImageFiles failed: %v", err)
	}

	if report.OverlayPath != filepath.Join(dir, "sus_overlay.jpg") {
		t.Errorf("Unexpected overlay path %s", report.OverlayPath)
	}
	if report.MaskPath == "" || !utils.FileExists(report.MaskPath) {
		t.Errorf("Expected mask at %q", report.MaskPath)
	}
	if report.DiffPath == "" || !utils.FileExists(report.DiffPath) {
		t.Errorf("Expected diff map at %q", report.DiffPath)
	}

	mask, err := c.LoadImage(context.Background(), report.MaskPath)
	if err != nil {
		t.Fatalf("LoadImage failed: %v", err)
	}
	if mask.Bounds().Dx() != 250 || mask.Bounds().Dy() != 160 {
		t.Errorf("Mask should be saved at the normalized size, got %v", mask.Bounds())
	}
}

func TestGetVersion(t *testing.T) {
	if GetVersion() != Version {
		t.Errorf("Expected %s, got %s", Version, GetVersion())
	}
}
