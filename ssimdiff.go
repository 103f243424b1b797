// Package ssimdiff localizes tampering between a reference image and a
// suspect image using structural similarity.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//		"log"
//
//		"github.com/menta2k/ssimdiff"
//	)
//
//	func main() {
//		sd := ssimdiff.New()
//
//		result, err := sd.CompareFiles(context.Background(), "original.png", "received.png", "")
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		fmt.Printf("SSIM %.4f, %d changed regions\n", result.SSIMScore, len(result.Boxes))
//		for _, b := range result.Boxes {
//			fmt.Printf("  x=%d y=%d w=%d h=%d\n", b.X, b.Y, b.W, b.H)
//		}
//	}
//
// Both images are converted to grayscale and resized to a fixed comparison
// size (250x160 by default) before the per-pixel SSIM map is computed. The
// map is smoothed, binarized with Otsu's threshold and cleaned with
// morphology. Bounding boxes of the remaining external regions are scaled
// back to the suspect image and drawn on an overlay next to a jet heatmap
// of the similarity map.
//
// The packages under pkg/ can be used individually:
//
//  1. similarity: grayscale normalization and the SSIM map
//  2. localize: thresholding, morphology and contour extraction
//  3. metrics: IoU against a ground-truth mask
//  4. render: overlay and heatmap drawing
//  5. cropper: top-left size matching for pre-aligned pairs
package ssimdiff

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/menta2k/ssimdiff/internal/utils"
	"github.com/menta2k/ssimdiff/pkg/analyzer"
	"github.com/menta2k/ssimdiff/pkg/client"
	"github.com/menta2k/ssimdiff/pkg/metrics"
	"github.com/menta2k/ssimdiff/pkg/processing"
	"github.com/menta2k/ssimdiff/pkg/render"
	"github.com/menta2k/ssimdiff/pkg/types"
)

// Version of the ssimdiff library
const Version = "1.0.0"

var _ client.Comparer = (*Comparer)(nil)

// Comparer runs reference/suspect comparisons and writes their artifacts
type Comparer struct {
	analyzer  *analyzer.ImageAnalyzer
	processor *processing.Processor
	output    OutputOptions
}

// OutputOptions controls how ProcessImageFiles writes its artifacts
type OutputOptions struct {
	Format        string
	Quality       int
	Lossless      bool
	Debug         bool
	Prefix        string
	OverlaySuffix string
	HeatmapSuffix string
	ResultFile    string
}

// DefaultOutputOptions writes png overlays and heatmaps next to result.json
func DefaultOutputOptions() OutputOptions {
	return OutputOptions{
		Format:        "png",
		Quality:       90,
		OverlaySuffix: "_overlay",
		HeatmapSuffix: "_heatmap",
		ResultFile:    "result.json",
	}
}

// Report is the summary written by ProcessImageFiles
type Report struct {
	Reference   string             `json:"reference"`
	Suspect     string             `json:"suspect"`
	GroundTruth string             `json:"ground_truth,omitempty"`
	SuspectInfo analyzer.ImageInfo `json:"suspect_info"`
	SSIMScore   float64            `json:"ssim_score"`
	Boxes       []types.Box        `json:"boxes"`
	IoU         *float64           `json:"iou"`

	// Fraction of the normalized mask flagged as changed
	ChangedFraction float64 `json:"changed_fraction"`

	OverlayPath string `json:"overlay_path"`
	HeatmapPath string `json:"heatmap_path"`
	MaskPath    string `json:"mask_path,omitempty"`
	DiffPath    string `json:"diff_path,omitempty"`
}

// New creates a Comparer with default configuration
func New() *Comparer {
	return NewWithConfig(analyzer.DefaultConfig(), DefaultOutputOptions())
}

// NewWithConfig creates a Comparer with custom pipeline and output settings
func NewWithConfig(cfg analyzer.Config, output OutputOptions) *Comparer {
	return &Comparer{
		analyzer:  analyzer.NewWithConfig(cfg),
		processor: processing.NewProcessor(),
		output:    output,
	}
}

// Analyze implements client.Comparer
func (c *Comparer) Analyze(ref, sus, gt image.Image) (*types.AnalysisResult, error) {
	return c.analyzer.Analyze(ref, sus, gt)
}

// Compare is an alias of Analyze for callers that read better with it
func (c *Comparer) Compare(ref, sus, gt image.Image) (*types.AnalysisResult, error) {
	return c.analyzer.Analyze(ref, sus, gt)
}

// CompareFiles loads the images at the given paths or URLs and compares
// them. An empty gtPath skips IoU scoring.
func (c *Comparer) CompareFiles(ctx context.Context, refPath, susPath, gtPath string) (*types.AnalysisResult, error) {
	ref, sus, gt, err := c.loadAll(ctx, refPath, susPath, gtPath)
	if err != nil {
		return nil, err
	}
	return c.analyzer.Analyze(ref, sus, gt)
}

// ProcessImageFiles compares two files and writes the overlay, the heatmap
// and a JSON report into outputDir
func (c *Comparer) ProcessImageFiles(ctx context.Context, refPath, susPath, gtPath, outputDir string) (*Report, error) {
	ref, sus, gt, err := c.loadAll(ctx, refPath, susPath, gtPath)
	if err != nil {
		return nil, err
	}

	result, err := c.analyzer.Analyze(ref, sus, gt)
	if err != nil {
		return nil, fmt.Errorf("analysis failed: %w", err)
	}

	if err := utils.EnsureDir(outputDir); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	o := c.output
	report := &Report{
		Reference:   refPath,
		Suspect:     susPath,
		GroundTruth: gtPath,
		SuspectInfo: c.analyzer.GetImageInfo(sus),
		SSIMScore:   result.SSIMScore,
		Boxes:       result.Boxes,
		IoU:         result.IoU,

		ChangedFraction: metrics.Coverage(result.Mask),

		OverlayPath: utils.GenerateOutputFilename(susPath, outputDir, o.Prefix, o.OverlaySuffix, o.Format),
		HeatmapPath: utils.GenerateOutputFilename(susPath, outputDir, o.Prefix, o.HeatmapSuffix, o.Format),
	}

	if err := c.processor.SaveImage(result.Overlay, report.OverlayPath, o.Format, o.Quality, o.Lossless); err != nil {
		return nil, fmt.Errorf("failed to save overlay: %w", err)
	}
	if err := c.processor.SaveImage(result.Heatmap, report.HeatmapPath, o.Format, o.Quality, o.Lossless); err != nil {
		return nil, fmt.Errorf("failed to save heatmap: %w", err)
	}

	// Debug artifacts stay lossless in normalized space
	if o.Debug {
		report.MaskPath = utils.GenerateOutputFilename(susPath, outputDir, o.Prefix, "_mask", "png")
		report.DiffPath = utils.GenerateOutputFilename(susPath, outputDir, o.Prefix, "_diff", "png")
		mb := result.Mask.Bounds()
		if err := c.processor.SaveImage(render.MaskImage(result.Mask, mb.Dx(), mb.Dy()), report.MaskPath, "png", 0, true); err != nil {
			return nil, fmt.Errorf("failed to save mask: %w", err)
		}
		if err := c.processor.SaveImage(result.DiffMap, report.DiffPath, "png", 0, true); err != nil {
			return nil, fmt.Errorf("failed to save diff map: %w", err)
		}
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	resultFile := o.ResultFile
	if resultFile == "" {
		resultFile = "result.json"
	}
	if err := os.WriteFile(filepath.Join(outputDir, resultFile), data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write report: %w", err)
	}

	return report, nil
}

// LoadImage loads an image from a path or URL
func (c *Comparer) LoadImage(ctx context.Context, source string) (image.Image, error) {
	return c.processor.LoadImageSmart(ctx, source)
}

// GetImageInfo returns basic information about an image
func (c *Comparer) GetImageInfo(img image.Image) analyzer.ImageInfo {
	return c.analyzer.GetImageInfo(img)
}

func (c *Comparer) loadAll(ctx context.Context, refPath, susPath, gtPath string) (ref, sus, gt image.Image, err error) {
	if ref, err = c.LoadImage(ctx, refPath); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load reference: %w", err)
	}
	if sus, err = c.LoadImage(ctx, susPath); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load suspect: %w", err)
	}
	if gtPath != "" {
		if gt, err = c.LoadImage(ctx, gtPath); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to load ground truth: %w", err)
		}
	}
	return ref, sus, gt, nil
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
