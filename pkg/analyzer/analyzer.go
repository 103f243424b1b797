package analyzer

import (
	"fmt"
	"image"
	"io"
	"os"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/menta2k/ssimdiff/pkg/cropper"
	"github.com/menta2k/ssimdiff/pkg/localize"
	"github.com/menta2k/ssimdiff/pkg/metrics"
	"github.com/menta2k/ssimdiff/pkg/processing"
	"github.com/menta2k/ssimdiff/pkg/render"
	"github.com/menta2k/ssimdiff/pkg/similarity"
	"github.com/menta2k/ssimdiff/pkg/types"
)

// ImageAnalyzer compares a reference image against a suspect image and
// localizes the regions that changed
type ImageAnalyzer struct {
	config    Config
	mapper    *similarity.Mapper
	localizer *localize.Localizer
	processor *processing.Processor
}

// Config holds configuration for the image analyzer
type Config struct {
	// Pipeline constants
	Params types.Params

	// Smallest region area kept by the localizer, in normalized pixels.
	// The effective floor is max(MinArea, AreaRatio*Width*Height).
	MinArea int

	// Crop both images to their common top-left size before comparing
	// instead of relying on the normalizing resize alone
	MatchSize bool

	SupportedFormats []string
	MinImageSize     int
}

// DefaultConfig returns the standard pipeline configuration
func DefaultConfig() Config {
	return Config{
		Params:           types.DefaultParams(),
		MinArea:          0,
		SupportedFormats: []string{"jpeg", "png", "gif", "bmp", "tiff", "webp"},
		MinImageSize:     1,
	}
}

// New creates a new ImageAnalyzer with default configuration
func New() *ImageAnalyzer {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a new ImageAnalyzer with custom configuration
func NewWithConfig(config Config) *ImageAnalyzer {
	if config.MinImageSize < 1 {
		config.MinImageSize = 1
	}
	return &ImageAnalyzer{
		config:    config,
		mapper:    similarity.NewWithParams(config.Params),
		localizer: localize.NewWithParams(config.Params),
		processor: processing.NewProcessor(),
	}
}

// Config returns the analyzer configuration
func (a *ImageAnalyzer) Config() Config {
	return a.config
}

// Analyze compares sus against ref. Boxes, overlay and heatmap are reported
// in the suspect image's coordinate space. When gt is non-nil the predicted
// mask is scored against it and IoU is set.
func (a *ImageAnalyzer) Analyze(ref, sus, gt image.Image) (*types.AnalysisResult, error) {
	if err := a.ValidateImage(ref); err != nil {
		return nil, fmt.Errorf("reference: %w", err)
	}
	if err := a.ValidateImage(sus); err != nil {
		return nil, fmt.Errorf("suspect: %w", err)
	}
	if gt != nil {
		if err := checkArea(gt); err != nil {
			return nil, fmt.Errorf("ground truth: %w", err)
		}
	}

	if a.config.MatchSize {
		ref, sus = cropper.MatchSize(ref, sus)
	}

	m, err := a.mapper.Compute(ref, sus)
	if err != nil {
		return nil, err
	}

	mask, boxes := a.localizer.Localize(m.Diff, a.config.MinArea)

	sw, sh := sus.Bounds().Dx(), sus.Bounds().Dy()
	mb := mask.Bounds()
	scaled := types.ScaleBoxes(boxes, mb.Dx(), mb.Dy(), sw, sh)
	for i := range scaled {
		scaled[i] = scaled[i].Clamp(sw, sh)
	}

	result := &types.AnalysisResult{
		SSIMScore: m.Score,
		Boxes:     scaled,
		Overlay:   render.Overlay(sus, scaled),
		Heatmap:   render.Heatmap(m.Diff, sw, sh),
		Mask:      mask,
		DiffMap:   m.Diff,
	}

	if gt != nil {
		iou, err := a.Score(mask, gt, sw, sh)
		if err != nil {
			return nil, err
		}
		result.IoU = &iou
	}

	return result, nil
}

// Score compares a normalized predicted mask against a ground-truth mask.
// Both are resized with nearest-neighbour sampling to w x h and binarized
// on nonzero luma before computing IoU.
func (a *ImageAnalyzer) Score(mask *image.Gray, gt image.Image, w, h int) (float64, error) {
	pred := metrics.BinarizeGray(imaging.Resize(mask, w, h, imaging.NearestNeighbor))
	truth := metrics.BinarizeGray(imaging.Resize(gt, w, h, imaging.NearestNeighbor))
	return metrics.IoU(pred, truth)
}

// LoadImage loads an image from file
func (a *ImageAnalyzer) LoadImage(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}
	return a.decode(data)
}

// LoadImageFromReader loads an image from an io.Reader
func (a *ImageAnalyzer) LoadImageFromReader(reader io.Reader) (image.Image, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return a.decode(data)
}

func (a *ImageAnalyzer) decode(data []byte) (image.Image, error) {
	img, format, err := a.processor.DecodeBytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	if !a.isFormatSupported(format) {
		return nil, fmt.Errorf("unsupported image format: %s", format)
	}

	return img, nil
}

// GetImageInfo returns basic information about an image
func (a *ImageAnalyzer) GetImageInfo(img image.Image) ImageInfo {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	info := ImageInfo{
		Width:  width,
		Height: height,
		Area:   width * height,
	}
	if height > 0 {
		info.AspectRatio = float64(width) / float64(height)
	}
	return info
}

// ImageInfo contains basic image metadata
type ImageInfo struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	AspectRatio float64 `json:"aspect_ratio"`
	Area        int     `json:"area"`
}

func (a *ImageAnalyzer) isFormatSupported(format string) bool {
	for _, supported := range a.config.SupportedFormats {
		if strings.EqualFold(format, supported) {
			return true
		}
	}
	return false
}

// ValidateImage checks if an image meets minimum requirements
func (a *ImageAnalyzer) ValidateImage(img image.Image) error {
	if err := checkArea(img); err != nil {
		return err
	}
	bounds := img.Bounds()
	if bounds.Dx() < a.config.MinImageSize || bounds.Dy() < a.config.MinImageSize {
		return fmt.Errorf("%w: image too small: %dx%d (minimum: %d)",
			types.ErrInvalidInput, bounds.Dx(), bounds.Dy(), a.config.MinImageSize)
	}
	return nil
}

func checkArea(img image.Image) error {
	if img == nil {
		return fmt.Errorf("%w: image is nil", types.ErrInvalidInput)
	}
	if img.Bounds().Empty() {
		return fmt.Errorf("%w: image has zero area", types.ErrInvalidInput)
	}
	return nil
}
