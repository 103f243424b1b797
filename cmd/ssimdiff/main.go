package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/menta2k/ssimdiff"
	"github.com/menta2k/ssimdiff/internal/config"
	"github.com/menta2k/ssimdiff/internal/logging"
	"github.com/menta2k/ssimdiff/internal/utils"
)

// options holds the parsed command line
type options struct {
	ref, sus, gt, outDir, ext, cfgPath string
	quality, minArea                   int
	lossless, debug, align, verbose    bool
}

func newFlagSet(opts *options) *flag.FlagSet {
	fs := flag.NewFlagSet("ssimdiff", flag.ExitOnError)

	fs.StringVar(&opts.ref, "ref", "", "reference image path or URL")
	fs.StringVar(&opts.sus, "sus", "", "suspect image path or URL")
	fs.StringVar(&opts.gt, "gt", "", "optional ground-truth mask (nonzero = changed)")
	fs.StringVar(&opts.outDir, "out", "", "output directory (default from config)")
	fs.StringVar(&opts.cfgPath, "config", "", "JSON config file")

	fs.StringVar(&opts.ext, "ext", "", "output format: png|jpg|webp")
	fs.IntVar(&opts.quality, "quality", 0, "JPEG/WebP output quality (1-100)")
	fs.BoolVar(&opts.lossless, "lossless", false, "WebP lossless mode")
	fs.IntVar(&opts.minArea, "min-area", -1, "minimum region area in normalized pixels")
	fs.BoolVar(&opts.align, "align", false, "crop both images to their common top-left size first")

	fs.BoolVar(&opts.debug, "debug", false, "also write the binary mask and the raw similarity map")
	fs.BoolVar(&opts.verbose, "v", false, "verbose logging")

	return fs
}

// applyFlags copies the flags that were set on the command line into cfg.
// Flags left at their defaults keep the config file values.
func applyFlags(cfg *config.Config, fs *flag.FlagSet, opts options) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "out":
			cfg.Output.OutputDir = opts.outDir
		case "ext":
			cfg.Output.Format = opts.ext
		case "quality":
			cfg.Output.Quality = opts.quality
		case "lossless":
			cfg.Output.Lossless = opts.lossless
		case "debug":
			cfg.Output.Debug = opts.debug
		case "min-area":
			cfg.Pipeline.MinArea = opts.minArea
		case "align":
			cfg.Pipeline.MatchSize = opts.align
		}
	})
}

func outputOptions(cfg *config.Config) ssimdiff.OutputOptions {
	return ssimdiff.OutputOptions{
		Format:        cfg.Output.Format,
		Quality:       cfg.Output.Quality,
		Lossless:      cfg.Output.Lossless,
		Debug:         cfg.Output.Debug,
		Prefix:        cfg.Output.Prefix,
		OverlaySuffix: cfg.Output.OverlaySuffix,
		HeatmapSuffix: cfg.Output.HeatmapSuffix,
		ResultFile:    cfg.Output.ResultFile,
	}
}

func main() {
	var opts options
	fs := newFlagSet(&opts)
	fs.Parse(os.Args[1:])

	if opts.ref == "" || opts.sus == "" {
		log.Fatalf("usage: %s -ref reference.png -sus suspect.png [-gt mask.png] [-out dir] [-ext png|jpg|webp] [-min-area N] [-config file]", filepath.Base(os.Args[0]))
	}

	for _, p := range []string{opts.ref, opts.sus, opts.gt} {
		if p != "" && !strings.Contains(p, "://") && !utils.IsImageFile(p) {
			log.Printf("warning: %s does not have an image extension", p)
		}
	}

	cfg := config.Default()
	cfgPath := opts.cfgPath
	if cfgPath == "" && utils.FileExists(config.GetConfigPath()) {
		cfgPath = config.GetConfigPath()
	}
	if cfgPath != "" {
		loaded, err := config.LoadFromFile(cfgPath)
		if err != nil {
			log.Fatal(err)
		}
		cfg = loaded
	}

	applyFlags(cfg, fs, opts)

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger := logging.New(os.Stderr, "ssimdiff", opts.verbose)
	comparer := ssimdiff.NewWithConfig(cfg.AnalyzerConfig(), outputOptions(cfg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger.Debug("comparing", "ref", opts.ref, "sus", opts.sus, "gt", opts.gt, "min_area", cfg.Pipeline.MinArea)

	report, err := comparer.ProcessImageFiles(ctx, opts.ref, opts.sus, opts.gt, cfg.Output.OutputDir)
	if err != nil {
		log.Fatal(err)
	}

	logger.Info("comparison complete",
		"ssim", fmt.Sprintf("%.4f", report.SSIMScore),
		"boxes", len(report.Boxes),
		"changed", fmt.Sprintf("%.2f%%", report.ChangedFraction*100),
		"suspect", fmt.Sprintf("%dx%d", report.SuspectInfo.Width, report.SuspectInfo.Height),
	)
	if report.IoU != nil {
		logger.Info("ground truth", "iou", fmt.Sprintf("%.4f", *report.IoU))
	}
	for i, b := range report.Boxes {
		logger.Debug("box", "n", i+1, "x", b.X, "y", b.Y, "w", b.W, "h", b.H)
	}

	for _, p := range []string{report.OverlayPath, report.HeatmapPath, report.MaskPath, report.DiffPath} {
		if p == "" {
			continue
		}
		if info, err := os.Stat(p); err == nil {
			logger.Info("wrote", "path", p, "size", utils.FormatFileSize(info.Size()))
		}
	}
	logger.Info("wrote", "path", filepath.Join(cfg.Output.OutputDir, cfg.Output.ResultFile))
}
