package main

import (
	"testing"

	"github.com/menta2k/ssimdiff/internal/config"
)

// fileConfig stands in for a config file that changes several defaults
func fileConfig() *config.Config {
	cfg := config.Default()
	cfg.Output.OutputDir = "/from/file"
	cfg.Output.Format = "jpg"
	cfg.Output.Quality = 70
	cfg.Output.Debug = true
	cfg.Pipeline.MinArea = 30
	return cfg
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, cfg *config.Config)
	}{
		{
			name: "unset flags keep file values",
			args: []string{"-ref", "a.png", "-sus", "b.png"},
			check: func(t *testing.T, cfg *config.Config) {
				if cfg.Output.OutputDir != "/from/file" || cfg.Output.Format != "jpg" {
					t.Errorf("Output overridden by defaults: %+v", cfg.Output)
				}
				if cfg.Output.Quality != 70 {
					t.Errorf("Expected quality 70 from file, got %d", cfg.Output.Quality)
				}
				if cfg.Pipeline.MinArea != 30 {
					t.Errorf("Expected min area 30 from file, got %d", cfg.Pipeline.MinArea)
				}
				if !cfg.Output.Debug {
					t.Error("Debug from file should survive")
				}
			},
		},
		{
			name: "explicit flags win",
			args: []string{"-out", "/tmp/x", "-ext", "webp", "-quality", "85", "-lossless", "-min-area", "50", "-align"},
			check: func(t *testing.T, cfg *config.Config) {
				if cfg.Output.OutputDir != "/tmp/x" || cfg.Output.Format != "webp" {
					t.Errorf("Unexpected output section %+v", cfg.Output)
				}
				if cfg.Output.Quality != 85 || !cfg.Output.Lossless {
					t.Errorf("Expected quality 85 lossless, got %d %v", cfg.Output.Quality, cfg.Output.Lossless)
				}
				if cfg.Pipeline.MinArea != 50 || !cfg.Pipeline.MatchSize {
					t.Errorf("Unexpected pipeline section %+v", cfg.Pipeline)
				}
			},
		},
		{
			name: "explicit zero and false override",
			args: []string{"-min-area", "0", "-debug=false"},
			check: func(t *testing.T, cfg *config.Config) {
				if cfg.Pipeline.MinArea != 0 {
					t.Errorf("Expected min area 0, got %d", cfg.Pipeline.MinArea)
				}
				if cfg.Output.Debug {
					t.Error("Expected -debug=false to disable debug output")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts options
			fs := newFlagSet(&opts)
			if err := fs.Parse(tt.args); err != nil {
				t.Fatalf("Parse failed: %v", err)
			}

			cfg := fileConfig()
			applyFlags(cfg, fs, opts)
			tt.check(t, cfg)
		})
	}
}

func TestOutputOptions(t *testing.T) {
	cfg := fileConfig()
	cfg.Output.Prefix = "case1_"

	o := outputOptions(cfg)
	if o.Format != "jpg" || o.Quality != 70 || !o.Debug || o.Prefix != "case1_" {
		t.Errorf("Unexpected output options %+v", o)
	}
	if o.OverlaySuffix != "_overlay" || o.HeatmapSuffix != "_heatmap" || o.ResultFile != "result.json" {
		t.Errorf("Expected default suffixes, got %+v", o)
	}
}
