package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/menta2k/ssimdiff/pkg/analyzer"
	"github.com/menta2k/ssimdiff/pkg/types"
)

// Environment variables read by ApplyEnv
const (
	EnvAddr        = "SSIMDIFF_ADDR"
	EnvMaxUploadMB = "SSIMDIFF_MAX_UPLOAD_MB"
	EnvMinArea     = "SSIMDIFF_MIN_AREA"
)

// Config holds the application configuration
type Config struct {
	Pipeline PipelineConfig `json:"pipeline"`
	Output   OutputConfig   `json:"output"`
	Server   ServerConfig   `json:"server"`
}

// PipelineConfig holds the comparison pipeline settings
type PipelineConfig struct {
	Params           types.Params `json:"params"`
	MinArea          int          `json:"min_area"`
	MatchSize        bool         `json:"match_size"`
	SupportedFormats []string     `json:"supported_formats"`
	MinImageSize     int          `json:"min_image_size"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	Format        string `json:"format"`
	Quality       int    `json:"quality"`
	Lossless      bool   `json:"lossless"`
	Debug         bool   `json:"debug"`
	OutputDir     string `json:"output_dir"`
	Prefix        string `json:"prefix"`
	OverlaySuffix string `json:"overlay_suffix"`
	HeatmapSuffix string `json:"heatmap_suffix"`
	ResultFile    string `json:"result_file"`
}

// ServerConfig holds configuration for the HTTP server
type ServerConfig struct {
	Addr           string   `json:"addr"`
	MaxUploadMB    int      `json:"max_upload_mb"`
	AllowedTypes   []string `json:"allowed_types"`
	AllowedOrigins []string `json:"allowed_origins"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			Params:           types.DefaultParams(),
			MinArea:          0,
			SupportedFormats: []string{"jpeg", "png", "gif", "bmp", "tiff", "webp"},
			MinImageSize:     1,
		},
		Output: OutputConfig{
			Format:        "png",
			Quality:       90,
			Lossless:      false,
			OutputDir:     "./output",
			Prefix:        "",
			OverlaySuffix: "_overlay",
			HeatmapSuffix: "_heatmap",
			ResultFile:    "result.json",
		},
		Server: ServerConfig{
			Addr:           ":8000",
			MaxUploadMB:    12,
			AllowedTypes:   []string{"image/png", "image/jpeg"},
			AllowedOrigins: []string{"*"},
		},
	}
}

// LoadFromFile loads configuration from a JSON file. Fields missing from
// the file keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides server and pipeline settings from the environment
func (c *Config) ApplyEnv() error {
	if v, ok := os.LookupEnv(EnvAddr); ok && v != "" {
		c.Server.Addr = v
	}

	if v, ok := os.LookupEnv(EnvMaxUploadMB); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxUploadMB, err)
		}
		c.Server.MaxUploadMB = n
	}

	if v, ok := os.LookupEnv(EnvMinArea); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMinArea, err)
		}
		c.Pipeline.MinArea = n
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.Pipeline.Params.Validate(); err != nil {
		return fmt.Errorf("pipeline.params: %w", err)
	}

	if c.Pipeline.MinArea < 0 {
		return fmt.Errorf("pipeline.min_area must not be negative")
	}

	if c.Pipeline.MinImageSize < 1 {
		return fmt.Errorf("pipeline.min_image_size must be positive")
	}

	if len(c.Pipeline.SupportedFormats) == 0 {
		return fmt.Errorf("pipeline.supported_formats cannot be empty")
	}

	switch strings.ToLower(c.Output.Format) {
	case "png", "jpg", "jpeg", "webp":
	default:
		return fmt.Errorf("output.format must be png, jpg or webp, got %q", c.Output.Format)
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	if c.Output.ResultFile == "" {
		return fmt.Errorf("output.result_file cannot be empty")
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr cannot be empty")
	}

	if c.Server.MaxUploadMB < 1 {
		return fmt.Errorf("server.max_upload_mb must be positive")
	}

	if len(c.Server.AllowedTypes) == 0 {
		return fmt.Errorf("server.allowed_types cannot be empty")
	}

	return nil
}

// AnalyzerConfig returns the pipeline section as an analyzer configuration
func (c *Config) AnalyzerConfig() analyzer.Config {
	return analyzer.Config{
		Params:           c.Pipeline.Params,
		MinArea:          c.Pipeline.MinArea,
		MatchSize:        c.Pipeline.MatchSize,
		SupportedFormats: c.Pipeline.SupportedFormats,
		MinImageSize:     c.Pipeline.MinImageSize,
	}
}

// MaxUploadBytes returns the request size cap in bytes
func (s ServerConfig) MaxUploadBytes() int64 {
	return int64(s.MaxUploadMB) << 20
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "ssimdiff", "config.json")
}
