// Package config handles configuration loading and validation.
package config

import (
	"image/color"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/woozymasta/geoprops/internal/geo"

	"gopkg.in/yaml.v3"
)

// Defaults applied to missing configuration fields.
const (
	DefaultPreviewSize    = 256
	DefaultPreviewPadding = 16
	DefaultPreviewQuality = 85
	DefaultFill           = "#3388ff"
	DefaultBackground     = "#ffffff"
	DefaultMaxBodyBytes   = 10 << 20
)

// Config represents the root configuration file structure.
type Config struct {
	Projection Projection `yaml:"projection" json:"projection"`
	Preview    Preview    `yaml:"preview" json:"preview"`
	Limits     Limits     `yaml:"limits" json:"limits"`
}

// Projection selects the CRS pair used to measure area.
type Projection struct {
	Input  string `yaml:"input" json:"input"`
	Output string `yaml:"output" json:"output"`
}

// Preview configures rendered geometry thumbnails.
type Preview struct {
	Fill       string  `yaml:"fill,omitempty" json:"fill,omitempty"`
	Background string  `yaml:"background,omitempty" json:"background,omitempty"`
	Size       int     `yaml:"size,omitempty" json:"size,omitempty"`
	Padding    int     `yaml:"padding,omitempty" json:"padding,omitempty"`
	Quality    float32 `yaml:"quality,omitempty" json:"quality,omitempty"`
	Lossless   bool    `yaml:"lossless,omitempty" json:"lossless,omitempty"`
}

// Limits bounds request processing.
type Limits struct {
	MaxBodyBytes int64 `yaml:"max_body_bytes,omitempty" json:"max_body_bytes,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.Normalize()
	return cfg
}

// Load reads and parses the YAML configuration file from the specified path.
// An empty path yields the defaults. The result is normalized and validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "validate %s", path)
	}

	return &cfg, nil
}

// Normalize fills missing fields with defaults.
func (c *Config) Normalize() {
	if c.Projection.Input == "" {
		c.Projection.Input = geo.DefaultSourceCRS
	}
	if c.Projection.Output == "" {
		c.Projection.Output = geo.DefaultTargetCRS
	}

	if c.Preview.Size <= 0 {
		c.Preview.Size = DefaultPreviewSize
	}
	if c.Preview.Padding <= 0 {
		c.Preview.Padding = DefaultPreviewPadding
	}
	if c.Preview.Quality == 0 {
		c.Preview.Quality = DefaultPreviewQuality
	}
	if c.Preview.Fill == "" {
		c.Preview.Fill = DefaultFill
	}
	if c.Preview.Background == "" {
		c.Preview.Background = DefaultBackground
	}

	if c.Limits.MaxBodyBytes <= 0 {
		c.Limits.MaxBodyBytes = DefaultMaxBodyBytes
	}
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	t, err := c.Transformer()
	if err != nil {
		return err
	}
	if !t.Target().Metric() {
		return errors.Newf("projection output %s is not a metric CRS", c.Projection.Output)
	}

	if c.Preview.Size < 2*c.Preview.Padding+1 {
		return errors.Newf("preview size %d leaves no room inside padding %d", c.Preview.Size, c.Preview.Padding)
	}
	if c.Preview.Quality < 0 || c.Preview.Quality > 100 {
		return errors.Newf("preview quality %v out of range 0..100", c.Preview.Quality)
	}
	if _, err := ParseColor(c.Preview.Fill); err != nil {
		return errors.Wrap(err, "preview fill")
	}
	if _, err := ParseColor(c.Preview.Background); err != nil {
		return errors.Wrap(err, "preview background")
	}

	return nil
}

// Transformer builds the reprojection for the configured CRS pair.
func (c *Config) Transformer() (*geo.Transformer, error) {
	t, err := geo.NewTransformer(c.Projection.Input, c.Projection.Output)
	if err != nil {
		return nil, errors.Wrap(err, "projection")
	}
	return t, nil
}

// ParseColor parses "#rrggbb" or "#rrggbbaa".
func ParseColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 && len(hex) != 8 {
		return color.NRGBA{}, errors.Newf("color %q is not #rrggbb or #rrggbbaa", s)
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, errors.Wrapf(err, "color %q", s)
	}
	if len(hex) == 6 {
		v = v<<8 | 0xff
	}

	return color.NRGBA{
		R: uint8(v >> 24),
		G: uint8(v >> 16),
		B: uint8(v >> 8),
		A: uint8(v),
	}, nil
}

// LoadEnv loads variables from the given dotenv files, ".env" when none are given.
// Missing files are ignored and variables already set in the environment win.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return errors.Wrapf(err, "load %s", f)
		}
	}
	return nil
}
