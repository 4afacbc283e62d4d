package config

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "EPSG:4326", cfg.Projection.Input)
	assert.Equal(t, "EPSG:3857", cfg.Projection.Output)
	assert.Equal(t, DefaultPreviewSize, cfg.Preview.Size)
	assert.Equal(t, float32(DefaultPreviewQuality), cfg.Preview.Quality)
	assert.Equal(t, int64(DefaultMaxBodyBytes), cfg.Limits.MaxBodyBytes)
	require.NoError(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
projection:
  input: "4326"
  output: EPSG:900913
preview:
  size: 128
  lossless: true
  fill: "#ff000080"
limits:
  max_body_bytes: 2048
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "4326", cfg.Projection.Input)
	assert.Equal(t, "EPSG:900913", cfg.Projection.Output)
	assert.Equal(t, 128, cfg.Preview.Size)
	assert.Equal(t, DefaultPreviewPadding, cfg.Preview.Padding)
	assert.True(t, cfg.Preview.Lossless)
	assert.Equal(t, int64(2048), cfg.Limits.MaxBodyBytes)

	tr, err := cfg.Transformer()
	require.NoError(t, err)
	assert.Equal(t, "EPSG:3857", tr.Target().Code())
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown input crs", "projection:\n  input: EPSG:27700\n"},
		{"geographic output", "projection:\n  output: EPSG:4326\n"},
		{"bad color", "preview:\n  fill: blue\n"},
		{"quality too high", "preview:\n  quality: 150\n"},
		{"padding too large", "preview:\n  size: 20\n  padding: 10\n"},
		{"broken yaml", "projection: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#3388ff")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 0x33, G: 0x88, B: 0xff, A: 0xff}, c)

	c, err = ParseColor("10203040")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 0x10, G: 0x20, B: 0x30, A: 0x40}, c)

	_, err = ParseColor("#12345")
	assert.Error(t, err)
	_, err = ParseColor("#gggggg")
	assert.Error(t, err)
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("GEOPROPS_TEST_FROM_FILE=file\nGEOPROPS_TEST_PRESET=file\n"), 0644))

	t.Setenv("GEOPROPS_TEST_PRESET", "env")
	t.Cleanup(func() { _ = os.Unsetenv("GEOPROPS_TEST_FROM_FILE") })

	require.NoError(t, LoadEnv(envFile, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "file", os.Getenv("GEOPROPS_TEST_FROM_FILE"))
	assert.Equal(t, "env", os.Getenv("GEOPROPS_TEST_PRESET"))

	require.NoError(t, os.WriteFile(envFile, []byte("BROKEN='unterminated\n"), 0644))
	assert.Error(t, LoadEnv(envFile))
}
