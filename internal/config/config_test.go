package config

import (
	"bytes"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/pdf2png/internal/pdflib"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, pdflib.BackendFitz, cfg.Backend)
	assert.Equal(t, 2.0, cfg.BaseScale)
}

func TestLoadFileMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pdf2png.yaml")
	yamlDoc := "backend: pdfium\nworkers: 4\nmax_width: 640\npreview_ttl: 90s\n"
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0644))

	cfg := Default()
	require.NoError(t, cfg.LoadFile(path))
	assert.Equal(t, pdflib.BackendPDFium, cfg.Backend)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 640, cfg.MaxWidth)
	assert.Equal(t, 90*time.Second, cfg.PreviewTTL)
	// not set in the file
	assert.Equal(t, 2.0, cfg.BaseScale)
	assert.Equal(t, ":8080", cfg.ListenAddr)
}

func TestLoadFileErrors(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")))

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: [1, 2"), 0644))
	assert.Error(t, cfg.LoadFile(path))
}

func TestWriteFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Default()
	cfg.Backend = pdflib.BackendPDFium
	cfg.BuildVersion = "dev"
	require.NoError(t, cfg.WriteFile(path))

	loaded := &Config{}
	require.NoError(t, loaded.LoadFile(path))
	assert.Equal(t, pdflib.BackendPDFium, loaded.Backend)
	assert.Empty(t, loaded.BuildVersion)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("PDF2PNG_BACKEND", "pdfium")
	t.Setenv("PDF2PNG_BASE_SCALE", "1.5")
	t.Setenv("PDF2PNG_WORKERS", "3")
	t.Setenv("PDF2PNG_PREVIEW_TTL", "0s")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, pdflib.BackendPDFium, cfg.Backend)
	assert.Equal(t, 1.5, cfg.BaseScale)
	assert.Equal(t, 3, cfg.Workers)
	assert.Zero(t, cfg.PreviewTTL)
	assert.Equal(t, pdflib.Options{Backend: "pdfium", Workers: 3}, cfg.PDFOptions())
}

func TestLoadEnvRejectsBadNumbers(t *testing.T) {
	t.Setenv("PDF2PNG_WORKERS", "many")
	t.Setenv("PDF2PNG_PREVIEW_TTL", "soon")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PDF2PNG_WORKERS")
	assert.Contains(t, err.Error(), "PDF2PNG_PREVIEW_TTL")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Backend = "ghostscript" }},
		{"negative scale", func(c *Config) { c.BaseScale = -1 }},
		{"nan scale", func(c *Config) { c.BaseScale = math.NaN() }},
		{"infinite scale", func(c *Config) { c.BaseScale = math.Inf(1) }},
		{"no workers", func(c *Config) { c.Workers = 0 }},
		{"negative width", func(c *Config) { c.MaxWidth = -5 }},
		{"negative ttl", func(c *Config) { c.PreviewTTL = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := Default()
	cfg.Backend = "ghostscript"
	assert.ErrorIs(t, cfg.Validate(), pdflib.ErrUnknownBackend)
}

func TestSetupLogging(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := SetupLogging("warn", &buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", 1)

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "k=1")
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}
