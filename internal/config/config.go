package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ivlev/pdf2png/internal/pdflib"
	"github.com/ivlev/pdf2png/internal/planner"
)

// EnvPrefix prefixes every environment variable the tool reads.
const EnvPrefix = "PDF2PNG_"

type Config struct {
	InputPath  string `yaml:"input"`
	OutputPath string `yaml:"output"`

	Backend       string  `yaml:"backend"`
	BaseScale     float64 `yaml:"base_scale"`
	Workers       int     `yaml:"workers"`
	WorkerVersion string  `yaml:"worker_version"`
	MaxWidth      int     `yaml:"max_width"`

	ListenAddr     string        `yaml:"listen_addr"`
	PreviewTTL     time.Duration `yaml:"preview_ttl"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`

	LogLevel     string `yaml:"log_level"`
	ShowStats    bool   `yaml:"show_stats"`
	BuildVersion string `yaml:"-"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Backend:        pdflib.BackendFitz,
		BaseScale:      planner.DefaultScale,
		Workers:        1,
		ListenAddr:     ":8080",
		PreviewTTL:     10 * time.Minute,
		MaxUploadBytes: 64 << 20,
		LogLevel:       "info",
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// any), then .env and PDF2PNG_* environment variables. Flags are applied
// by the caller on top.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	// .env is optional
	_ = godotenv.Load(".env")
	if err := cfg.LoadEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile merges the YAML file at path into c. Keys missing from the file
// keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// WriteFile stores c as YAML.
func (c *Config) WriteFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadEnv overrides fields from PDF2PNG_* environment variables.
func (c *Config) LoadEnv() error {
	c.Backend = getEnv("BACKEND", c.Backend)
	c.WorkerVersion = getEnv("WORKER_VERSION", c.WorkerVersion)
	c.ListenAddr = getEnv("LISTEN_ADDR", c.ListenAddr)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	var errs []error
	var err error
	if c.BaseScale, err = getEnvFloat("BASE_SCALE", c.BaseScale); err != nil {
		errs = append(errs, err)
	}
	if c.Workers, err = getEnvInt("WORKERS", c.Workers); err != nil {
		errs = append(errs, err)
	}
	if c.MaxWidth, err = getEnvInt("MAX_WIDTH", c.MaxWidth); err != nil {
		errs = append(errs, err)
	}
	if c.PreviewTTL, err = getEnvDuration("PREVIEW_TTL", c.PreviewTTL); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Validate rejects settings no conversion could run with.
func (c *Config) Validate() error {
	switch c.Backend {
	case pdflib.BackendFitz, pdflib.BackendPDFium:
	default:
		return fmt.Errorf("config: %w: %q", pdflib.ErrUnknownBackend, c.Backend)
	}
	if math.IsNaN(c.BaseScale) || math.IsInf(c.BaseScale, 0) {
		return fmt.Errorf("config: base scale must be finite, got %g", c.BaseScale)
	}
	if c.BaseScale < 0 {
		return fmt.Errorf("config: base scale must not be negative, got %g", c.BaseScale)
	}
	if c.Workers < 1 {
		return fmt.Errorf("config: workers must be at least 1, got %d", c.Workers)
	}
	if c.MaxWidth < 0 {
		return fmt.Errorf("config: max width must not be negative, got %d", c.MaxWidth)
	}
	if c.PreviewTTL < 0 {
		return fmt.Errorf("config: preview ttl must not be negative, got %s", c.PreviewTTL)
	}
	return nil
}

// PDFOptions returns the library options for the configured backend.
func (c *Config) PDFOptions() pdflib.Options {
	return pdflib.Options{
		Backend:       c.Backend,
		Workers:       c.Workers,
		WorkerVersion: c.WorkerVersion,
	}
}

// SetupLogging returns a text logger writing to w at the given level and
// installs it as the slog default.
func SetupLogging(level string, w io.Writer) *slog.Logger {
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a level name to a slog level. Unknown names mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(EnvPrefix + key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue, fmt.Errorf("config: %s%s: %w", EnvPrefix, key, err)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(EnvPrefix + key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue, fmt.Errorf("config: %s%s: %w", EnvPrefix, key, err)
	}
	return f, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(EnvPrefix + key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue, fmt.Errorf("config: %s%s: %w", EnvPrefix, key, err)
	}
	return d, nil
}
