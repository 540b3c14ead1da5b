// Package config loads gateway configuration from defaults, an optional
// YAML file and environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the gateway.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Engines EnginesConfig `yaml:"engines"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig holds HTTP settings.
type ServerConfig struct {
	Port             string        `yaml:"port"`
	Mode             string        `yaml:"mode"` // prod selects gin release mode
	APIKey           string        `yaml:"api_key"`
	MaxBodyBytes     int64         `yaml:"max_body_bytes"`
	CORSOrigins      []string      `yaml:"cors_origins"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

// StorageConfig holds the shared upload root.
type StorageConfig struct {
	UploadDir string `yaml:"upload_dir"`
}

// EnginesConfig holds per-engine settings.
type EnginesConfig struct {
	OCR           CommandConfig `yaml:"ocr"`
	DOCX          CommandConfig `yaml:"docx"`
	Raster        RasterConfig  `yaml:"raster"`
	SkipPreflight bool          `yaml:"skip_preflight"`
}

// CommandConfig describes an out-of-process engine.
type CommandConfig struct {
	Binary  string        `yaml:"binary"`
	Args    []string      `yaml:"args"`
	Timeout time.Duration `yaml:"timeout"`
}

// RasterConfig holds the in-process rasterizer settings.
type RasterConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:             "8080",
			MaxBodyBytes:     100 << 20,
			ReadTimeout:      2 * time.Minute,
			WriteTimeout:     10 * time.Minute,
			GracefulShutdown: 30 * time.Second,
		},
		Storage: StorageConfig{
			UploadDir: filepath.Join(os.TempDir(), "convertify-uploads"),
		},
		Engines: EnginesConfig{
			OCR:    CommandConfig{Binary: "ocrmypdf", Timeout: 5 * time.Minute},
			DOCX:   CommandConfig{Binary: "pdf2docx", Timeout: 5 * time.Minute},
			Raster: RasterConfig{Timeout: 5 * time.Minute},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "convertify",
		},
	}
}

// Load reads path (if non-empty) over the defaults and applies
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Server.Port, "PORT")
	setString(&c.Server.APIKey, "API_KEY")
	setString(&c.Server.Mode, "MODE")
	setString(&c.Storage.UploadDir, "UPLOAD_DIR")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")
	setString(&c.Engines.OCR.Binary, "OCR_BINARY")
	setString(&c.Engines.DOCX.Binary, "DOCX_BINARY")

	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.Server.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("MAX_BODY_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("MAX_BODY_BYTES: %w", err)
		}
		c.Server.MaxBodyBytes = n
	}
	if v := os.Getenv("SKIP_PREFLIGHT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SKIP_PREFLIGHT: %w", err)
		}
		c.Engines.SkipPreflight = b
	}
	return nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Server.Port) == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("server.max_body_bytes must be positive"))
	}
	if strings.TrimSpace(c.Storage.UploadDir) == "" {
		errs = append(errs, errors.New("storage.upload_dir is required"))
	}
	if c.Engines.OCR.Binary == "" {
		errs = append(errs, errors.New("engines.ocr.binary is required"))
	}
	if c.Engines.DOCX.Binary == "" {
		errs = append(errs, errors.New("engines.docx.binary is required"))
	}
	return errors.Join(errs...)
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return ":" + c.Server.Port
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
