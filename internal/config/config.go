// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Pipeline PipelineConfig
	Server   ServerConfig
	Upload   UploadConfig
	Logging  LoggingConfig
}

// PipelineConfig holds directory run settings.
type PipelineConfig struct {
	// InputDir is scanned for .csv/.xlsx files (default: input)
	InputDir string `env:"SHEET2SQL_INPUT_DIR" envAlt:"INPUT_DIR" default:"input"`

	// OutputDir receives cleaned files, SQL scripts and rejection reports (default: output)
	OutputDir string `env:"SHEET2SQL_OUTPUT_DIR" envAlt:"OUTPUT_DIR" default:"output"`

	// TemplatesFile is the YAML template registry (default: templates.yaml)
	TemplatesFile string `env:"SHEET2SQL_TEMPLATES" envAlt:"TEMPLATES_FILE" default:"templates.yaml"`

	// Template forces every input through one template instead of resolving per file
	Template string `env:"SHEET2SQL_TEMPLATE"`

	// BatchProcessing processes files concurrently (default: false)
	BatchProcessing bool `env:"SHEET2SQL_BATCH_PROCESSING" default:"false"`

	// MaxConcurrent bounds concurrent files when batch processing (default: 4)
	MaxConcurrent int `env:"SHEET2SQL_MAX_CONCURRENT" default:"4"`

	// NullTokens replaces the built-in NULL token set; templates may override it
	NullTokens []string `env:"SHEET2SQL_NULL_TOKENS"`

	// TwoDigitYearPivot is added to the current year to place two-digit years (default: 20)
	TwoDigitYearPivot int `env:"SHEET2SQL_TWO_DIGIT_YEAR_PIVOT" default:"20"`

	// WriteRejections writes <name>.rejections.json next to the SQL script (default: true)
	WriteRejections bool `env:"SHEET2SQL_WRITE_REJECTIONS" default:"true"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`

	// APIKeys, when set, are required in the X-API-Key header of /api
	// requests (comma-separated).
	APIKeys []string `env:"SERVER_API_KEYS"`

	// TrustedProxies lists CIDRs whose X-Real-IP / X-Forwarded-For headers
	// are believed (comma-separated).
	TrustedProxies []string `env:"SERVER_TRUSTED_PROXIES"`
}

// UploadConfig holds limits for files posted to the transform endpoint.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 32MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"33554432"`

	// MaxConcurrent is the maximum number of parallel transforms (default: 4)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long to wait for a transform slot (default: 10s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"10s"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Pipeline validation
	if strings.TrimSpace(c.Pipeline.InputDir) == "" {
		errs = append(errs, "SHEET2SQL_INPUT_DIR must not be empty")
	}
	if strings.TrimSpace(c.Pipeline.OutputDir) == "" {
		errs = append(errs, "SHEET2SQL_OUTPUT_DIR must not be empty")
	}
	if strings.TrimSpace(c.Pipeline.TemplatesFile) == "" {
		errs = append(errs, "SHEET2SQL_TEMPLATES must not be empty")
	}
	if c.Pipeline.MaxConcurrent <= 0 {
		errs = append(errs, "SHEET2SQL_MAX_CONCURRENT must be positive")
	}
	if c.Pipeline.TwoDigitYearPivot < 0 || c.Pipeline.TwoDigitYearPivot > 99 {
		errs = append(errs, fmt.Sprintf("SHEET2SQL_TWO_DIGIT_YEAR_PIVOT (%d) must be 0-99", c.Pipeline.TwoDigitYearPivot))
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Upload validation
	if c.Upload.MaxFileSize <= 0 {
		errs = append(errs, "UPLOAD_MAX_FILE_SIZE must be positive")
	}
	if c.Upload.MaxConcurrent <= 0 {
		errs = append(errs, "UPLOAD_MAX_CONCURRENT must be positive")
	}
	if c.Upload.MaxWaitTime <= 0 {
		errs = append(errs, "UPLOAD_MAX_WAIT_TIME must be positive")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a one-line summary of the config for logging.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Pipeline: {InputDir: %q, OutputDir: %q, Templates: %q, Batch: %v, MaxConcurrent: %d}, ",
		c.Pipeline.InputDir, c.Pipeline.OutputDir, c.Pipeline.TemplatesFile,
		c.Pipeline.BatchProcessing, c.Pipeline.MaxConcurrent)
	fmt.Fprintf(&b, "Server: {Host: %q, Port: %d, APIKeys: %d}, ", c.Server.Host, c.Server.Port, len(c.Server.APIKeys))
	fmt.Fprintf(&b, "Upload: {MaxFileSize: %d, MaxConcurrent: %d}, ",
		c.Upload.MaxFileSize, c.Upload.MaxConcurrent)
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}
