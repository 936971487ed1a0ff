// Package testsupport provides configuration builders for package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"vigil/internal/config"
)

// ConfigOption mutates a test configuration.
type ConfigOption func(*config.Config)

// WithBackendURL points the config at a test server.
func WithBackendURL(url string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Backend.BaseURL = url
	}
}

// WithEnvironment sets the deployment environment label.
func WithEnvironment(env string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Backend.Environment = env
	}
}

// NewConfig returns a default configuration rooted in a temp directory.
func NewConfig(t *testing.T, opts ...ConfigOption) *config.Config {
	t.Helper()
	cfg := config.Default()
	base := t.TempDir()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Captcha.Token = "test-token"
	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}
