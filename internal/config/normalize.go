package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizeBackend(); err != nil {
		return err
	}
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeIngest()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeBackend() error {
	if value, ok := os.LookupEnv("VIGIL_BACKEND_URL"); ok && strings.TrimSpace(value) != "" {
		c.Backend.BaseURL = value
	}
	if value, ok := os.LookupEnv("VIGIL_ENVIRONMENT"); ok && strings.TrimSpace(value) != "" {
		c.Backend.Environment = value
	}
	c.Backend.BaseURL = strings.TrimRight(strings.TrimSpace(c.Backend.BaseURL), "/")
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = defaultBackendBaseURL
	}
	c.Backend.Environment = strings.ToLower(strings.TrimSpace(c.Backend.Environment))
	if c.Backend.Environment == "" {
		c.Backend.Environment = defaultEnvironment
	}
	if c.Backend.RequestTimeout <= 0 {
		c.Backend.RequestTimeout = defaultRequestTimeout
	}
	c.Backend.CDNBaseURL = strings.TrimRight(strings.TrimSpace(c.Backend.CDNBaseURL), "/")
	if c.Backend.CDNBaseURL == "" {
		c.Backend.CDNBaseURL = c.Backend.BaseURL
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Captcha.TokenFile, err = expandPath(c.Captcha.TokenFile); err != nil {
		return fmt.Errorf("captcha.token_file: %w", err)
	}
	return nil
}

func (c *Config) normalizeIngest() {
	if c.Ingest.ProgressIdleTimeout <= 0 {
		c.Ingest.ProgressIdleTimeout = defaultProgressIdleTimeout
	}
	if c.Ingest.ReconnectBaseDelay <= 0 {
		c.Ingest.ReconnectBaseDelay = defaultReconnectBaseDelay
	}
	if c.Ingest.ReconnectMaxDelay < c.Ingest.ReconnectBaseDelay {
		c.Ingest.ReconnectMaxDelay = defaultReconnectMaxDelay
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
