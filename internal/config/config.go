package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Environment labels for the backend deployment the client talks to.
// Production redacts server-provided error details; development surfaces them.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Backend contains connection settings for the accountability backend.
type Backend struct {
	BaseURL        string `toml:"base_url"`
	Environment    string `toml:"environment"`
	RequestTimeout int    `toml:"request_timeout"`
	CDNBaseURL     string `toml:"cdn_base_url"`
}

// Captcha contains the anti-automation token forwarded with every dispatch.
// The token is issued by an external widget; the CLI reads it from config,
// a token file, or the VIGIL_CAPTCHA_TOKEN environment variable.
type Captcha struct {
	Token     string `toml:"token"`
	TokenFile string `toml:"token_file"`
}

// Ingest contains timing knobs for the analysis progress stream.
type Ingest struct {
	// ProgressIdleTimeout is the no-event window in seconds after which the
	// progress channel emits a synthetic failure and closes.
	ProgressIdleTimeout int `toml:"progress_idle_timeout"`
	// ReconnectBaseDelay and ReconnectMaxDelay bound the transparent
	// reconnect backoff in seconds.
	ReconnectBaseDelay int `toml:"reconnect_base_delay"`
	ReconnectMaxDelay  int `toml:"reconnect_max_delay"`
}

// Review contains defaults for non-interactive review runs.
type Review struct {
	// AutoAcceptThreshold is the minimum confidence at which `vigil process`
	// accepts a candidate without prompting.
	AutoAcceptThreshold float64 `toml:"auto_accept_threshold"`
}

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for vigil.
//
// Configuration sections by subsystem:
//   - Backend: base URL, environment, request timeout, CDN base
//   - Captcha: dispatch token source
//   - Ingest: progress stream idle timeout and reconnect backoff
//   - Review: auto-accept threshold for non-interactive runs
//   - Paths: history database and log directories
//   - Logging: log format and level
type Config struct {
	Backend Backend `toml:"backend"`
	Captcha Captcha `toml:"captcha"`
	Ingest  Ingest  `toml:"ingest"`
	Review  Review  `toml:"review"`
	Paths   Paths   `toml:"paths"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/vigil/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The boolean reports
// whether a file existed at the resolved path.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("vigil.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// WriteSample writes the embedded sample configuration to the provided path.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("ensure config directory: %w", err)
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// CaptchaToken resolves the dispatch token from config, token file, or the
// VIGIL_CAPTCHA_TOKEN environment variable, in that order of precedence.
func (c *Config) CaptchaToken() (string, error) {
	if token := strings.TrimSpace(c.Captcha.Token); token != "" {
		return token, nil
	}
	if file := strings.TrimSpace(c.Captcha.TokenFile); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read captcha token file: %w", err)
		}
		if token := strings.TrimSpace(string(data)); token != "" {
			return token, nil
		}
	}
	if token := strings.TrimSpace(os.Getenv("VIGIL_CAPTCHA_TOKEN")); token != "" {
		return token, nil
	}
	return "", nil
}

// IsProduction reports whether error redaction applies.
func (c *Config) IsProduction() bool {
	return c.Backend.Environment == EnvProduction
}

// EnsureDirectories creates the data and log directories when missing.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve path %s: %w", trimmed, err)
	}
	return abs, nil
}
