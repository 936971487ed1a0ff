package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"vigil/internal/backend"
	"vigil/internal/config"
	"vigil/internal/history"
	"vigil/internal/intake"
	"vigil/internal/logging"
	"vigil/internal/progress"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() *slog.Logger {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.logger = logging.NewNop()
			return
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			c.logger = logging.NewNop()
			return
		}
		c.logger = logger
	})
	return c.logger
}

func (c *commandContext) backendClient() (*backend.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return backend.New(cfg, backend.WithLogger(c.ensureLogger())), nil
}

func (c *commandContext) newIntake() (*intake.Intake, error) {
	client, err := c.backendClient()
	if err != nil {
		return nil, err
	}
	return intake.New(client, intake.WithLogger(c.ensureLogger())), nil
}

func (c *commandContext) progressChannel() (*progress.Channel, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return progress.NewChannel(cfg, progress.WithLogger(c.ensureLogger())), nil
}

func (c *commandContext) captchaToken() (string, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	token, err := cfg.CaptchaToken()
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", fmt.Errorf("no captcha token configured; set captcha.token, captcha.token_file, or VIGIL_CAPTCHA_TOKEN")
	}
	return token, nil
}

// withJournal runs fn with the history store when it can be opened. A
// journal held by another vigil process downgrades to a warning; dispatches
// must not fail over local bookkeeping.
func (c *commandContext) withJournal(fn func(*history.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := history.Open(cfg)
	if err != nil {
		if errors.Is(err, history.ErrLocked) {
			c.ensureLogger().Warn("history journal busy, skipping bookkeeping")
			return nil
		}
		return err
	}
	defer store.Close()
	return fn(store)
}
