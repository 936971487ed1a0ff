// Package config loads, normalizes, and validates vigil configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// VIGIL_BACKEND_URL and VIGIL_CAPTCHA_TOKEN. The Config type centralizes
// every knob the CLI and pipeline need: backend endpoint and environment,
// request and progress timeouts, CDN base, and history/log locations.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical environments, and clear validation errors.
package config
