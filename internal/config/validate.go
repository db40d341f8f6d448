package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks the structural validity of a Config and reports every
// problem at once.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	errs = append(errs, validateRemote(cfg.Remote)...)
	errs = append(errs, validateStore(cfg.Store)...)

	if !validLogLevels[strings.ToLower(cfg.Log.Level)] {
		errs = append(errs, fmt.Errorf("config: log.level %q must be one of debug, info, warn, error", cfg.Log.Level))
	}

	return errors.Join(errs...)
}

func validateRemote(r RemoteConfig) []error {
	var errs []error

	if r.BaseURL == "" {
		errs = append(errs, errors.New("config: remote.base_url is required"))
	} else {
		u, err := url.Parse(r.BaseURL)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("config: remote.base_url: %w", err))
		case u.Scheme != "http" && u.Scheme != "https":
			errs = append(errs, fmt.Errorf("config: remote.base_url scheme must be http or https, got %q", u.Scheme))
		case u.Host == "":
			errs = append(errs, errors.New("config: remote.base_url must include a host"))
		}
	}

	if d, err := r.ParsedTimeout(); err != nil {
		errs = append(errs, fmt.Errorf("config: remote.timeout: %w", err))
	} else if d < 0 {
		errs = append(errs, fmt.Errorf("config: remote.timeout must be non-negative, got %s", r.Timeout))
	}

	return errs
}

func validateStore(s StoreConfig) []error {
	var errs []error
	if s.BusyTimeout < 0 {
		errs = append(errs, fmt.Errorf("config: store.busy_timeout must be non-negative, got %d", s.BusyTimeout))
	}
	if s.Ephemeral && s.Path != "" {
		errs = append(errs, errors.New("config: store.path and store.ephemeral are mutually exclusive"))
	}
	return errs
}
