package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// envPattern matches ${VAR} and ${VAR:-default} expressions.
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-((?:[^}\\]|\\.)*))?\}`)

// defaultYAML is the configuration used when no file is found. It goes
// through the same expansion as a user file.
const defaultYAML = `version: "1"
remote:
  base_url: ${STOCKCHAT_API_BASE_URL:-http://localhost:8000}
log:
  level: ${STOCKCHAT_LOG_LEVEL:-warn}
`

const (
	defaultTimeout     = "60s"
	defaultLogLevel    = "warn"
	defaultServiceName = "stockchat"
)

// Load reads a YAML configuration file, expands environment variables,
// parses it and applies defaults.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	cfg, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse expands and decodes raw YAML, then applies defaults.
func Parse(raw []byte) (*Config, error) {
	expanded, err := expandEnv(raw)
	if err != nil {
		return nil, fmt.Errorf("expanding variables: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("parsing: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns the built-in configuration.
func Default() (*Config, error) {
	cfg, err := Parse([]byte(defaultYAML))
	if err != nil {
		return nil, fmt.Errorf("config: defaults: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Remote.Timeout == "" {
		c.Remote.Timeout = defaultTimeout
	}
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = defaultServiceName
	}
}

// expandEnv replaces ${VAR} and ${VAR:-default} patterns in raw YAML bytes.
// Returns an error listing all unresolved variables (no default, no env value).
func expandEnv(raw []byte) ([]byte, error) {
	var errs []error

	result := envPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		subs := envPattern.FindSubmatch(match)
		name := string(subs[1])

		if value, ok := os.LookupEnv(name); ok {
			return []byte(value)
		}
		if len(subs) > 2 && subs[2] != nil {
			return subs[2]
		}

		errs = append(errs, fmt.Errorf("unresolved variable: %s", name))
		return match
	})

	return result, errors.Join(errs...)
}
