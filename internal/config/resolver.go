package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// ResolvePath returns the configuration file to load. An explicit path must
// exist. Otherwise the search order is
// $XDG_CONFIG_HOME/stockchat/stockchat.yaml → ~/.config/stockchat/stockchat.yaml
// → ./stockchat.yaml, and "" is returned when none exists.
func ResolvePath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config: %w", err)
		}
		return explicit, nil
	}

	for _, path := range candidatePaths() {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", nil
}

func candidatePaths() []string {
	var candidates []string
	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && xdg != "" {
		candidates = append(candidates, filepath.Join(xdg, "stockchat", "stockchat.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "stockchat", "stockchat.yaml"))
	}
	return append(candidates, "stockchat.yaml")
}

// LoadOrDefault loads the file ResolvePath finds, or the built-in defaults
// when there is none. The returned path is "" for defaults.
func LoadOrDefault(explicit string) (*Config, string, error) {
	path, err := ResolvePath(explicit)
	if err != nil {
		return nil, "", err
	}
	if path == "" {
		cfg, err := Default()
		return cfg, "", err
	}
	cfg, err := Load(path)
	return cfg, path, err
}

// DefaultDataDir returns the directory holding the conversation database.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok && dir != "" {
		return filepath.Join(dir, "stockchat")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".stockchat")
	}
	return filepath.Join(home, ".local", "share", "stockchat")
}
