package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ilyakaznacheev/cleanenv"
)

// SourceEnv is Config.Source when no YAML file was found.
const SourceEnv = "env"

// localFiles are tried in the working directory when CONFIG_PATH is unset.
var localFiles = []string{"grc.yaml", "config.yaml"}

// Load reads configuration from a YAML file and environment variables.
// Priority: ENV > YAML > defaults (via env-default tags).
//
// CONFIG_PATH names the file and must exist when set. Otherwise grc.yaml and
// config.yaml in the working directory are tried, then grc/config.yaml under
// the user config directory; with none present only ENV and defaults apply.
// An empty database DSN after loading selects the in-memory store.
func Load() (*Config, error) {
	path, err := findFile()
	if err != nil {
		return nil, err
	}

	var cfg Config
	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		cfg.Source = path
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("config: read env: %w", err)
		}
		cfg.Source = SourceEnv
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate %s: %w", cfg.Source, err)
	}
	return &cfg, nil
}

// findFile returns the YAML file to read, or "" when there is none.
func findFile() (string, error) {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("config: file %s: %w", path, err)
		}
		return path, nil
	}

	candidates := localFiles
	if dir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates[:len(candidates):len(candidates)], filepath.Join(dir, "grc", "config.yaml"))
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, nil
		}
	}
	return "", nil
}
