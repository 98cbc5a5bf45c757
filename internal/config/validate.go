package config

import (
	"fmt"
	"strings"
)

// Validate performs business-rule validation on the loaded configuration.
// It must be called after loading; Load calls it automatically.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535 (got %d)", c.Server.Port)
	}

	if !c.Database.InMemory() {
		if c.Database.MaxConns <= 0 {
			return fmt.Errorf("database.max_conns must be > 0 (got %d)", c.Database.MaxConns)
		}
		if c.Database.MinConns < 0 || c.Database.MinConns > c.Database.MaxConns {
			return fmt.Errorf("database.min_conns must be in 0..max_conns (got %d)", c.Database.MinConns)
		}
		if c.Database.ConnectAttempts <= 0 {
			return fmt.Errorf("database.connect_attempts must be > 0 (got %d)", c.Database.ConnectAttempts)
		}
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text (got %q)", c.Log.Format)
	}

	if err := c.Projection.validate(); err != nil {
		return fmt.Errorf("projection: %w", err)
	}
	if err := c.Import.validate(); err != nil {
		return fmt.Errorf("import: %w", err)
	}

	if c.Metrics.Enabled && strings.TrimSpace(c.Metrics.Namespace) == "" {
		return fmt.Errorf("metrics.namespace is required when metrics are enabled")
	}

	return nil
}

func (p *ProjectionConfig) validate() error {
	if p.ConflictRetries < 0 {
		return fmt.Errorf("conflict_retries must be >= 0 (got %d)", p.ConflictRetries)
	}
	if p.RetryInterval < 0 {
		return fmt.Errorf("retry_interval must be >= 0 (got %v)", p.RetryInterval)
	}
	if p.ReplayPageSize <= 0 {
		return fmt.Errorf("replay_page_size must be > 0 (got %d)", p.ReplayPageSize)
	}
	return nil
}

func (i *ImportConfig) validate() error {
	if i.MaxFileBytes <= 0 {
		return fmt.Errorf("max_file_bytes must be > 0 (got %d)", i.MaxFileBytes)
	}
	if i.Workers <= 0 {
		return fmt.Errorf("workers must be > 0 (got %d)", i.Workers)
	}
	return nil
}
