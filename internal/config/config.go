package config

import "time"

// Config is the root application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Log        LogConfig        `yaml:"log"`
	Projection ProjectionConfig `yaml:"projection"`
	Import     ImportConfig     `yaml:"import"`
	Metrics    MetricsConfig    `yaml:"metrics"`

	// Source is the file the configuration was read from, or SourceEnv.
	Source string `yaml:"-"`
}

// ServerConfig holds settings of the operational HTTP server.
type ServerConfig struct {
	Host            string        `yaml:"host"             env:"SERVER_HOST"             env-default:"0.0.0.0"`
	Port            int           `yaml:"port"             env:"SERVER_PORT"             env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// DatabaseConfig holds PostgreSQL connection settings. An empty DSN selects
// the in-memory backend.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"                env:"DATABASE_DSN"`
	MaxConns        int32         `yaml:"max_conns"          env:"DATABASE_MAX_CONNS"          env-default:"25"`
	MinConns        int32         `yaml:"min_conns"          env:"DATABASE_MIN_CONNS"          env-default:"2"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"DATABASE_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DATABASE_MAX_CONN_IDLE_TIME" env-default:"30m"`
	ConnectAttempts int           `yaml:"connect_attempts"   env:"DATABASE_CONNECT_ATTEMPTS"   env-default:"5"`
	ConnectInterval time.Duration `yaml:"connect_interval"   env:"DATABASE_CONNECT_INTERVAL"   env-default:"2s"`
}

// InMemory reports whether no database is configured.
func (c DatabaseConfig) InMemory() bool { return c.DSN == "" }

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// ProjectionConfig controls how the score projection reacts to a system
// group that was saved concurrently.
type ProjectionConfig struct {
	ConflictRetries int           `yaml:"conflict_retries" env:"PROJECTION_CONFLICT_RETRIES" env-default:"3"`
	RetryInterval   time.Duration `yaml:"retry_interval"   env:"PROJECTION_RETRY_INTERVAL"   env-default:"50ms"`
	ReplayPageSize  int           `yaml:"replay_page_size" env:"PROJECTION_REPLAY_PAGE_SIZE" env-default:"500"`
}

// ImportConfig limits scan file imports.
type ImportConfig struct {
	MaxFileBytes int64 `yaml:"max_file_bytes" env:"IMPORT_MAX_FILE_BYTES" env-default:"67108864"`
	Workers      int   `yaml:"workers"        env:"IMPORT_WORKERS"        env-default:"4"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"   env:"METRICS_ENABLED"   env-default:"true"`
	Namespace string `yaml:"namespace" env:"METRICS_NAMESPACE" env-default:"grc"`
}
