package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Redis    RedisConfig    `koanf:"redis"`
	Auth     AuthConfig     `koanf:"auth"`
	Media    MediaConfig    `koanf:"media"`
	Queue    QueueConfig    `koanf:"queue"`
	Worker   WorkerConfig   `koanf:"worker"`
	Cache    CacheConfig    `koanf:"cache"`
	Logging  LoggingConfig  `koanf:"logging"`
}

type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

type DatabaseConfig struct {
	URL            string `koanf:"url"`
	MaxConnections int    `koanf:"max_connections"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type AuthConfig struct {
	JWTSecret string `koanf:"jwt_secret"`
	JWTExpiry string `koanf:"jwt_expiry"`
}

type MediaConfig struct {
	UploadDir    string `koanf:"upload_dir"`
	ProcessedDir string `koanf:"processed_dir"`
}

type QueueConfig struct {
	VisibilityTimeout string `koanf:"visibility_timeout"`
	ReaperInterval    string `koanf:"reaper_interval"`
}

type WorkerConfig struct {
	Count        int    `koanf:"count"`
	MaxRetries   int    `koanf:"max_retries"`
	RetryDelay   string `koanf:"retry_delay"`
	FFmpegBinary string `koanf:"ffmpeg_binary"`
	MetricsPort  int    `koanf:"metrics_port"`
}

type CacheConfig struct {
	StatusTTL string `koanf:"status_ttl"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Load reads config from TOML file (if provided) then overlays env vars.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, err
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, err
		}
	}

	// Env vars: VS_SERVER_PORT -> server.port. Empty values are skipped so
	// they do not override TOML config.
	if err := k.Load(env.ProviderWithValue("VS_", ".", func(key, value string) (string, interface{}) {
		if value == "" {
			return "", nil
		}
		mapped := strings.Replace(
			strings.ToLower(strings.TrimPrefix(key, "VS_")),
			"_", ".", -1,
		)
		return mapped, value
	}), nil); err != nil {
		return nil, err
	}

	// Explicit overrides for keys whose names contain underscores and would
	// otherwise be split by the env mapper.
	if v := os.Getenv("VS_DATABASE_URL"); v != "" {
		k.Set("database.url", v)
	}
	if v := os.Getenv("VS_REDIS_ADDR"); v != "" {
		k.Set("redis.addr", v)
	}
	if v := os.Getenv("VS_AUTH_JWT_SECRET"); v != "" {
		k.Set("auth.jwt_secret", v)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// VisibilityTimeout returns the parsed queue lease timeout. Values below 30s
// fall back to the default so a misconfiguration cannot cause redelivery storms.
func (c *Config) VisibilityTimeout() time.Duration {
	d, err := time.ParseDuration(c.Queue.VisibilityTimeout)
	if err != nil || d < 30*time.Second {
		return 5 * time.Minute
	}
	return d
}

func (c *Config) ReaperInterval() time.Duration {
	d, err := time.ParseDuration(c.Queue.ReaperInterval)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

func (c *Config) RetryDelay() time.Duration {
	d, err := time.ParseDuration(c.Worker.RetryDelay)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

func (c *Config) StatusTTL() time.Duration {
	d, err := time.ParseDuration(c.Cache.StatusTTL)
	if err != nil || d <= 0 {
		return 120 * time.Second
	}
	return d
}

func (c *Config) JWTExpiry() time.Duration {
	d, err := time.ParseDuration(c.Auth.JWTExpiry)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}
