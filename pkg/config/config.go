// Package config holds the assistant configuration and loads it from YAML or
// TOML files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	Model      ModelConfig      `yaml:"model" toml:"model"`
	Server     ServerConfig     `yaml:"server" toml:"server"`
	Generation GenerationConfig `yaml:"generation" toml:"generation"`
	Cache      CacheConfig      `yaml:"cache" toml:"cache"`
	Breaker    BreakerConfig    `yaml:"breaker" toml:"breaker"`
	Log        LogConfig        `yaml:"log" toml:"log"`
}

// ModelConfig selects the model and the backend serving it.
type ModelConfig struct {
	Name            string        `yaml:"name" toml:"name"`
	APIToken        string        `yaml:"api_token" toml:"api_token"`
	BackendURL      string        `yaml:"backend_url" toml:"backend_url"`
	RequestTimeout  time.Duration `yaml:"request_timeout" toml:"request_timeout"` // per backend HTTP call
	LoadRetries     int           `yaml:"load_retries" toml:"load_retries"`
	UserMarker      string        `yaml:"user_marker" toml:"user_marker"`
	AssistantMarker string        `yaml:"assistant_marker" toml:"assistant_marker"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" toml:"host"`
	Port            int           `yaml:"port" toml:"port"`
	GRPCPort        int           `yaml:"grpc_port" toml:"grpc_port"`       // 0 disables
	MetricsPort     int           `yaml:"metrics_port" toml:"metrics_port"` // 0 disables
	Debug           bool          `yaml:"debug" toml:"debug"`
	CORSOrigins     []string      `yaml:"cors_origins" toml:"cors_origins"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" toml:"max_body_bytes"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
}

type GenerationConfig struct {
	DefaultLanguage     string        `yaml:"default_language" toml:"default_language"`
	MaxLength           int           `yaml:"max_length" toml:"max_length"`
	DefaultMaxLength    int           `yaml:"default_max_length" toml:"default_max_length"`
	Temperature         float64       `yaml:"temperature" toml:"temperature"`
	CodeTaskMaxLength   int           `yaml:"code_task_max_length" toml:"code_task_max_length"`
	CodeTaskTemperature float64       `yaml:"code_task_temperature" toml:"code_task_temperature"`
	MaxInputTokens      int           `yaml:"max_input_tokens" toml:"max_input_tokens"`
	TopP                float64       `yaml:"top_p" toml:"top_p"`
	Timeout             time.Duration `yaml:"timeout" toml:"timeout"`
	QueueSize           int           `yaml:"queue_size" toml:"queue_size"` // negative is unbounded
}

type CacheConfig struct {
	Backend       string        `yaml:"backend" toml:"backend"` // none, memory or redis
	RedisURL      string        `yaml:"redis_url" toml:"redis_url"`
	RedisAddr     string        `yaml:"redis_addr" toml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password" toml:"redis_password"`
	RedisDB       int           `yaml:"redis_db" toml:"redis_db"`
	TTL           time.Duration `yaml:"ttl" toml:"ttl"`
	Capacity      uint64        `yaml:"capacity" toml:"capacity"`
}

type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold" toml:"failure_threshold"` // 0 disables
	Cooldown         time.Duration `yaml:"cooldown" toml:"cooldown"`
}

type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Cache backends.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Default returns the default configuration.
func Default() Config {
	return Config{
		Model: ModelConfig{
			Name:            "ibm-granite/granite-3.3-2b-instruct",
			BackendURL:      "http://localhost:8080",
			RequestTimeout:  5 * time.Minute,
			LoadRetries:     3,
			UserMarker:      "<|user|>",
			AssistantMarker: "<|assistant|>",
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            5000,
			GRPCPort:        50051,
			MetricsPort:     9090,
			CORSOrigins:     []string{"*"},
			MaxBodyBytes:    1 << 20,
			ShutdownTimeout: 10 * time.Second,
		},
		Generation: GenerationConfig{
			DefaultLanguage:     "python",
			MaxLength:           2048,
			DefaultMaxLength:    1024,
			Temperature:         0.7,
			CodeTaskMaxLength:   1024,
			CodeTaskTemperature: 0.3,
			MaxInputTokens:      1024,
			TopP:                0.9,
			Timeout:             2 * time.Minute,
			QueueSize:           16,
		},
		Cache: CacheConfig{
			Backend:   CacheNone,
			RedisAddr: "localhost:6379",
			TTL:       time.Hour,
			Capacity:  1024,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			Cooldown:         30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadFile reads path over the defaults. The format follows the extension:
// .yaml/.yml or .toml.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	if err := cfg.MergeFile(path); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// MergeFile decodes path on top of c. Keys absent from the file keep their value.
func (c *Config) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	case ".toml":
		err = toml.Unmarshal(data, c)
	default:
		return fmt.Errorf("config: unsupported file extension %q", ext)
	}
	if err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// Addr is the HTTP listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// LogLevel is the configured level, raised to debug when Server.Debug is set.
func (c Config) LogLevel() string {
	if c.Server.Debug {
		return "debug"
	}
	return c.Log.Level
}

// Validate reports every impossible value at once.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(strings.TrimSpace(c.Model.Name) != "", "model.name is required")
	check(c.Model.BackendURL != "", "model.backend_url is required")
	check(c.Model.LoadRetries >= 0, "model.load_retries must be >= 0")
	check(c.Model.UserMarker != "" && c.Model.AssistantMarker != "", "role markers must not be empty")
	check(c.Model.UserMarker != c.Model.AssistantMarker, "role markers must differ")

	check(c.Server.Port > 0 && c.Server.Port <= 65535, "server.port %d out of range", c.Server.Port)
	check(c.Server.GRPCPort >= 0 && c.Server.GRPCPort <= 65535, "server.grpc_port %d out of range", c.Server.GRPCPort)
	check(c.Server.MetricsPort >= 0 && c.Server.MetricsPort <= 65535, "server.metrics_port %d out of range", c.Server.MetricsPort)

	g := c.Generation
	check(g.MaxLength > 0, "generation.max_length must be > 0")
	check(g.DefaultMaxLength > 0 && g.DefaultMaxLength <= g.MaxLength, "generation.default_max_length must be in (0, max_length]")
	check(g.CodeTaskMaxLength > 0, "generation.code_task_max_length must be > 0")
	check(g.Temperature >= 0 && g.Temperature <= 2, "generation.temperature must be between 0 and 2")
	check(g.CodeTaskTemperature >= 0 && g.CodeTaskTemperature <= 2, "generation.code_task_temperature must be between 0 and 2")
	check(g.MaxInputTokens > 0, "generation.max_input_tokens must be > 0")
	check(g.TopP > 0 && g.TopP <= 1, "generation.top_p must be in (0, 1]")
	check(g.Timeout > 0, "generation.timeout must be > 0")

	switch c.Cache.Backend {
	case CacheNone, "":
	case CacheMemory, CacheRedis:
		check(c.Cache.TTL > 0, "cache.ttl must be > 0")
	default:
		errs = append(errs, fmt.Errorf("cache.backend %q is not one of none, memory, redis", c.Cache.Backend))
	}

	check(c.Breaker.FailureThreshold >= 0, "breaker.failure_threshold must be >= 0")
	check(c.Log.Format == "text" || c.Log.Format == "json", "log.format %q is not text or json", c.Log.Format)

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
