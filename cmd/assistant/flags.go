package main

import (
	"github.com/urfave/cli/v3"

	"github.com/abdhe/code-assistant/pkg/config"
)

// binding ties a flag to the config field it overrides.
type binding struct {
	flag  cli.Flag
	name  string
	apply func(dst, src *config.Config)
}

// serveBindings declares the serve flags. Parsed values land in f; applyFlags
// copies the ones the user actually set onto the loaded config.
func serveBindings(f *config.Config) []binding {
	return []binding{
		{
			name: "model",
			flag: &cli.StringFlag{Name: "model", Usage: "model id served by the backend", Value: f.Model.Name,
				Destination: &f.Model.Name, Sources: cli.EnvVars("MODEL_NAME")},
			apply: func(d, s *config.Config) { d.Model.Name = s.Model.Name },
		},
		{
			name: "api-token",
			flag: &cli.StringFlag{Name: "api-token", Usage: "token presented to the model backend",
				Destination: &f.Model.APIToken, Sources: cli.EnvVars("HUGGINGFACE_API_TOKEN", "MODEL_API_TOKEN")},
			apply: func(d, s *config.Config) { d.Model.APIToken = s.Model.APIToken },
		},
		{
			name: "backend-url",
			flag: &cli.StringFlag{Name: "backend-url", Usage: "base URL of the llama.cpp compatible backend", Value: f.Model.BackendURL,
				Destination: &f.Model.BackendURL, Sources: cli.EnvVars("BACKEND_URL")},
			apply: func(d, s *config.Config) { d.Model.BackendURL = s.Model.BackendURL },
		},
		{
			name: "load-retries",
			flag: &cli.IntFlag{Name: "load-retries", Usage: "retries for the startup model load", Value: f.Model.LoadRetries,
				Destination: &f.Model.LoadRetries, Sources: cli.EnvVars("MAX_RETRIES")},
			apply: func(d, s *config.Config) { d.Model.LoadRetries = s.Model.LoadRetries },
		},
		{
			name: "host",
			flag: &cli.StringFlag{Name: "host", Usage: "HTTP listen host", Value: f.Server.Host,
				Destination: &f.Server.Host, Sources: cli.EnvVars("HOST")},
			apply: func(d, s *config.Config) { d.Server.Host = s.Server.Host },
		},
		{
			name: "port",
			flag: &cli.IntFlag{Name: "port", Usage: "HTTP listen port", Value: f.Server.Port,
				Destination: &f.Server.Port, Sources: cli.EnvVars("PORT")},
			apply: func(d, s *config.Config) { d.Server.Port = s.Server.Port },
		},
		{
			name: "grpc-port",
			flag: &cli.IntFlag{Name: "grpc-port", Usage: "gRPC listen port (0 disables)", Value: f.Server.GRPCPort,
				Destination: &f.Server.GRPCPort, Sources: cli.EnvVars("GRPC_PORT")},
			apply: func(d, s *config.Config) { d.Server.GRPCPort = s.Server.GRPCPort },
		},
		{
			name: "metrics-port",
			flag: &cli.IntFlag{Name: "metrics-port", Usage: "Prometheus metrics port (0 disables)", Value: f.Server.MetricsPort,
				Destination: &f.Server.MetricsPort, Sources: cli.EnvVars("METRICS_PORT")},
			apply: func(d, s *config.Config) { d.Server.MetricsPort = s.Server.MetricsPort },
		},
		{
			name: "debug",
			flag: &cli.BoolFlag{Name: "debug", Usage: "debug logging",
				Destination: &f.Server.Debug, Sources: cli.EnvVars("DEBUG")},
			apply: func(d, s *config.Config) { d.Server.Debug = s.Server.Debug },
		},
		{
			name: "cors-origin",
			flag: &cli.StringSliceFlag{Name: "cors-origin", Usage: "allowed CORS origin, repeatable (\"*\" allows all)", Value: f.Server.CORSOrigins,
				Destination: &f.Server.CORSOrigins, Sources: cli.EnvVars("CORS_ORIGINS")},
			apply: func(d, s *config.Config) { d.Server.CORSOrigins = s.Server.CORSOrigins },
		},
		{
			name: "max-length",
			flag: &cli.IntFlag{Name: "max-length", Usage: "upper bound for requested max_length", Value: f.Generation.MaxLength,
				Destination: &f.Generation.MaxLength, Sources: cli.EnvVars("MAX_LENGTH")},
			apply: func(d, s *config.Config) { d.Generation.MaxLength = s.Generation.MaxLength },
		},
		{
			name: "temperature",
			flag: &cli.Float64Flag{Name: "temperature", Usage: "default sampling temperature for generate", Value: f.Generation.Temperature,
				Destination: &f.Generation.Temperature, Sources: cli.EnvVars("TEMPERATURE")},
			apply: func(d, s *config.Config) { d.Generation.Temperature = s.Generation.Temperature },
		},
		{
			name: "max-input-tokens",
			flag: &cli.IntFlag{Name: "max-input-tokens", Usage: "prompt tokens kept after truncation", Value: f.Generation.MaxInputTokens,
				Destination: &f.Generation.MaxInputTokens, Sources: cli.EnvVars("MAX_INPUT_TOKENS")},
			apply: func(d, s *config.Config) { d.Generation.MaxInputTokens = s.Generation.MaxInputTokens },
		},
		{
			name: "top-p",
			flag: &cli.Float64Flag{Name: "top-p", Usage: "nucleus sampling mass", Value: f.Generation.TopP,
				Destination: &f.Generation.TopP, Sources: cli.EnvVars("TOP_P")},
			apply: func(d, s *config.Config) { d.Generation.TopP = s.Generation.TopP },
		},
		{
			name: "timeout",
			flag: &cli.DurationFlag{Name: "timeout", Usage: "bound on queue wait plus generation", Value: f.Generation.Timeout,
				Destination: &f.Generation.Timeout, Sources: cli.EnvVars("REQUEST_TIMEOUT")},
			apply: func(d, s *config.Config) { d.Generation.Timeout = s.Generation.Timeout },
		},
		{
			name: "queue-size",
			flag: &cli.IntFlag{Name: "queue-size", Usage: "requests allowed to wait for the model (negative is unbounded)", Value: f.Generation.QueueSize,
				Destination: &f.Generation.QueueSize, Sources: cli.EnvVars("QUEUE_SIZE")},
			apply: func(d, s *config.Config) { d.Generation.QueueSize = s.Generation.QueueSize },
		},
		{
			name: "cache",
			flag: &cli.StringFlag{Name: "cache", Usage: "response cache backend: none, memory or redis", Value: f.Cache.Backend,
				Destination: &f.Cache.Backend, Sources: cli.EnvVars("CACHE_BACKEND")},
			apply: func(d, s *config.Config) { d.Cache.Backend = s.Cache.Backend },
		},
		{
			name: "redis-url",
			flag: &cli.StringFlag{Name: "redis-url", Usage: "redis URL, overrides the address settings",
				Destination: &f.Cache.RedisURL, Sources: cli.EnvVars("REDIS_URL")},
			apply: func(d, s *config.Config) { d.Cache.RedisURL = s.Cache.RedisURL },
		},
		{
			name: "redis-addr",
			flag: &cli.StringFlag{Name: "redis-addr", Usage: "redis address", Value: f.Cache.RedisAddr,
				Destination: &f.Cache.RedisAddr, Sources: cli.EnvVars("REDIS_ADDR")},
			apply: func(d, s *config.Config) { d.Cache.RedisAddr = s.Cache.RedisAddr },
		},
		{
			name: "redis-password",
			flag: &cli.StringFlag{Name: "redis-password", Usage: "redis password",
				Destination: &f.Cache.RedisPassword, Sources: cli.EnvVars("REDIS_PASSWORD")},
			apply: func(d, s *config.Config) { d.Cache.RedisPassword = s.Cache.RedisPassword },
		},
		{
			name: "redis-db",
			flag: &cli.IntFlag{Name: "redis-db", Usage: "redis database", Value: f.Cache.RedisDB,
				Destination: &f.Cache.RedisDB, Sources: cli.EnvVars("REDIS_DB")},
			apply: func(d, s *config.Config) { d.Cache.RedisDB = s.Cache.RedisDB },
		},
		{
			name: "cache-ttl",
			flag: &cli.DurationFlag{Name: "cache-ttl", Usage: "response cache TTL", Value: f.Cache.TTL,
				Destination: &f.Cache.TTL, Sources: cli.EnvVars("CACHE_TTL")},
			apply: func(d, s *config.Config) { d.Cache.TTL = s.Cache.TTL },
		},
		{
			name: "cb-failure-threshold",
			flag: &cli.IntFlag{Name: "cb-failure-threshold", Usage: "consecutive failures that open the circuit (0 disables)", Value: f.Breaker.FailureThreshold,
				Destination: &f.Breaker.FailureThreshold, Sources: cli.EnvVars("CB_FAILURE_THRESHOLD")},
			apply: func(d, s *config.Config) { d.Breaker.FailureThreshold = s.Breaker.FailureThreshold },
		},
		{
			name: "cb-cooldown",
			flag: &cli.DurationFlag{Name: "cb-cooldown", Usage: "time before an open circuit is probed", Value: f.Breaker.Cooldown,
				Destination: &f.Breaker.Cooldown, Sources: cli.EnvVars("CB_COOLDOWN")},
			apply: func(d, s *config.Config) { d.Breaker.Cooldown = s.Breaker.Cooldown },
		},
		{
			name: "log-level",
			flag: &cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error", Value: f.Log.Level,
				Destination: &f.Log.Level, Sources: cli.EnvVars("LOG_LEVEL")},
			apply: func(d, s *config.Config) { d.Log.Level = s.Log.Level },
		},
		{
			name: "log-format",
			flag: &cli.StringFlag{Name: "log-format", Usage: "text or json", Value: f.Log.Format,
				Destination: &f.Log.Format, Sources: cli.EnvVars("LOG_FORMAT")},
			apply: func(d, s *config.Config) { d.Log.Format = s.Log.Format },
		},
	}
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Usage:   "YAML or TOML config file",
		Sources: cli.EnvVars("ASSISTANT_CONFIG"),
	}
}

func flagsOf(bs []binding) []cli.Flag {
	out := make([]cli.Flag, 0, len(bs)+1)
	out = append(out, configFlag())
	for _, b := range bs {
		out = append(out, b.flag)
	}
	return out
}

// loadConfig resolves defaults, then the config file, then env and flags.
func loadConfig(cmd *cli.Command, bs []binding, parsed *config.Config) (config.Config, error) {
	cfg := config.Default()
	if path := cmd.String("config"); path != "" {
		if err := cfg.MergeFile(path); err != nil {
			return config.Config{}, err
		}
	}
	for _, b := range bs {
		if cmd.IsSet(b.name) {
			b.apply(&cfg, parsed)
		}
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
