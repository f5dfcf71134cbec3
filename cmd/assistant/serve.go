package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"
	"google.golang.org/grpc"

	"github.com/abdhe/code-assistant/pkg/assistant"
	"github.com/abdhe/code-assistant/pkg/cache"
	"github.com/abdhe/code-assistant/pkg/config"
	"github.com/abdhe/code-assistant/pkg/gen"
	"github.com/abdhe/code-assistant/pkg/grpcapi"
	"github.com/abdhe/code-assistant/pkg/httpapi"
	"github.com/abdhe/code-assistant/pkg/logging"
	"github.com/abdhe/code-assistant/pkg/metrics"
	"github.com/abdhe/code-assistant/pkg/prompt"
	"github.com/abdhe/code-assistant/pkg/provider"
	"github.com/abdhe/code-assistant/pkg/resilience"
)

func serveCmd() *cli.Command {
	parsed := config.Default()
	bs := serveBindings(&parsed)

	return &cli.Command{
		Name:  "serve",
		Usage: "Load the model and serve the HTTP, gRPC and metrics endpoints",
		Flags: flagsOf(bs),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd, bs, &parsed)
			if err != nil {
				return err
			}
			log, err := logging.New(os.Stderr, cfg.LogLevel(), cfg.Log.Format)
			if err != nil {
				return err
			}
			slog.SetDefault(log)
			return serve(ctx, cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting code assistant", "model", cfg.Model.Name, "backend", cfg.Model.BackendURL)

	// -------------------------------------------------------------------------
	// Load model
	// -------------------------------------------------------------------------
	handle, err := loadModel(ctx, cfg.Model, log)
	if err != nil {
		metrics.SetModelLoaded(false)
		return fmt.Errorf("load model %s: %w", cfg.Model.Name, err)
	}
	metrics.SetModelLoaded(true)
	log.Info("model loaded", "model", handle.ModelID())

	// -------------------------------------------------------------------------
	// Initialize circuit breaker
	// -------------------------------------------------------------------------
	var breaker *resilience.CircuitBreaker
	if cfg.Breaker.FailureThreshold > 0 {
		breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			FailureThreshold: cfg.Breaker.FailureThreshold,
			Cooldown:         cfg.Breaker.Cooldown,
			OnStateChange: func(s resilience.CircuitState) {
				metrics.CircuitBreakerState.Set(float64(s))
				log.Warn("circuit breaker state changed", "state", s.String())
			},
		})
	}

	// -------------------------------------------------------------------------
	// Initialize response cache
	// -------------------------------------------------------------------------
	respCache := newCache(ctx, cfg.Cache, log)
	if respCache != nil {
		defer respCache.Close()
	}

	// -------------------------------------------------------------------------
	// Assemble service
	// -------------------------------------------------------------------------
	tmpl := prompt.Template{UserMarker: cfg.Model.UserMarker, AssistantMarker: cfg.Model.AssistantMarker}
	inv := gen.NewInvoker(gen.Config{
		Handle:         handle,
		Template:       tmpl,
		MaxInputTokens: cfg.Generation.MaxInputTokens,
		TopP:           cfg.Generation.TopP,
		Timeout:        cfg.Generation.Timeout,
		QueueSize:      cfg.Generation.QueueSize,
		Breaker:        breaker,
		Cache:          respCache,
		Logger:         log,
	})
	svc := assistant.NewService(inv, assistant.Options{
		DefaultLanguage:     cfg.Generation.DefaultLanguage,
		DefaultMaxLength:    cfg.Generation.DefaultMaxLength,
		MaxLength:           cfg.Generation.MaxLength,
		DefaultTemperature:  cfg.Generation.Temperature,
		CodeTaskMaxLength:   cfg.Generation.CodeTaskMaxLength,
		CodeTaskTemperature: cfg.Generation.CodeTaskTemperature,
	}, log)

	errCh := make(chan error, 3)

	// -------------------------------------------------------------------------
	// Start HTTP server
	// -------------------------------------------------------------------------
	httpSrv := &http.Server{
		Addr: cfg.Addr(),
		Handler: httpapi.NewServer(svc, httpapi.Options{
			CORSOrigins:  cfg.Server.CORSOrigins,
			MaxBodyBytes: cfg.Server.MaxBodyBytes,
		}, log).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("HTTP server listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	// -------------------------------------------------------------------------
	// Start gRPC server
	// -------------------------------------------------------------------------
	var grpcSrv *grpc.Server
	if cfg.Server.GRPCPort > 0 {
		lis, err := net.Listen("tcp", net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.GRPCPort)))
		if err != nil {
			_ = httpSrv.Close()
			return fmt.Errorf("listen on gRPC port %d: %w", cfg.Server.GRPCPort, err)
		}
		grpcSrv = grpcapi.NewServer(grpcapi.NewHandler(svc, log), handle.Ready(), log)
		go func() {
			log.Info("gRPC server listening", "addr", lis.Addr().String())
			if err := grpcSrv.Serve(lis); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	// -------------------------------------------------------------------------
	// Start HTTP metrics server
	// -------------------------------------------------------------------------
	var metricsSrv *http.Server
	if cfg.Server.MetricsPort > 0 {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, "ok")
		})
		metricsSrv = &http.Server{
			Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.MetricsPort)),
			Handler:      metricsMux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		go func() {
			log.Info("metrics server listening", "addr", metricsSrv.Addr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	// -------------------------------------------------------------------------
	// Graceful shutdown
	// -------------------------------------------------------------------------
	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case runErr = <-errCh:
		log.Error("server failed, shutting down", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if grpcSrv != nil {
		grpcSrv.GracefulStop()
		log.Info("gRPC server stopped")
	}
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP server shutdown error", "error", err)
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			log.Warn("metrics server shutdown error", "error", err)
		}
	}

	log.Info("code assistant shut down")
	return runErr
}

// loadBackoff supplies the retry schedule for loading the model.
var loadBackoff = resilience.DefaultRetryConfig

// loadModel authenticates and loads the model, retrying transient backend
// failures such as a server still loading weights.
func loadModel(ctx context.Context, mc config.ModelConfig, log *slog.Logger) (*provider.Handle, error) {
	loader := provider.NewLlamaCppLoader(mc.BackendURL, mc.RequestTimeout)

	retryCfg := loadBackoff()
	retryCfg.MaxRetries = mc.LoadRetries
	retryCfg.Retryable = provider.IsTransient
	retryCfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		log.Warn("model load failed, retrying", "attempt", attempt, "delay", delay, "error", err)
	}

	var handle *provider.Handle
	err := resilience.Retry(ctx, retryCfg, func(ctx context.Context) error {
		h, err := provider.Load(ctx, loader, mc.APIToken, mc.Name)
		if err != nil {
			return err
		}
		handle = h
		return nil
	})
	return handle, err
}

// newCache builds the configured response cache. An unreachable redis
// disables caching instead of failing startup.
func newCache(ctx context.Context, cc config.CacheConfig, log *slog.Logger) cache.Cache {
	switch cc.Backend {
	case config.CacheMemory:
		log.Info("response cache enabled", "backend", "memory", "ttl", cc.TTL, "capacity", cc.Capacity)
		return cache.NewMemoryCache(cc.TTL, cc.Capacity)

	case config.CacheRedis:
		var rc *cache.RedisCache
		if cc.RedisURL != "" {
			var err error
			if rc, err = cache.NewRedisCacheFromURL(cc.RedisURL, cc.TTL); err != nil {
				log.Warn("invalid REDIS_URL, cache disabled", "error", err)
				return nil
			}
		} else {
			rc = cache.NewRedisCache(cc.RedisAddr, cc.RedisPassword, cc.RedisDB, cc.TTL)
		}

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rc.Ping(pingCtx); err != nil {
			log.Warn("redis connection failed, cache disabled", "error", err)
			_ = rc.Close()
			return nil
		}
		log.Info("response cache enabled", "backend", "redis", "ttl", cc.TTL)
		return rc

	default:
		return nil
	}
}
