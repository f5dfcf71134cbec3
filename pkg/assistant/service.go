// Package assistant implements the code task handlers shared by the HTTP and gRPC transports.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/abdhe/code-assistant/pkg/gen"
	"github.com/abdhe/code-assistant/pkg/logging"
	"github.com/abdhe/code-assistant/pkg/metrics"
	"github.com/abdhe/code-assistant/pkg/prompt"
)

// Options controls language and sampling defaults.
type Options struct {
	DefaultLanguage string

	// Generate task: caller may override within bounds.
	DefaultMaxLength   int
	MaxLength          int // upper bound for caller supplied max_length
	DefaultTemperature float64

	// Debug, explain and optimize: fixed, caller overrides are ignored.
	CodeTaskMaxLength   int
	CodeTaskTemperature float64
}

// DefaultOptions returns the stock defaults.
func DefaultOptions() Options {
	return Options{
		DefaultLanguage:     "python",
		DefaultMaxLength:    1024,
		MaxLength:           2048,
		DefaultTemperature:  0.7,
		CodeTaskMaxLength:   1024,
		CodeTaskTemperature: 0.3,
	}
}

// GenerateInput is the generate task request. Nil pointers take defaults.
type GenerateInput struct {
	Prompt      string
	Language    string
	MaxLength   *int
	Temperature *float64
}

// CodeInput is the request of the debug, explain and optimize tasks.
type CodeInput struct {
	Code     string
	Language string
}

// Health is the service health snapshot.
type Health struct {
	Status          string
	ModelLoaded     bool
	TokenizerLoaded bool
	Timestamp       time.Time
}

// Service validates requests, builds task prompts and runs them through the invoker.
// It keeps no state between calls.
type Service struct {
	inv  *gen.Invoker
	opts Options
	log  *slog.Logger
	now  func() time.Time
}

// NewService creates a service over inv. Zero lengths and an empty language take
// DefaultOptions values; temperatures are used as given.
func NewService(inv *gen.Invoker, opts Options, logger *slog.Logger) *Service {
	def := DefaultOptions()
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = def.DefaultLanguage
	}
	if opts.DefaultMaxLength <= 0 {
		opts.DefaultMaxLength = def.DefaultMaxLength
	}
	if opts.MaxLength <= 0 {
		opts.MaxLength = def.MaxLength
	}
	if opts.CodeTaskMaxLength <= 0 {
		opts.CodeTaskMaxLength = def.CodeTaskMaxLength
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		inv:  inv,
		opts: opts,
		log:  logger.With("component", "assistant"),
		now:  time.Now,
	}
}

// Generate writes code from a natural language prompt.
func (s *Service) Generate(ctx context.Context, in GenerateInput) (gen.Result, error) {
	if strings.TrimSpace(in.Prompt) == "" {
		metrics.RequestsTotal.WithLabelValues(string(prompt.TaskGenerate), "invalid").Inc()
		return gen.Result{}, errPromptRequired
	}

	req := gen.Request{
		Instruction: in.Prompt,
		Language:    s.language(in.Language),
		MaxTokens:   s.opts.DefaultMaxLength,
		Temperature: s.opts.DefaultTemperature,
	}
	if in.MaxLength != nil {
		req.MaxTokens = *in.MaxLength
	}
	if in.Temperature != nil {
		req.Temperature = *in.Temperature
	}
	if err := req.Validate(); err != nil {
		metrics.RequestsTotal.WithLabelValues(string(prompt.TaskGenerate), "invalid").Inc()
		return gen.Result{}, newInputError(err.Error() + ".")
	}
	if req.MaxTokens > s.opts.MaxLength {
		req.MaxTokens = s.opts.MaxLength
	}
	return s.run(ctx, prompt.TaskGenerate, req)
}

// Debug reports bugs and improvements in the given code.
func (s *Service) Debug(ctx context.Context, in CodeInput) (gen.Result, error) {
	return s.codeTask(ctx, prompt.TaskDebug, in)
}

// Explain walks through the given code step by step.
func (s *Service) Explain(ctx context.Context, in CodeInput) (gen.Result, error) {
	return s.codeTask(ctx, prompt.TaskExplain, in)
}

// Optimize proposes a faster version of the given code.
func (s *Service) Optimize(ctx context.Context, in CodeInput) (gen.Result, error) {
	return s.codeTask(ctx, prompt.TaskOptimize, in)
}

// Health reports the model handle state.
func (s *Service) Health() Health {
	h := s.inv.Handle()
	return Health{
		Status:          "healthy",
		ModelLoaded:     h.ModelLoaded(),
		TokenizerLoaded: h.TokenizerLoaded(),
		Timestamp:       s.now(),
	}
}

func (s *Service) codeTask(ctx context.Context, task prompt.Task, in CodeInput) (gen.Result, error) {
	if strings.TrimSpace(in.Code) == "" {
		metrics.RequestsTotal.WithLabelValues(string(task), "invalid").Inc()
		return gen.Result{}, errCodeRequired
	}
	return s.run(ctx, task, gen.Request{
		Instruction: in.Code,
		Language:    s.language(in.Language),
		MaxTokens:   s.opts.CodeTaskMaxLength,
		Temperature: s.opts.CodeTaskTemperature,
	})
}

func (s *Service) run(ctx context.Context, task prompt.Task, req gen.Request) (gen.Result, error) {
	instruction, err := prompt.Build(task, req.Language, req.Instruction)
	if err != nil {
		return gen.Result{}, fmt.Errorf("assistant: %w", err)
	}

	log := logging.FromContext(ctx, s.log)
	start := time.Now()
	res := s.inv.Invoke(ctx, s.inv.Template().Format(instruction), req.MaxTokens, req.Temperature)
	latency := time.Since(start)

	status := "success"
	if !res.OK() {
		status = string(res.Err.Reason)
		log.Warn("task failed", "task", task, "reason", res.Err.Reason, "error", res.Err, "latency", latency)
	} else {
		log.Info("task completed", "task", task, "language", req.Language, "cached", res.Cached,
			"chars", len(res.Text), "latency", latency)
	}
	metrics.RequestsTotal.WithLabelValues(string(task), status).Inc()
	metrics.GenerationLatency.WithLabelValues(string(task), status).Observe(latency.Seconds())
	return res, nil
}

func (s *Service) language(lang string) string {
	if lang = strings.TrimSpace(lang); lang != "" {
		return lang
	}
	return s.opts.DefaultLanguage
}
